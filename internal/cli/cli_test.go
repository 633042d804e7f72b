package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("no arguments prints usage and exits cleanly", func(t *testing.T) {
		var out bytes.Buffer
		cfg, shouldExit, err := Parse(nil, &out)
		require.NoError(t, err)
		assert.True(t, shouldExit)
		assert.Nil(t, cfg)
		assert.Contains(t, out.String(), "Usage:")
	})

	t.Run("positional scenario path", func(t *testing.T) {
		var out bytes.Buffer
		cfg, shouldExit, err := Parse([]string{"run.hcl"}, &out)
		require.NoError(t, err)
		assert.False(t, shouldExit)
		require.NotNil(t, cfg)
		assert.Equal(t, "run.hcl", cfg.ScenarioPath)
		assert.Equal(t, "text", cfg.LogFormat)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("scenario flag wins over positional", func(t *testing.T) {
		var out bytes.Buffer
		cfg, _, err := Parse([]string{"-scenario", "a.hcl", "b.hcl"}, &out)
		require.NoError(t, err)
		assert.Equal(t, "a.hcl", cfg.ScenarioPath)
	})

	t.Run("invalid log format", func(t *testing.T) {
		var out bytes.Buffer
		_, _, err := Parse([]string{"-log-format", "xml", "run.hcl"}, &out)
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 2, exitErr.Code)
	})

	t.Run("invalid log level", func(t *testing.T) {
		var out bytes.Buffer
		_, _, err := Parse([]string{"-log-level", "loud", "run.hcl"}, &out)
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 2, exitErr.Code)
	})
}
