package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/formscope/internal/scope"
)

func writeScenario(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return filepath.Join(dir, "scenario.hcl")
}

func TestLoad(t *testing.T) {
	path := writeScenario(t, map[string]string{
		"scenario.hcl": `
mode          = "population"
questionnaire = "q.json"
response      = "qr.json"

launch_context "patient" {
  file = "patient.json"
}

fixture "Observation?subject=P1" {
  json = [<<EOT
{"resourceType":"Observation","id":"O1"}
EOT
  ]
}
`,
		"q.json":       `{"resourceType":"Questionnaire","item":[{"linkId":"q1","type":"string"}]}`,
		"qr.json":      `{"resourceType":"QuestionnaireResponse","item":[{"linkId":"q1"}]}`,
		"patient.json": `{"resourceType":"Patient","id":"P1"}`,
	})

	f, err := Load(path)
	require.NoError(t, err)

	mode, err := f.ResolveMode()
	require.NoError(t, err)
	assert.Equal(t, scope.ModePopulation, mode)

	q, err := f.ReadQuestionnaire()
	require.NoError(t, err)
	require.Len(t, q.Item, 1)
	assert.Equal(t, "q1", q.Item[0].LinkID)

	qr, err := f.ReadResponse()
	require.NoError(t, err)
	require.NotNil(t, qr)
	require.Len(t, qr.Item, 1)

	launches, err := f.Launches()
	require.NoError(t, err)
	require.Len(t, launches, 1)
	assert.Equal(t, "patient", launches[0].Name)
	assert.Equal(t, "P1", launches[0].Resource.GetAttr("id").AsString())

	src, err := f.Loader()
	require.NoError(t, err)
	require.Len(t, src["Observation?subject=P1"], 1)
}

func TestLoadWithoutResponse(t *testing.T) {
	path := writeScenario(t, map[string]string{
		"scenario.hcl": `
mode          = "extraction"
questionnaire = "q.json"
`,
		"q.json": `{"resourceType":"Questionnaire"}`,
	})

	f, err := Load(path)
	require.NoError(t, err)

	mode, err := f.ResolveMode()
	require.NoError(t, err)
	assert.Equal(t, scope.ModeExtraction, mode)

	qr, err := f.ReadResponse()
	require.NoError(t, err)
	assert.Nil(t, qr)
}

func TestLoadErrors(t *testing.T) {
	t.Run("invalid mode", func(t *testing.T) {
		path := writeScenario(t, map[string]string{
			"scenario.hcl": `
mode          = "sideways"
questionnaire = "q.json"
`,
		})
		f, err := Load(path)
		require.NoError(t, err)
		_, err = f.ResolveMode()
		assert.ErrorContains(t, err, "invalid mode")
	})

	t.Run("launch context needs a source", func(t *testing.T) {
		path := writeScenario(t, map[string]string{
			"scenario.hcl": `
mode          = "population"
questionnaire = "q.json"

launch_context "patient" {}
`,
		})
		f, err := Load(path)
		require.NoError(t, err)
		_, err = f.Launches()
		assert.ErrorContains(t, err, "one of 'file' or 'json' is required")
	})

	t.Run("malformed hcl", func(t *testing.T) {
		path := writeScenario(t, map[string]string{"scenario.hcl": `mode = `})
		_, err := Load(path)
		assert.Error(t, err)
	})
}
