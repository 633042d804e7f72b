package loader

import (
	"context"

	"github.com/zclconf/go-cty/cty"
)

// Static serves query urls from a fixed in-memory table. The scenario runner
// and the tests use it in place of a live server.
type Static map[string][]cty.Value

// Fetch returns the configured resources for each known url; unknown urls
// are simply absent from the result.
func (s Static) Fetch(_ context.Context, urls []string) (map[string][]cty.Value, error) {
	out := make(map[string][]cty.Value, len(urls))
	for _, url := range urls {
		if resources, ok := s[url]; ok {
			out[url] = resources
		}
	}
	return out, nil
}
