package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/formscope/internal/ctxlog"
	"github.com/vk/formscope/internal/form"
)

// HTTP resolves query urls against a FHIR-style server: each url becomes a
// GET of base/url and the response is decoded as a search bundle.
type HTTP struct {
	Base   string
	Client *http.Client
}

// NewHTTP builds an HTTP source for the given server base url. A nil client
// falls back to http.DefaultClient.
func NewHTTP(base string, client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{Base: strings.TrimRight(base, "/"), Client: client}
}

// bundle is the slice of a search response the loader needs.
type bundle struct {
	Entry []struct {
		Resource json.RawMessage `json:"resource"`
	} `json:"entry"`
}

// Fetch issues one GET per url sequentially and decodes each result bundle
// into resource values.
func (h *HTTP) Fetch(ctx context.Context, urls []string) (map[string][]cty.Value, error) {
	logger := ctxlog.FromContext(ctx)
	out := make(map[string][]cty.Value, len(urls))
	for _, url := range urls {
		resources, err := h.fetchOne(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// A single bad url does not spoil the batch.
			logger.Warn("Query fetch failed.", "url", url, "error", err)
			continue
		}
		out[url] = resources
	}
	return out, nil
}

func (h *HTTP) fetchOne(ctx context.Context, url string) ([]cty.Value, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.Base+"/"+url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/fhir+json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var b bundle
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("decoding bundle: %w", err)
	}
	resources := make([]cty.Value, 0, len(b.Entry))
	for _, e := range b.Entry {
		if len(e.Resource) == 0 {
			continue
		}
		v, err := form.DecodeResource(e.Resource)
		if err != nil {
			return nil, fmt.Errorf("decoding bundle entry: %w", err)
		}
		resources = append(resources, v)
	}
	return resources, nil
}
