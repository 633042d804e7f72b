// Package scenario loads the HCL files the CLI runs from: which
// questionnaire and response to resolve, which launch contexts to inject,
// and which fixture resources back the query urls.
package scenario

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/formscope/internal/form"
	"github.com/vk/formscope/internal/loader"
	"github.com/vk/formscope/internal/scope"
)

// File is the decoded scenario document.
type File struct {
	Mode          string           `hcl:"mode"`
	Questionnaire string           `hcl:"questionnaire"`
	Response      string           `hcl:"response,optional"`
	LaunchBlocks  []*LaunchContext `hcl:"launch_context,block"`
	Fixtures      []*Fixture       `hcl:"fixture,block"`

	// dir anchors the relative file references inside the scenario.
	dir string
}

// LaunchContext names one resource injected at the root scope, either from
// a JSON file or inline.
type LaunchContext struct {
	Name string `hcl:"name,label"`
	File string `hcl:"file,optional"`
	JSON string `hcl:"json,optional"`
}

// Fixture maps one query url to the resources a live server would return.
type Fixture struct {
	URL   string   `hcl:"url,label"`
	Files []string `hcl:"files,optional"`
	JSON  []string `hcl:"json,optional"`
}

// Load parses and decodes a scenario file.
func Load(path string) (*File, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing scenario %s: %s", path, diags.Error())
	}
	var f File
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &f); diags.HasErrors() {
		return nil, fmt.Errorf("decoding scenario %s: %s", path, diags.Error())
	}
	f.dir = filepath.Dir(path)
	return &f, nil
}

// ResolveMode maps the scenario's mode attribute onto a pass mode.
func (f *File) ResolveMode() (scope.Mode, error) {
	switch f.Mode {
	case "population":
		return scope.ModePopulation, nil
	case "extraction":
		return scope.ModeExtraction, nil
	}
	return 0, fmt.Errorf("invalid mode %q: must be 'population' or 'extraction'", f.Mode)
}

// ReadQuestionnaire loads and decodes the questionnaire the scenario points
// at.
func (f *File) ReadQuestionnaire() (*form.Questionnaire, error) {
	raw, err := os.ReadFile(f.path(f.Questionnaire))
	if err != nil {
		return nil, fmt.Errorf("reading questionnaire: %w", err)
	}
	return form.DecodeQuestionnaire(raw)
}

// ReadResponse loads the optional response document; nil when the scenario
// names none.
func (f *File) ReadResponse() (*form.QuestionnaireResponse, error) {
	if f.Response == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(f.path(f.Response))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return form.DecodeResponse(raw)
}

// Launches decodes every launch_context block into a named resource.
func (f *File) Launches() ([]scope.Launch, error) {
	out := make([]scope.Launch, 0, len(f.LaunchBlocks))
	for _, b := range f.LaunchBlocks {
		raw, err := b.read(f.dir)
		if err != nil {
			return nil, fmt.Errorf("launch context %q: %w", b.Name, err)
		}
		v, err := form.DecodeResource(raw)
		if err != nil {
			return nil, fmt.Errorf("launch context %q: %w", b.Name, err)
		}
		out = append(out, scope.Launch{Name: b.Name, Resource: v})
	}
	return out, nil
}

// Loader builds the static fixture loader serving the scenario's urls.
func (f *File) Loader() (loader.Static, error) {
	src := make(loader.Static, len(f.Fixtures))
	for _, fx := range f.Fixtures {
		var resources []cty.Value
		for _, name := range fx.Files {
			raw, err := os.ReadFile(filepath.Join(f.dir, name))
			if err != nil {
				return nil, fmt.Errorf("fixture %q: %w", fx.URL, err)
			}
			v, err := form.DecodeResource(raw)
			if err != nil {
				return nil, fmt.Errorf("fixture %q: %w", fx.URL, err)
			}
			resources = append(resources, v)
		}
		for _, raw := range fx.JSON {
			v, err := form.DecodeResource([]byte(raw))
			if err != nil {
				return nil, fmt.Errorf("fixture %q: %w", fx.URL, err)
			}
			resources = append(resources, v)
		}
		src[fx.URL] = resources
	}
	return src, nil
}

func (b *LaunchContext) read(dir string) ([]byte, error) {
	switch {
	case b.File != "" && b.JSON != "":
		return nil, fmt.Errorf("'file' and 'json' cannot be used together")
	case b.File != "":
		return os.ReadFile(filepath.Join(dir, b.File))
	case b.JSON != "":
		return []byte(b.JSON), nil
	}
	return nil, fmt.Errorf("one of 'file' or 'json' is required")
}

func (f *File) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(f.dir, name)
}
