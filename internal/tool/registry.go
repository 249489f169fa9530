package tool

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yun-ni-2024/ai-assistant-app/internal/upload"
)

// Descriptor 描述目录中的一个工具条目。
type Descriptor struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description" json:"description"`
	Parameters  map[string]string `yaml:"parameters" json:"parameters,omitempty"`
	UseCases    []string          `yaml:"use_cases" json:"useCases,omitempty"`
	Enabled     bool              `yaml:"enabled" json:"enabled"`
	Priority    int               `yaml:"priority" json:"priority"`
	Timeout     int               `yaml:"timeout_seconds" json:"-"`
	MaxContent  int               `yaml:"max_content_length" json:"-"`
}

// timeout returns the per-tool execution bound.
func (d Descriptor) timeout() time.Duration {
	if d.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(d.Timeout) * time.Second
}

func (d Descriptor) maxContent() int {
	if d.MaxContent <= 0 {
		return 8000
	}
	return d.MaxContent
}

// Deps carries the collaborators executors are built with.
type Deps struct {
	Client         *http.Client
	Uploads        *upload.Store
	SearchAPIKey   string
	SearchEngineID string
	SearchBaseURL  string
}

// factories is the closed set of executor constructors; tools are enabled
// and tuned through the catalog file, never instantiated by reflection.
var factories = map[string]func(Descriptor, Deps) Executor{
	NameSearch: newSearchExecutor,
	NameFetch:  newFetchExecutor,
	NameFile:   newFileExecutor,
}

// Registry holds the loaded catalog and the executor instances behind it.
type Registry struct {
	descriptors []Descriptor
	executors   map[string]Executor
}

// LoadCatalog reads tool descriptors from a YAML file.
func LoadCatalog(path string) ([]Descriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tool catalog: %w", err)
	}

	var doc struct {
		Tools []Descriptor `yaml:"tools"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse tool catalog: %w", err)
	}
	return doc.Tools, nil
}

// NewRegistry builds executors for the given descriptors. Duplicate or
// unknown tool names are startup errors, not runtime faults.
func NewRegistry(descriptors []Descriptor, deps Deps) (*Registry, error) {
	if deps.Client == nil {
		deps.Client = &http.Client{}
	}

	executors := make(map[string]Executor, len(descriptors))
	ordered := make([]Descriptor, 0, len(descriptors))
	for _, desc := range descriptors {
		if desc.Name == "" {
			return nil, fmt.Errorf("tool catalog entry missing name")
		}
		if _, dup := executors[desc.Name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q in catalog", desc.Name)
		}
		factory, ok := factories[desc.Name]
		if !ok {
			return nil, fmt.Errorf("unknown tool %q in catalog", desc.Name)
		}
		executors[desc.Name] = factory(desc, deps)
		ordered = append(ordered, desc)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	return &Registry{descriptors: ordered, executors: executors}, nil
}

// List returns every descriptor in priority order.
func (r *Registry) List() []Descriptor {
	return append([]Descriptor(nil), r.descriptors...)
}

// Enabled returns only the enabled descriptors.
func (r *Registry) Enabled() []Descriptor {
	out := make([]Descriptor, 0, len(r.descriptors))
	for _, desc := range r.descriptors {
		if desc.Enabled {
			out = append(out, desc)
		}
	}
	return out
}

// Get looks up a descriptor by name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	for _, desc := range r.descriptors {
		if desc.Name == name {
			return desc, true
		}
	}
	return Descriptor{}, false
}

// Executor returns the executor for an enabled tool.
func (r *Registry) Executor(name string) (Executor, bool) {
	desc, ok := r.Get(name)
	if !ok || !desc.Enabled {
		return nil, false
	}
	exec, ok := r.executors[name]
	return exec, ok
}
