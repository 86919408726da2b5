package render

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"loopforge/internal/config"
	"loopforge/internal/services"
)

// Request describes one render job.
type Request struct {
	Prompt string
	Width  int
	Height int
}

// Renderer is implemented by each render backend variant. Render blocks for
// the backend's expected completion window and returns the path of the
// artifact the backend produced.
type Renderer interface {
	Name() string
	Render(ctx context.Context, req Request) (string, error)
	ValidateEnvironment(ctx context.Context) error
	SupportedOptions() []string
}

// Registry holds the closed set of named renderer variants. Adding a backend
// means adding a variant here, not discovering one at runtime.
type Registry struct {
	variants map[string]Renderer
}

// NewRegistry builds the registry from configuration.
func NewRegistry(cfg *config.Config, logger *slog.Logger) *Registry {
	return &Registry{
		variants: map[string]Renderer{
			"comfyui":  newComfyUI(cfg.Rendering.ComfyUI, logger),
			"invokeai": newInvokeAI(cfg.Rendering.InvokeAI, logger),
		},
	}
}

// Get returns the named variant.
func (r *Registry) Get(name string) (Renderer, error) {
	variant, ok := r.variants[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "render", "select engine",
			fmt.Sprintf("unknown engine %q (available: %s)", name, strings.Join(r.Names(), ", ")), nil)
	}
	return variant, nil
}

// Names lists the registered variant names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.variants))
	for name := range r.variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
