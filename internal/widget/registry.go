package widget

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dukerupert/calwidget/internal/config"
)

var ErrWidgetNotFound = errors.New("calendar not found")

// Registry holds the configured widgets and the scopes and filters code has
// attached to them. Make returns a fresh Calendar for every request.
type Registry struct {
	mu      sync.RWMutex
	widgets map[string]config.WidgetConfig
	opts    Options
	scopes  map[string]ScopeFunc
	filters map[string][]Filter
}

func NewRegistry(widgets []config.WidgetConfig, opts Options) *Registry {
	r := &Registry{
		widgets: make(map[string]config.WidgetConfig, len(widgets)),
		opts:    opts,
		scopes:  make(map[string]ScopeFunc),
		filters: make(map[string][]Filter),
	}
	for name, fn := range opts.Scopes {
		r.scopes[name] = fn
	}
	for _, w := range widgets {
		r.widgets[w.Alias] = w
	}
	return r
}

// RegisterScope makes a search scope available to every widget.
func (r *Registry) RegisterScope(name string, fn ScopeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scopes[name] = fn
}

// RegisterFilter attaches a filter to every calendar made for alias.
func (r *Registry) RegisterFilter(alias string, f Filter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters[alias] = append(r.filters[alias], f)
}

// Make builds the calendar for alias.
func (r *Registry) Make(alias string) (*Calendar, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.widgets[alias]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWidgetNotFound, alias)
	}
	opts := r.opts
	opts.Scopes = make(map[string]ScopeFunc, len(r.scopes))
	for name, fn := range r.scopes {
		opts.Scopes[name] = fn
	}

	c := New(cfg, opts)
	for _, f := range r.filters[alias] {
		c.AddFilter(f)
	}
	return c, nil
}

// Aliases lists the configured widgets in alphabetical order.
func (r *Registry) Aliases() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.widgets))
	for alias := range r.widgets {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}

// Widget returns the configuration of alias.
func (r *Registry) Widget(alias string) (config.WidgetConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.widgets[alias]
	return w, ok
}
