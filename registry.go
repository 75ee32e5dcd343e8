package unistor

import (
	"net/url"
	"sort"
	"sync"
)

// Factory builds a driver accessor from scheme-specific options.
type Factory func(options map[string]string) (Accessor, error)

// Registry maps URI schemes to driver factories. It is populated
// explicitly by the caller; there is no ambient global registry, so
// construction stays deterministic and testable.
type Registry struct {
	m         sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for scheme, replacing any previous one.
func (r *Registry) Register(scheme string, f Factory) {
	r.m.Lock()
	r.factories[scheme] = f
	r.m.Unlock()
}

// Schemes returns the registered schemes in sorted order.
func (r *Registry) Schemes() []string {
	r.m.RLock()
	defer r.m.RUnlock()
	schemes := make([]string, 0, len(r.factories))
	for s := range r.factories {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// Open builds an operator for a URI like "fs:///var/data" or "mem://".
// URI query parameters are merged into options, with explicit options
// taking precedence. Layers wrap in the order supplied.
func (r *Registry) Open(uri string, options map[string]string, layers ...Layer) (*Operator, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, newError(KindInvalidInput, "open", uri, err)
	}
	if u.Scheme == "" {
		return nil, errorf(KindInvalidInput, "open", uri, "missing scheme")
	}
	r.m.RLock()
	f, ok := r.factories[u.Scheme]
	r.m.RUnlock()
	if !ok {
		return nil, errorf(KindUnsupported, "open", uri, "no driver registered for scheme %q", u.Scheme)
	}
	opts := make(map[string]string)
	for k, v := range u.Query() {
		if len(v) > 0 {
			opts[k] = v[0]
		}
	}
	if root := u.Path; root != "" && opts["root"] == "" {
		opts["root"] = root
	}
	for k, v := range options {
		opts[k] = v
	}
	a, err := f(opts)
	if err != nil {
		return nil, err
	}
	return NewOperator(a, layers...)
}

// OpenProfile builds an operator from a named profile in cfg.
func (r *Registry) OpenProfile(cfg *Config, name string, layers ...Layer) (*Operator, error) {
	p, ok := cfg.Profiles[name]
	if !ok {
		return nil, errorf(KindInvalidInput, "open", name, "profile %q not found", name)
	}
	r.m.RLock()
	f, ok := r.factories[p.Scheme]
	r.m.RUnlock()
	if !ok {
		return nil, errorf(KindUnsupported, "open", name, "no driver registered for scheme %q", p.Scheme)
	}
	a, err := f(p.Options)
	if err != nil {
		return nil, err
	}
	return NewOperator(a, layers...)
}
