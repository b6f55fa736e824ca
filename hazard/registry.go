package hazard

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Registry holds at most one domain per protected type and tears them down
// in reverse install order. It replaces implicit process-global state with
// an explicitly wired lifecycle: install at startup, Shutdown at exit.
type Registry struct {
	mu      sync.Mutex
	domains map[reflect.Type]entry
	order   []reflect.Type
	log     hclog.Logger
}

type entry struct {
	domain any
	close  func()
}

// NewRegistry constructs an empty registry. A nil logger disables logging.
func NewRegistry(log hclog.Logger) *Registry {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Registry{domains: make(map[reflect.Type]entry), log: log}
}

// Install registers d as the canonical domain for T. Installing a second
// domain for the same type is an error, never silent aliasing.
func Install[T any](r *Registry, d *Domain[T]) error {
	key := reflect.TypeOf((*T)(nil)).Elem()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.domains[key]; ok {
		return fmt.Errorf("hazard: domain for %s already installed", key)
	}
	r.domains[key] = entry{domain: d, close: d.Close}
	r.order = append(r.order, key)
	r.log.Debug("installed hazard domain", "type", key.String(), "capacity", d.Capacity())
	return nil
}

// Lookup returns the installed domain for T, if any.
func Lookup[T any](r *Registry) (*Domain[T], bool) {
	key := reflect.TypeOf((*T)(nil)).Elem()
	r.mu.Lock()
	e, ok := r.domains[key]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	return e.domain.(*Domain[T]), true
}

// Shutdown closes every installed domain in reverse install order and
// empties the registry.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.order) - 1; i >= 0; i-- {
		key := r.order[i]
		r.log.Debug("closing hazard domain", "type", key.String())
		r.domains[key].close()
		delete(r.domains, key)
	}
	r.order = nil
}
