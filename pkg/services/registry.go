package services

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is the in-process catalog of service plug-ins, keyed by the
// controller-side service name.
type Registry struct {
	mu       sync.RWMutex
	services map[string]Service
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{services: make(map[string]Service)}
}

// NewDefaultRegistry creates a registry with all built-in plug-ins.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, svc := range []Service{
		PowerSwitch{},
		TemperatureLevel{},
		RoomClimateControl{},
		ValveTappet{},
		ShutterControl{},
		AirQualityLevel{},
		SmokeDetectorCheck{},
		LatestMotion{},
		ShutterContact{},
	} {
		r.Register(svc)
	}
	return r
}

// Register adds a plug-in, replacing any previous one with the same name.
func (r *Registry) Register(svc Service) {
	r.mu.Lock()
	r.services[svc.Name()] = svc
	r.mu.Unlock()
}

// Lookup returns the plug-in for a service name.
func (r *Registry) Lookup(name string) (Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[name]
	return svc, ok
}

// MustLookup returns the plug-in for a service name or an error naming it.
func (r *Registry) MustLookup(name string) (Service, error) {
	svc, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("no plug-in registered for service %q", name)
	}
	return svc, nil
}

// Names lists the registered service names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
