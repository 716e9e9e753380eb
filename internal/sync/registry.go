package sync

import (
	"fmt"
	"sort"
)

// ServiceType selects a task service implementation.
type ServiceType string

// ServiceGoogleTasks is the Google Tasks service type stored on account rows.
const ServiceGoogleTasks ServiceType = "google_tasks"

// Constructor builds a fresh, unauthenticated task service.
type Constructor func() TaskService

// Registry maps service types to constructors. It is built explicitly at
// startup and passed to the engine; there is no package-level registry.
type Registry struct {
	constructors map[ServiceType]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[ServiceType]Constructor)}
}

// Register adds a constructor. Registering a nil constructor or the same
// type twice is a programming error and panics.
func (r *Registry) Register(t ServiceType, c Constructor) {
	if c == nil {
		panic(fmt.Sprintf("sync: Register constructor is nil for type %s", t))
	}
	if _, exists := r.constructors[t]; exists {
		panic(fmt.Sprintf("sync: Register called twice for type %s", t))
	}
	r.constructors[t] = c
}

// New returns a new service for t.
func (r *Registry) New(t ServiceType) (TaskService, error) {
	c, ok := r.constructors[t]
	if !ok {
		return nil, fmt.Errorf("unknown task service type %q", t)
	}
	return c(), nil
}

// Types returns the registered types in sorted order.
func (r *Registry) Types() []ServiceType {
	types := make([]ServiceType, 0, len(r.constructors))
	for t := range r.constructors {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
