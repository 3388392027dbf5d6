package table

import (
	"fmt"
	"sync"
)

// DefaultClass is the class used when neither the selection nor the settings
// name one.
const DefaultClass = "Entity"

// Getter computes a virtual attribute of an entity.
type Getter func(e *Entity) (any, error)

// Class describes one kind of entity.
type Class struct {
	// Name is what selections and settings refer to.
	Name string

	// Getters are keyed by getter name (see GetterName). A getter takes
	// precedence over the overlay and the row for its key.
	Getters map[string]Getter

	// Wrap builds the typed value returned by Entity.Record. Optional.
	Wrap func(e *Entity) any
}

// Registry maps class names to classes. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// NewRegistry creates a registry holding only DefaultClass.
func NewRegistry() *Registry {
	return &Registry{
		classes: map[string]*Class{
			DefaultClass: {Name: DefaultClass},
		},
	}
}

// Register adds a class. Names must be unique; DefaultClass may be replaced
// once to customize the fallback class.
func (r *Registry) Register(c Class) error {
	if c.Name == "" {
		return &Error{Code: ErrCodeInvalidArgument, Message: "class name is empty"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.classes[c.Name]; ok && (c.Name != DefaultClass || existing.Getters != nil || existing.Wrap != nil) {
		return &Error{
			Code:    ErrCodeInvalidArgument,
			Message: fmt.Sprintf("class %q already registered", c.Name),
			Key:     c.Name,
		}
	}
	r.classes[c.Name] = &c
	return nil
}

// Lookup returns the class registered under name.
func (r *Registry) Lookup(name string) (*Class, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.classes[name]
	if !ok {
		return nil, &Error{
			Code:    ErrCodeUnknownClass,
			Message: fmt.Sprintf("class %q is not registered", name),
			Key:     name,
		}
	}
	return c, nil
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the registry managers use unless WithClasses is given.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds a class to the default registry.
func Register(c Class) error {
	return defaultRegistry.Register(c)
}
