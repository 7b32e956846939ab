package virtual

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	generatorFactories = make(map[string]GeneratorFactory)
	factoryMu          sync.RWMutex
)

// RegisterGenerator makes a generator constructible by name from table
// configuration. Built-in generators register themselves in init, others
// should register before any Registry is built.
// Panics if the name is empty, the factory is nil, or the name is taken.
func RegisterGenerator(name string, factory GeneratorFactory) {
	if name == "" {
		panic("generator name cannot be empty")
	}
	if factory == nil {
		panic("generator factory cannot be nil")
	}

	factoryMu.Lock()
	defer factoryMu.Unlock()

	if _, exists := generatorFactories[name]; exists {
		panic(fmt.Sprintf("generator %q is already registered", name))
	}
	generatorFactories[name] = factory
}

func RegisteredGenerators() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	names := make([]string, 0, len(generatorFactories))
	for name := range generatorFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func IsGeneratorRegistered(name string) bool {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	_, exists := generatorFactories[name]
	return exists
}

// newGenerator constructs the named generator. Every failure is a
// configuration error carrying the field and generator name.
func newGenerator(name string, spec GeneratorSpec) (FieldGenerator, error) {
	factoryMu.RLock()
	factory, exists := generatorFactories[name]
	factoryMu.RUnlock()

	if !exists {
		return nil, &Error{
			Code:      ErrCodeUnknownGenerator,
			Field:     spec.Field,
			Generator: name,
			Message:   "no generator registered with this name",
		}
	}

	gen, err := factory(spec)
	if err != nil {
		var ve *Error
		if errors.As(err, &ve) && ve.IsConfiguration() {
			// annotate a copy, factories may return shared errors
			annotated := *ve
			if annotated.Field == "" {
				annotated.Field = spec.Field
			}
			if annotated.Generator == "" {
				annotated.Generator = name
			}
			return nil, &annotated
		}
		return nil, &Error{
			Code:      ErrCodeInvalidConfig,
			Field:     spec.Field,
			Generator: name,
			Message:   "could not construct generator",
			Err:       err,
		}
	}
	if gen == nil {
		return nil, &Error{
			Code:      ErrCodeInvalidConfig,
			Field:     spec.Field,
			Generator: name,
			Message:   "generator factory returned nil",
		}
	}
	return gen, nil
}
