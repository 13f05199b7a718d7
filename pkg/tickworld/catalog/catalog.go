// Package catalog holds named scenario factories for tickworld.
//
// A scenario is an initial population of agents plus the messages injected
// before the first tick. Registering scenarios by name lets a CLI, a test or
// a replay rebuild exactly the same world from a string.
//
//	c := catalog.New[demo.Msg]()
//	c.MustRegister("pingpong", "two agents bouncing a ball", demo.PingPong)
//
//	s, err := c.Build("pingpong", cfg)
//	if err != nil {
//	    return err
//	}
//	err = s.Seed(world)
package catalog

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/randalmurphal/tickworld/pkg/tickworld"
	"github.com/randalmurphal/tickworld/pkg/tickworld/config"
)

// Sentinel errors.
var (
	// ErrUnknownScenario indicates no scenario is registered under a name.
	ErrUnknownScenario = errors.New("unknown scenario")

	// ErrDuplicateScenario indicates a name is already registered.
	ErrDuplicateScenario = errors.New("scenario already registered")
)

// Scenario is an initial world population.
type Scenario[M tickworld.Message] struct {
	// Agents are spawned in order, so the first gets the lowest ID.
	Agents []tickworld.Agent[M]
	// Inputs are injected before the first tick.
	Inputs []M
	// Observers are attached to the world, typically to end the run.
	Observers []tickworld.Observer[M]
}

// Populate spawns the scenario's agents into w and attaches its observers,
// without injecting inputs. Replays use it because the journal already
// carries the inputs.
func (s *Scenario[M]) Populate(w *tickworld.World[M]) error {
	for i, a := range s.Agents {
		if _, err := w.Spawn(a); err != nil {
			return fmt.Errorf("spawn agent %d: %w", i, err)
		}
	}
	for _, o := range s.Observers {
		if err := w.Observe(o); err != nil {
			return err
		}
	}
	return nil
}

// Seed populates w and injects the scenario's inputs.
func (s *Scenario[M]) Seed(w *tickworld.World[M]) error {
	if err := s.Populate(w); err != nil {
		return err
	}
	w.Inject(s.Inputs...)
	return nil
}

// Factory builds a scenario from configuration.
type Factory[M tickworld.Message] func(cfg config.Config) (*Scenario[M], error)

type entry[M tickworld.Message] struct {
	description string
	factory     Factory[M]
}

// Catalog is a thread-safe set of named scenario factories.
type Catalog[M tickworld.Message] struct {
	mu      sync.RWMutex
	entries map[string]entry[M]
}

// New creates an empty catalog.
func New[M tickworld.Message]() *Catalog[M] {
	return &Catalog[M]{entries: make(map[string]entry[M])}
}

// Register adds a factory under name.
func (c *Catalog[M]) Register(name, description string, factory Factory[M]) error {
	if factory == nil {
		return fmt.Errorf("scenario %q: nil factory", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateScenario, name)
	}
	c.entries[name] = entry[M]{description: description, factory: factory}
	return nil
}

// MustRegister is Register that panics on error. Meant for init-time setup.
func (c *Catalog[M]) MustRegister(name, description string, factory Factory[M]) {
	if err := c.Register(name, description, factory); err != nil {
		panic("catalog: " + err.Error())
	}
}

// Has reports whether name is registered.
func (c *Catalog[M]) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[name]
	return ok
}

// Describe returns the description registered with name.
func (c *Catalog[M]) Describe(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	return e.description, ok
}

// Names returns every registered name, sorted.
func (c *Catalog[M]) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of registered scenarios.
func (c *Catalog[M]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Build runs the factory registered under name.
func (c *Catalog[M]) Build(name string, cfg config.Config) (*Scenario[M], error) {
	c.mu.RLock()
	e, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScenario, name)
	}
	s, err := e.factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("build scenario %s: %w", name, err)
	}
	return s, nil
}
