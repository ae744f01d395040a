package controller

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Info is one static registry entry: a human-readable name and the factory
// that builds the live Controller. Go has no build-time attribute
// registration, so the same effect is reached the way database/sql drivers
// register themselves — a package-level Register call from each
// subsystem's init().
type Info struct {
	Name    string
	Factory Factory
}

var (
	registryMu sync.Mutex
	registry   []Info
)

// Register adds a controller factory to the static registry. Subsystems
// call this from their own package's init(). Calling Register twice with
// the same name registers two entries; Discover does not deduplicate by
// name, mirroring inventory::collect!'s append-only semantics.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, Info{Name: name, Factory: factory})
}

// Reset clears the registry. Exists for tests that need a clean slate
// between registrations; production code never calls this.
func Reset() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = nil
}

// Registered returns a snapshot of every registered entry, in registration
// order.
func Registered() []Info {
	registryMu.Lock()
	defer registryMu.Unlock()
	out := make([]Info, len(registry))
	copy(out, registry)
	return out
}

// Discover runs every registered factory concurrently and returns the
// controllers that were built successfully. A factory that fails is logged
// and omitted.
func Discover(ctx context.Context, logger *zerolog.Logger) []Controller {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	entries := Registered()
	results := make([]Controller, len(entries))

	var wg sync.WaitGroup
	for i, entry := range entries {
		i, entry := i, entry
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := entry.Factory(ctx)
			if err != nil {
				logger.Error().Err(err).Str("controller", entry.Name).Msg("controller: factory failed, omitting from discovery")
				return
			}
			results[i] = c
		}()
	}
	wg.Wait()

	discovered := make([]Controller, 0, len(results))
	for _, c := range results {
		if c != nil {
			discovered = append(discovered, c)
		}
	}
	return discovered
}
