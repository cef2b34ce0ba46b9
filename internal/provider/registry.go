package provider

import (
	"sort"
	"strings"
	"sync"

	"github.com/spuff-dev/spuff/internal/schema"
)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a Factory available under name (lowercased). Adapter
// packages call this from an init() func, so importing an adapter is what
// registers it.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[strings.ToLower(name)] = f
}

// New builds a Provider for the given registry name. Unknown names return
// a distinguished UnknownProvider error listing what is registered.
func New(name, token string, timeouts schema.Timeouts) (Provider, error) {
	mu.RLock()
	f, ok := factories[strings.ToLower(name)]
	mu.RUnlock()
	if !ok {
		return nil, NewUnknownProviderError(name, Names())
	}
	return f(token, timeouts)
}

// Names returns the sorted list of registered provider names.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsSupported reports whether name has a registered factory.
func IsSupported(name string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := factories[strings.ToLower(name)]
	return ok
}
