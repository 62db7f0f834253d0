package registry

import "sync"

var (
	instanceOnce sync.Once
	instance     *Registry
)

// GetInstance returns the process-wide registry, lazily initialized on
// first access with the default log-only identity requester. It is retained
// as a convenience; prefer constructing a Registry with NewRegistry and
// passing it explicitly from the program root.
func GetInstance() *Registry {
	instanceOnce.Do(func() {
		instance = NewRegistry(nil)
	})
	return instance
}
