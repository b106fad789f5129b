// Package hook is a small synchronous dispatcher for extension points such as
// "calendar.extendQuery".
package hook

import (
	"sync"
)

// Listener receives the arguments passed to Fire. A non-nil result halts
// dispatch and is returned to the caller.
type Listener func(args ...any) any

// Bus keeps listeners per event name.
type Bus struct {
	mu        sync.RWMutex
	listeners map[string][]Listener
}

func NewBus() *Bus {
	return &Bus{listeners: make(map[string][]Listener)}
}

// Listen registers fn for name. Listeners run in registration order.
func (b *Bus) Listen(name string, fn Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[name] = append(b.listeners[name], fn)
}

// Fire calls the listeners of name and returns the first non-nil result, or
// nil when every listener returned nil. A nil Bus fires nothing.
func (b *Bus) Fire(name string, args ...any) any {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	listeners := append([]Listener(nil), b.listeners[name]...)
	b.mu.RUnlock()

	for _, fn := range listeners {
		if result := fn(args...); result != nil {
			return result
		}
	}
	return nil
}

// Has reports whether anything listens on name.
func (b *Bus) Has(name string) bool {
	if b == nil {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[name]) > 0
}
