package agent

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrAlreadyRegistered is returned when a handler slot is filled twice.
	ErrAlreadyRegistered = errors.New("handler already registered")

	// ErrRegistrySealed is returned when registering after the server has
	// started accepting requests.
	ErrRegistrySealed = errors.New("registry is sealed")

	// ErrNilHandler is returned when registering a nil handler.
	ErrNilHandler = errors.New("handler is nil")
)

// DefaultName is used for handlers registered without a name.
const DefaultName = "agent"

// Registered is a handler together with the name used for its spans.
type Registered[H any] struct {
	Name    string
	Handler H
}

// Registry holds the invoke and stream handler slots. Each slot can be
// filled once. Registration must finish before Seal; reads are safe from any
// goroutine and do not lock.
type Registry struct {
	mu     sync.Mutex
	sealed atomic.Bool
	invoke atomic.Pointer[Registered[InvokeHandler]]
	stream atomic.Pointer[Registered[StreamHandler]]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// RegisterInvoke fills the invoke slot.
func (r *Registry) RegisterInvoke(name string, h InvokeHandler) error {
	if isNilHandler(h) {
		return fmt.Errorf("invoke handler %q: %w", name, ErrNilHandler)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed.Load() {
		return fmt.Errorf("invoke handler %q: %w", name, ErrRegistrySealed)
	}
	if existing := r.invoke.Load(); existing != nil {
		return fmt.Errorf("invoke handler %q (existing %q): %w", name, existing.Name, ErrAlreadyRegistered)
	}
	r.invoke.Store(&Registered[InvokeHandler]{Name: handlerName(name), Handler: h})
	return nil
}

// RegisterStream fills the stream slot.
func (r *Registry) RegisterStream(name string, h StreamHandler) error {
	if isNilHandler(h) {
		return fmt.Errorf("stream handler %q: %w", name, ErrNilHandler)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed.Load() {
		return fmt.Errorf("stream handler %q: %w", name, ErrRegistrySealed)
	}
	if existing := r.stream.Load(); existing != nil {
		return fmt.Errorf("stream handler %q (existing %q): %w", name, existing.Name, ErrAlreadyRegistered)
	}
	r.stream.Store(&Registered[StreamHandler]{Name: handlerName(name), Handler: h})
	return nil
}

// MustRegisterInvoke is like RegisterInvoke but panics on error.
func (r *Registry) MustRegisterInvoke(name string, h InvokeHandler) {
	if err := r.RegisterInvoke(name, h); err != nil {
		panic(err)
	}
}

// MustRegisterStream is like RegisterStream but panics on error.
func (r *Registry) MustRegisterStream(name string, h StreamHandler) {
	if err := r.RegisterStream(name, h); err != nil {
		panic(err)
	}
}

// Seal rejects further registrations. It is idempotent.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed.Store(true)
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	return r.sealed.Load()
}

// Invoke returns the registered invoke handler, or nil.
func (r *Registry) Invoke() *Registered[InvokeHandler] {
	return r.invoke.Load()
}

// Stream returns the registered stream handler, or nil.
func (r *Registry) Stream() *Registered[StreamHandler] {
	return r.stream.Load()
}

func handlerName(name string) string {
	if name == "" {
		return DefaultName
	}
	return name
}

func isNilHandler(h any) bool {
	switch f := h.(type) {
	case nil:
		return true
	case InvokeFunc:
		return f == nil
	case AsyncInvokeFunc:
		return f == nil
	case StreamFunc:
		return f == nil
	case ChannelStreamFunc:
		return f == nil
	}
	return false
}
