package ffi

import (
	"fmt"
	"runtime/debug"
	"sync"
)

// Static is a Library served by in-process handlers. It speaks the same
// byte protocol as a dynamic library, so built-in plugins and tests travel
// the exact path a loaded binary would.
type Static struct {
	path    string
	factory func() Handler

	mu      sync.Mutex
	next    Instance
	live    map[Instance]Handler
	closed  bool
	destroy []Instance
}

// NewStatic returns a library whose constructor calls factory. A nil
// Handler from factory is reported as ErrCreateFailed.
func NewStatic(path string, factory func() Handler) *Static {
	return &Static{
		path:    path,
		factory: factory,
		live:    make(map[Instance]Handler),
	}
}

func (s *Static) Path() string { return s.path }

func (s *Static) Create() (inst Instance, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	defer func() {
		if r := recover(); r != nil {
			inst, err = 0, fmt.Errorf("%w: panic: %v", ErrCreateFailed, r)
		}
	}()
	h := s.factory()
	if h == nil {
		return 0, ErrCreateFailed
	}
	s.next++
	s.live[s.next] = h
	return s.next, nil
}

func (s *Static) Call(inst Instance, request []byte) (reply []byte, err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	h, ok := s.live[inst]
	s.mu.Unlock()
	if !ok {
		return nil, &CallError{Status: -1, Err: fmt.Errorf("unknown instance %d", inst)}
	}

	defer func() {
		if r := recover(); r != nil {
			reply = nil
			err = &CallError{Status: -1, Err: fmt.Errorf("panic: %v\n%s", r, debug.Stack())}
		}
	}()

	// The handler must not keep or mutate the caller's buffer.
	in := append([]byte(nil), request...)
	out, err := h.Handle(in)
	if err != nil {
		return nil, &CallError{Status: 1, Err: err}
	}
	return append([]byte(nil), out...), nil
}

func (s *Static) Destroy(inst Instance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live[inst]; !ok {
		return
	}
	delete(s.live, inst)
	s.destroy = append(s.destroy, inst)
}

func (s *Static) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Destroyed lists instances passed to Destroy, in order.
func (s *Static) Destroyed() []Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Instance(nil), s.destroy...)
}

// Closed reports whether Close was called.
func (s *Static) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
