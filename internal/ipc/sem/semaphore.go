package sem

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/GriffinCanCode/shmbus/internal/ipc"
	"github.com/GriffinCanCode/shmbus/internal/shared/paths"
)

// Object layout
const (
	objectSize   = 16
	magicOffset  = 0
	valueOffset  = 4
	initOffset   = 8
	magic uint32 = 0x53424d53 // "SMBS"

	// ValueMax is the largest value a semaphore can hold
	ValueMax = math.MaxInt32
)

var (
	// ErrNotSemaphore reports a file at a semaphore path without the header
	ErrNotSemaphore = errors.New("not a semaphore")

	// ErrOverflow reports a signal that would exceed ValueMax
	ErrOverflow = errors.New("semaphore value overflow")
)

// Semaphore is a handle to a named counting semaphore.
type Semaphore struct {
	name string
	path string
	obj  *ipc.Object
	word *uint32

	// refs counts operations in flight so Close never unmaps the counter
	// under a blocked waiter; the last one out unmaps.
	mu     sync.Mutex
	refs   int
	closed bool
}

// Open creates the named semaphore with the given initial value, or attaches
// to it if it already exists. The initial value only applies to the creator.
func Open(ns paths.Namespace, name string, initial uint32) (*Semaphore, error) {
	if err := ns.ValidateName(name); err != nil {
		return nil, err
	}
	if initial > ValueMax {
		return nil, fmt.Errorf("semaphore %q initial value %d: %w", name, initial, ErrOverflow)
	}

	path := ns.SemaphorePath(name)
	obj, err := ipc.OpenOrCreate(ns, path, objectSize, func(b []byte) {
		*word(b, valueOffset) = initial
		*word(b, initOffset) = initial
		*word(b, magicOffset) = magic
	})
	if err != nil {
		return nil, fmt.Errorf("open semaphore %q: %w", name, err)
	}

	if obj.Size() < objectSize || atomic.LoadUint32(word(obj.Data(), magicOffset)) != magic {
		obj.Close()
		return nil, fmt.Errorf("open semaphore %q: %w", name, ErrNotSemaphore)
	}

	return &Semaphore{
		name: name,
		path: path,
		obj:  obj,
		word: word(obj.Data(), valueOffset),
	}, nil
}

// Peek reads the current value of a semaphore without creating it.
func Peek(ns paths.Namespace, name string) (int, error) {
	if err := ns.ValidateName(name); err != nil {
		return 0, err
	}
	obj, err := ipc.Attach(ns.SemaphorePath(name))
	if err != nil {
		return 0, fmt.Errorf("peek semaphore %q: %w", name, err)
	}
	defer obj.Close()

	if obj.Size() < objectSize || atomic.LoadUint32(word(obj.Data(), magicOffset)) != magic {
		return 0, fmt.Errorf("peek semaphore %q: %w", name, ErrNotSemaphore)
	}
	return int(atomic.LoadUint32(word(obj.Data(), valueOffset))), nil
}

// Remove permanently deletes a named semaphore without opening it.
func Remove(ns paths.Namespace, name string) error {
	if err := ns.ValidateName(name); err != nil {
		return err
	}
	if err := ipc.Remove(ns.SemaphorePath(name)); err != nil {
		return fmt.Errorf("destroy semaphore %q: %w", name, err)
	}
	return nil
}

func word(b []byte, off int) *uint32 {
	return (*uint32)(unsafe.Pointer(&b[off]))
}

// Name returns the semaphore's logical name
func (s *Semaphore) Name() string { return s.name }

// Created reports whether this handle created the kernel object
func (s *Semaphore) Created() bool { return s.obj.Created() }

func (s *Semaphore) acquire() (*uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("semaphore %q: handle closed: %w", s.name, ipc.ErrObjectMissing)
	}
	s.refs++
	return s.word, nil
}

func (s *Semaphore) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refs--
	if s.closed && s.refs == 0 {
		s.obj.Close()
	}
}

// Value returns the current counter
func (s *Semaphore) Value() (int, error) {
	w, err := s.acquire()
	if err != nil {
		return 0, err
	}
	defer s.release()

	return int(atomic.LoadUint32(w)), nil
}

// Signal increments the counter and wakes one waiter
func (s *Semaphore) Signal() error {
	return s.SignalN(1)
}

// SignalN increments the counter n times and wakes up to n waiters
func (s *Semaphore) SignalN(n uint32) error {
	if n == 0 {
		return nil
	}
	w, err := s.acquire()
	if err != nil {
		return err
	}
	defer s.release()

	for {
		v := atomic.LoadUint32(w)
		if uint64(v)+uint64(n) > ValueMax {
			return fmt.Errorf("semaphore %q: %w", s.name, ErrOverflow)
		}
		if atomic.CompareAndSwapUint32(w, v, v+n) {
			break
		}
	}
	return s.wake(w, n)
}

// SignalIfZero increments the counter only if it is zero. It reports whether
// the counter was incremented; false means a notification was already
// pending and this one coalesced into it.
func (s *Semaphore) SignalIfZero() (bool, error) {
	w, err := s.acquire()
	if err != nil {
		return false, err
	}
	defer s.release()

	if !atomic.CompareAndSwapUint32(w, 0, 1) {
		return false, nil
	}
	return true, s.wake(w, 1)
}

// Wait blocks until the counter is positive, then decrements it. There is
// no way to cancel an in-flight Wait; use WaitTimeout and re-poll instead.
func (s *Semaphore) Wait() error {
	w, err := s.acquire()
	if err != nil {
		return err
	}
	defer s.release()

	for {
		if tryDecrement(w) {
			return nil
		}
		if err := futexWait(w, 0, -1); err != nil {
			return fmt.Errorf("semaphore %q: wait: %w", s.name, err)
		}
	}
}

// TryWait decrements the counter if it is positive. It never blocks; false
// means nothing was pending and the counter was left untouched.
func (s *Semaphore) TryWait() (bool, error) {
	w, err := s.acquire()
	if err != nil {
		return false, err
	}
	defer s.release()

	return tryDecrement(w), nil
}

// WaitTimeout waits up to d for the counter to become positive and
// decrements it. On timeout it returns false and the counter is untouched.
func (s *Semaphore) WaitTimeout(d time.Duration) (bool, error) {
	w, err := s.acquire()
	if err != nil {
		return false, err
	}
	defer s.release()

	deadline := time.Now().Add(d)
	for {
		if tryDecrement(w) {
			return true, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}
		if err := futexWait(w, 0, remaining); err != nil {
			return false, fmt.Errorf("semaphore %q: timed wait: %w", s.name, err)
		}
	}
}

// Close detaches this process from the semaphore. Operations already
// blocked on the handle keep running; new ones fail with ErrObjectMissing.
func (s *Semaphore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.refs == 0 {
		return s.obj.Close()
	}
	return nil
}

// Destroy permanently removes the semaphore for every process and closes
// this handle. Destroying a name that no longer exists fails with
// ErrObjectMissing.
func (s *Semaphore) Destroy() error {
	if err := ipc.Remove(s.path); err != nil {
		return fmt.Errorf("destroy semaphore %q: %w", s.name, err)
	}
	return s.Close()
}

func (s *Semaphore) wake(w *uint32, n uint32) error {
	if err := futexWake(w, n); err != nil {
		return fmt.Errorf("semaphore %q: wake: %w", s.name, err)
	}
	return nil
}

func tryDecrement(w *uint32) bool {
	for {
		v := atomic.LoadUint32(w)
		if v == 0 {
			return false
		}
		if atomic.CompareAndSwapUint32(w, v, v-1) {
			return true
		}
	}
}
