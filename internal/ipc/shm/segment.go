package shm

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/GriffinCanCode/shmbus/internal/ipc"
	"github.com/GriffinCanCode/shmbus/internal/ipc/sem"
	"github.com/GriffinCanCode/shmbus/internal/shared/paths"
)

// Segment is a handle to a named shared-memory segment.
type Segment struct {
	name  string
	path  string
	mutex *sem.Semaphore

	mu     sync.RWMutex
	obj    *ipc.Object
	closed bool
}

// Open creates the named segment with size bytes or attaches to an existing
// one. When attaching with enforceSize, a differing size fails with
// ipc.ErrSizeMismatch; without it, the existing size is adopted and size is
// only used if the segment has to be created.
func Open(ns paths.Namespace, name string, enforceSize bool, size int) (*Segment, error) {
	if err := ns.ValidateName(name); err != nil {
		return nil, err
	}
	if enforceSize && size <= 0 {
		return nil, fmt.Errorf("segment %q size %d: %w", name, size, ipc.ErrInvalidSize)
	}

	path := ns.SegmentPath(name)
	obj, err := ipc.OpenOrCreate(ns, path, size, nil)
	if err != nil {
		return nil, fmt.Errorf("open segment %q: %w", name, err)
	}

	if !obj.Created() && enforceSize && obj.Size() != size {
		obj.Close()
		return nil, fmt.Errorf("segment %q: expected %d bytes, actual %d: %w",
			name, size, obj.Size(), ipc.ErrSizeMismatch)
	}

	mutex, err := sem.Open(ns, paths.MutexName(name), 1)
	if err != nil {
		obj.Close()
		return nil, fmt.Errorf("segment %q mutex: %w", name, err)
	}

	return &Segment{
		name:  name,
		path:  path,
		mutex: mutex,
		obj:   obj,
	}, nil
}

// Remove permanently deletes a segment and its mutex without opening them.
func Remove(ns paths.Namespace, name string) error {
	if err := ns.ValidateName(name); err != nil {
		return err
	}
	if err := ipc.Remove(ns.SegmentPath(name)); err != nil {
		return fmt.Errorf("destroy segment %q: %w", name, err)
	}
	if err := sem.Remove(ns, paths.MutexName(name)); err != nil && !errors.Is(err, ipc.ErrObjectMissing) {
		return err
	}
	return nil
}

// Name returns the segment's logical name
func (s *Segment) Name() string { return s.name }

// Size returns the segment size in bytes
func (s *Segment) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	return s.obj.Size()
}

// Created reports whether this handle created the segment
func (s *Segment) Created() bool { return s.obj.Created() }

// Mutex returns the semaphore guarding the buffer
func (s *Segment) Mutex() *sem.Semaphore { return s.mutex }

// Lock acquires the segment mutex, blocking until it is available
func (s *Segment) Lock() error {
	if err := s.mutex.Wait(); err != nil {
		return fmt.Errorf("lock segment %q: %w", s.name, err)
	}
	return nil
}

// Unlock releases the segment mutex
func (s *Segment) Unlock() error {
	if err := s.mutex.Signal(); err != nil {
		return fmt.Errorf("unlock segment %q: %w", s.name, err)
	}
	return nil
}

// WithLock runs fn while holding the segment mutex. The mutex is released
// even if fn fails or panics.
func (s *Segment) WithLock(fn func() error) (err error) {
	if err := s.Lock(); err != nil {
		return err
	}
	defer func() {
		if uerr := s.Unlock(); uerr != nil && err == nil {
			err = uerr
		}
	}()
	return fn()
}

// Write copies data over the start of the buffer. The caller must hold the
// mutex. Data longer than the segment fails with ipc.ErrSizeMismatch.
func (s *Segment) Write(data []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return s.missing()
	}
	if len(data) > s.obj.Size() {
		return fmt.Errorf("segment %q: payload of %d bytes exceeds %d: %w",
			s.name, len(data), s.obj.Size(), ipc.ErrSizeMismatch)
	}
	copy(s.obj.Data(), data)
	return nil
}

// Read returns a copy of the whole buffer. The caller must hold the mutex.
func (s *Segment) Read() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, s.missing()
	}
	buf := make([]byte, s.obj.Size())
	copy(buf, s.obj.Data())
	return buf, nil
}

// Close detaches this process from the segment and its mutex.
func (s *Segment) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return multierr.Combine(s.obj.Close(), s.mutex.Close())
}

// Destroy permanently removes the segment and its mutex for every process
// and closes this handle.
func (s *Segment) Destroy() error {
	if err := ipc.Remove(s.path); err != nil {
		return fmt.Errorf("destroy segment %q: %w", s.name, err)
	}
	derr := s.mutex.Destroy()
	if errors.Is(derr, ipc.ErrObjectMissing) {
		derr = nil
	}
	return multierr.Append(derr, s.Close())
}

func (s *Segment) missing() error {
	return fmt.Errorf("segment %q: handle closed: %w", s.name, ipc.ErrObjectMissing)
}
