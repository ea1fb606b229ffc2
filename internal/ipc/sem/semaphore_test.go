package sem

import (
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/shmbus/internal/ipc"
	"github.com/GriffinCanCode/shmbus/internal/testutil"
)

func value(t *testing.T, s *Semaphore) int {
	t.Helper()
	v, err := s.Value()
	require.NoError(t, err)
	return v
}

func TestOpenCreatesWithInitialValue(t *testing.T) {
	ns := testutil.Namespace(t)

	s, err := Open(ns, "mutex", 1)
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, s.Created())
	assert.Equal(t, "mutex", s.Name())
	assert.Equal(t, 1, value(t, s))
}

func TestOpenAttachesToExisting(t *testing.T) {
	ns := testutil.Namespace(t)

	first, err := Open(ns, "shared", 3)
	require.NoError(t, err)
	defer first.Close()

	// The initial value of a later opener is ignored
	second, err := Open(ns, "shared", 0)
	require.NoError(t, err)
	defer second.Close()

	assert.False(t, second.Created())
	assert.Equal(t, 3, value(t, second))

	require.NoError(t, first.Signal())
	assert.Equal(t, 4, value(t, second))
}

func TestOpenRejectsForeignFile(t *testing.T) {
	ns := testutil.Namespace(t)
	require.NoError(t, os.WriteFile(ns.SemaphorePath("junk"), make([]byte, 16), 0o600))

	_, err := Open(ns, "junk", 0)
	assert.ErrorIs(t, err, ErrNotSemaphore)
}

func TestOpenRejectsInvalidName(t *testing.T) {
	ns := testutil.Namespace(t)

	_, err := Open(ns, "a/b", 0)
	assert.ErrorIs(t, err, ipc.ErrInvalidName)
}

func TestSignalAndTryWait(t *testing.T) {
	ns := testutil.Namespace(t)
	s, err := Open(ns, "counter", 0)
	require.NoError(t, err)
	defer s.Close()

	ok, err := s.TryWait()
	require.NoError(t, err)
	assert.False(t, ok, "nothing pending")
	assert.Equal(t, 0, value(t, s), "failed try has no side effect")

	require.NoError(t, s.SignalN(3))
	assert.Equal(t, 3, value(t, s))

	for i := 0; i < 3; i++ {
		ok, err := s.TryWait()
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err = s.TryWait()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSignalIfZeroCoalesces(t *testing.T) {
	ns := testutil.Namespace(t)
	s, err := Open(ns, "topic", 0)
	require.NoError(t, err)
	defer s.Close()

	signaled, err := s.SignalIfZero()
	require.NoError(t, err)
	assert.True(t, signaled)

	for i := 0; i < 5; i++ {
		signaled, err = s.SignalIfZero()
		require.NoError(t, err)
		assert.False(t, signaled)
	}
	assert.Equal(t, 1, value(t, s))
}

func TestSignalIfZeroIsAtomicAcrossHandles(t *testing.T) {
	ns := testutil.Namespace(t)

	const signalers = 32
	handles := make([]*Semaphore, signalers)
	for i := range handles {
		s, err := Open(ns, "flag", 0)
		require.NoError(t, err)
		defer s.Close()
		handles[i] = s
	}

	var signaled atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for _, s := range handles {
		wg.Add(1)
		go func(s *Semaphore) {
			defer wg.Done()
			<-start
			ok, err := s.SignalIfZero()
			assert.NoError(t, err)
			if ok {
				signaled.Add(1)
			}
		}(s)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), signaled.Load())
	assert.Equal(t, 1, value(t, handles[0]))
}

func TestWaitBlocksUntilSignaled(t *testing.T) {
	ns := testutil.Namespace(t)
	waiter, err := Open(ns, "event", 0)
	require.NoError(t, err)
	defer waiter.Close()

	signaler, err := Open(ns, "event", 0)
	require.NoError(t, err)
	defer signaler.Close()

	done := make(chan error, 1)
	go func() { done <- waiter.Wait() }()

	select {
	case <-done:
		t.Fatal("Wait returned before any signal")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, signaler.Signal())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Wait was not woken by Signal")
	}
	assert.Equal(t, 0, value(t, signaler))
}

func TestWaitTimeout(t *testing.T) {
	ns := testutil.Namespace(t)
	s, err := Open(ns, "timed", 0)
	require.NoError(t, err)
	defer s.Close()

	start := time.Now()
	ok, err := s.WaitTimeout(100 * time.Millisecond)
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
	assert.Equal(t, 0, value(t, s), "timeout never decrements")

	go func() {
		time.Sleep(20 * time.Millisecond)
		s.Signal()
	}()
	start = time.Now()
	ok, err = s.WaitTimeout(5 * time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestWaitTimeoutZeroBehavesLikeTryWait(t *testing.T) {
	ns := testutil.Namespace(t)
	s, err := Open(ns, "zero", 1)
	require.NoError(t, err)
	defer s.Close()

	ok, err := s.WaitTimeout(0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.WaitTimeout(0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMutualExclusion(t *testing.T) {
	ns := testutil.Namespace(t)

	const workers = 8
	const rounds = 200
	var inside, violations atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		s, err := Open(ns, "lock", 1)
		require.NoError(t, err)
		defer s.Close()

		wg.Add(1)
		go func(s *Semaphore) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				if !assert.NoError(t, s.Wait()) {
					return
				}
				if inside.Add(1) != 1 {
					violations.Add(1)
				}
				inside.Add(-1)
				assert.NoError(t, s.Signal())
			}
		}(s)
	}
	wg.Wait()

	assert.Zero(t, violations.Load())
}

func TestOverflow(t *testing.T) {
	ns := testutil.Namespace(t)
	s, err := Open(ns, "full", ValueMax)
	require.NoError(t, err)
	defer s.Close()

	assert.ErrorIs(t, s.Signal(), ErrOverflow)
	assert.Equal(t, ValueMax, value(t, s))
}

func TestClosedHandle(t *testing.T) {
	ns := testutil.Namespace(t)
	s, err := Open(ns, "closed", 1)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Wait(), ipc.ErrObjectMissing)
	_, err = s.TryWait()
	assert.ErrorIs(t, err, ipc.ErrObjectMissing)
	_, err = s.WaitTimeout(time.Millisecond)
	assert.ErrorIs(t, err, ipc.ErrObjectMissing)
	assert.ErrorIs(t, s.Signal(), ipc.ErrObjectMissing)

	// Close detaches only; the object persists for other processes
	v, err := Peek(ns, "closed")
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestCloseWhileWaiting(t *testing.T) {
	ns := testutil.Namespace(t)
	s, err := Open(ns, "busy", 0)
	require.NoError(t, err)

	other, err := Open(ns, "busy", 0)
	require.NoError(t, err)
	defer other.Close()

	done := make(chan error, 1)
	go func() { done <- s.Wait() }()
	time.Sleep(20 * time.Millisecond)

	// The blocked waiter keeps its mapping until it is woken
	require.NoError(t, s.Close())
	require.NoError(t, other.Signal())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter not woken after Close")
	}
}

func TestDestroy(t *testing.T) {
	ns := testutil.Namespace(t)
	s, err := Open(ns, "doomed", 0)
	require.NoError(t, err)

	require.NoError(t, s.Destroy())
	assert.False(t, ipc.Exists(ns.SemaphorePath("doomed")))

	_, err = s.TryWait()
	assert.ErrorIs(t, err, ipc.ErrObjectMissing)

	assert.ErrorIs(t, s.Destroy(), ipc.ErrObjectMissing)
	assert.ErrorIs(t, Remove(ns, "doomed"), ipc.ErrObjectMissing)

	_, err = Peek(ns, "doomed")
	assert.ErrorIs(t, err, ipc.ErrObjectMissing)
}

func TestRemove(t *testing.T) {
	ns := testutil.Namespace(t)
	s, err := Open(ns, "admin", 0)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	require.NoError(t, Remove(ns, "admin"))
	assert.False(t, ipc.Exists(ns.SemaphorePath("admin")))
}
