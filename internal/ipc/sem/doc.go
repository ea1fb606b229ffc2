// Package sem implements named, kernel-persistent counting semaphores.
//
// A semaphore is a 16-byte object in the namespace directory holding a magic
// word and the counter. Every process that opens the same name maps the same
// counter; waiters sleep on it with futex(2) and are woken by signalers. The
// counter only ever changes through atomic compare-and-swap, so SignalIfZero
// is a single atomic step rather than a read followed by a post.
//
// Lifecycle:
//   - Open creates the semaphore or attaches to an existing one
//   - Close detaches this process; other processes are unaffected
//   - Destroy removes the name for every process and must be called
//     explicitly by the one designated owner
//
// Example Usage:
//
//	s, err := sem.Open(ns, "imu", 0)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	s.SignalIfZero()
//	ok, err := s.WaitTimeout(200 * time.Millisecond)
package sem
