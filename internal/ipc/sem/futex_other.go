//go:build !linux

package sem

import (
	"sync/atomic"
	"time"
)

// pollInterval bounds how long a waiter sleeps between counter checks on
// platforms without a cross-process futex.
const pollInterval = time.Millisecond

func futexWait(addr *uint32, val uint32, timeout time.Duration) error {
	if atomic.LoadUint32(addr) != val {
		return nil
	}
	sleep := pollInterval
	if timeout >= 0 && timeout < sleep {
		sleep = timeout
	}
	time.Sleep(sleep)
	return nil
}

func futexWake(addr *uint32, n uint32) error {
	return nil
}
