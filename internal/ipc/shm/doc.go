// Package shm implements named, fixed-size shared-memory segments guarded by
// a named mutex semaphore.
//
// The segment's size is fixed when it is first created. Later openers either
// insist on the same size (enforceSize) or adopt whatever exists. Read and
// Write move the whole buffer and expect the caller to hold the segment
// mutex; WithLock is the scoped way to do that.
package shm
