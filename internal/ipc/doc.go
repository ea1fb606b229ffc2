// Package ipc provides the kernel object plumbing shared by semaphores and
// segments.
//
// Objects are files in a namespace directory (see package paths), mapped
// MAP_SHARED into every process that opens them. Creation is atomic: the
// object is fully initialized under a temporary name and then linked into
// place, so racing processes either win the link or attach to the winner's
// object. Nobody ever observes a half-initialized object.
//
// Error taxonomy:
//   - ErrSizeMismatch: existing segment size differs from the requested size
//   - ErrObjectMissing: handle detached or destroyed, or the name does not exist
//   - ErrInvalidName: the name cannot be mapped to a path
//   - ErrInvalidSize: a segment cannot be created with a non-positive size
//
// Busy and timed-out waits are not errors; they are reported as a false
// result by the wait operations.
package ipc
