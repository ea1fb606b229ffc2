// Package topic implements broker-less publish/subscribe over named
// shared-memory segments and counting semaphores.
//
// A Bus owns two process-local registries: topics (notification
// semaphores, initial value 0) and segments (sized buffers, each guarded by
// its own mutex semaphore). Entries are opened lazily on first reference
// and stay registered until Close. Every object is create-or-attach, so
// any process may start first.
//
// Publish writes the payload under the segment mutex and then signals the
// topic with SignalIfZero: repeated publishes with no subscriber in
// between leave exactly one notification pending, and the segment holds
// the latest value. Subscribe consumes the notification, reads a copy of
// the segment under the mutex and runs the callback on the caller's
// goroutine after the mutex is released.
//
// The Bus never destroys kernel objects. Removal is an explicit
// administrative action (see package admin).
package topic
