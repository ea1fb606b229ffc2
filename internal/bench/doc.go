// Package bench measures publish-to-delivery latency on the topic bus.
//
// A publisher and a subscriber run on separate Bus instances with their own
// kernel object handles. Each payload carries a sequence number and its
// send time; the subscriber records the latency of every delivery.
// Because notifications coalesce, a subscriber slower than the publisher
// sees only the latest payload, and the skipped sequence numbers are
// reported as superseded rather than lost.
package bench
