// Package codec converts typed values to and from the opaque byte payloads
// carried by the topic bus.
//
// Segments have a fixed size pinned by the first publish, so encodings whose
// length varies with content (JSON, msgpack, protobuf, zstd) should be
// wrapped in Fixed, which frames the payload with a length prefix and pads
// it to a constant capacity:
//
//	c := codec.Fixed(codec.JSON[Pose](), 256)
//	typed := topic.NewTyped(bus, c)
//
// Binary, Bytes and String are length-preserving and need no framing when
// every publisher uses the same value size.
package codec
