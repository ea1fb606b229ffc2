package topic

import (
	"fmt"
	"time"

	"github.com/GriffinCanCode/shmbus/internal/codec"
)

// Typed binds a codec to a Bus so callers publish and receive values of T.
type Typed[T any] struct {
	bus   *Bus
	codec codec.Codec[T]
}

// NewTyped creates a typed view of bus
func NewTyped[T any](bus *Bus, c codec.Codec[T]) *Typed[T] {
	return &Typed[T]{bus: bus, codec: c}
}

// Bus returns the underlying bus
func (t *Typed[T]) Bus() *Bus { return t.bus }

// Publish encodes v and publishes it
func (t *Typed[T]) Publish(topic, segment string, v T) error {
	data, err := t.codec.Encode(v)
	if err != nil {
		return fmt.Errorf("encode for segment %q: %w", segment, err)
	}
	return t.bus.Publish(topic, segment, data)
}

// PublishList encodes v once and publishes it to every topic
func (t *Typed[T]) PublishList(topics []string, segment string, v T) error {
	data, err := t.codec.Encode(v)
	if err != nil {
		return fmt.Errorf("encode for segment %q: %w", segment, err)
	}
	return t.bus.PublishList(topics, segment, data)
}

// Subscribe blocks for the next notification and passes the decoded value to fn
func (t *Typed[T]) Subscribe(topic, segment string, fn func(T)) error {
	return t.bus.Subscribe(topic, segment, t.decode(fn))
}

// SubscribeNoWait delivers a decoded value only if one is pending
func (t *Typed[T]) SubscribeNoWait(topic, segment string, fn func(T)) (bool, error) {
	return t.bus.SubscribeNoWait(topic, segment, t.decode(fn))
}

// SubscribeTimeout waits up to timeout for a decoded value
func (t *Typed[T]) SubscribeTimeout(topic, segment string, timeout time.Duration, fn func(T)) (bool, error) {
	return t.bus.SubscribeTimeout(topic, segment, timeout, t.decode(fn))
}

func (t *Typed[T]) decode(fn func(T)) func([]byte) error {
	return func(data []byte) error {
		v, err := t.codec.Decode(data)
		if err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		fn(v)
		return nil
	}
}
