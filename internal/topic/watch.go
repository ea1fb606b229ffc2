package topic

import (
	"context"
	"time"
)

// DefaultPoll bounds how long Watch waits before checking for cancellation
const DefaultPoll = 100 * time.Millisecond

// Watch delivers every notification of the topic to fn until ctx is done
// or fn fails. A semaphore wait cannot be interrupted, so Watch waits in
// slices of poll and notices cancellation within one slice.
func Watch(ctx context.Context, bus *Bus, topic, segment string, poll time.Duration, fn func([]byte) error) error {
	if poll <= 0 {
		poll = DefaultPoll
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := bus.SubscribeTimeout(topic, segment, poll, fn); err != nil {
			return err
		}
	}
}
