package topic

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/GriffinCanCode/shmbus/internal/infrastructure/logging"
	"github.com/GriffinCanCode/shmbus/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/shmbus/internal/ipc"
	"github.com/GriffinCanCode/shmbus/internal/ipc/sem"
	"github.com/GriffinCanCode/shmbus/internal/ipc/shm"
	"github.com/GriffinCanCode/shmbus/internal/shared/paths"
)

// ErrBusClosed reports an operation on a closed Bus.
var ErrBusClosed = errors.New("bus closed")

// Bus publishes and subscribes over kernel objects in one namespace.
type Bus struct {
	ns      paths.Namespace
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu       sync.RWMutex
	topics   map[string]*sem.Semaphore
	segments map[string]*segmentEntry
	closed   bool

	opens singleflight.Group
}

type segmentEntry struct {
	seg *shm.Segment
	// enforced pins the payload length to the segment size
	enforced bool
}

// Option configures a Bus
type Option func(*Bus)

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics records bus activity on m
func WithMetrics(m *monitoring.Metrics) Option {
	return func(b *Bus) {
		b.metrics = m
	}
}

// New creates a Bus over the namespace
func New(ns paths.Namespace, opts ...Option) *Bus {
	b := &Bus{
		ns:       ns,
		logger:   logging.NewNop(),
		topics:   make(map[string]*sem.Semaphore),
		segments: make(map[string]*segmentEntry),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Namespace returns the namespace the bus operates in
func (b *Bus) Namespace() paths.Namespace { return b.ns }

// EnsureTopic opens the topic's notification semaphore at initial value 0
// if this process has not already. It is idempotent.
func (b *Bus) EnsureTopic(name string) (*sem.Semaphore, error) {
	b.mu.RLock()
	t, ok := b.topics[name]
	closed := b.closed
	b.mu.RUnlock()

	if closed {
		return nil, ErrBusClosed
	}
	if ok {
		return t, nil
	}
	if err := b.ns.ValidateTopicName(name); err != nil {
		return nil, err
	}

	v, err, _ := b.opens.Do("topic/"+name, func() (interface{}, error) {
		b.mu.RLock()
		t, ok := b.topics[name]
		b.mu.RUnlock()
		if ok {
			return t, nil
		}

		t, err := sem.Open(b.ns, name, 0)
		if err != nil {
			return nil, err
		}

		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			t.Close()
			return nil, ErrBusClosed
		}
		b.topics[name] = t
		count := len(b.topics)
		b.mu.Unlock()

		b.metrics.SetRegistered(monitoring.KindTopic, count)
		b.logger.Debug("Topic registered", logging.Topic(name), zap.Bool("created", t.Created()))
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sem.Semaphore), nil
}

// EnsureSegment opens the named segment if this process has not already.
// It is idempotent: once registered, later calls return the same segment
// whatever their arguments. See shm.Open for enforceSize.
func (b *Bus) EnsureSegment(name string, enforceSize bool, size int) (*shm.Segment, error) {
	entry, err := b.ensureSegment(name, enforceSize, size)
	if err != nil {
		return nil, err
	}
	return entry.seg, nil
}

func (b *Bus) ensureSegment(name string, enforceSize bool, size int) (*segmentEntry, error) {
	b.mu.RLock()
	entry, ok := b.segments[name]
	closed := b.closed
	b.mu.RUnlock()

	if closed {
		return nil, ErrBusClosed
	}
	if ok {
		return entry, nil
	}

	v, err, _ := b.opens.Do(segmentKey(name, size), func() (interface{}, error) {
		b.mu.RLock()
		entry, ok := b.segments[name]
		b.mu.RUnlock()
		if ok {
			return entry, nil
		}

		seg, err := shm.Open(b.ns, name, enforceSize, size)
		if err != nil {
			return nil, err
		}
		entry = &segmentEntry{seg: seg, enforced: enforceSize}

		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			seg.Close()
			return nil, ErrBusClosed
		}
		// an attach and a create for the same name may both have succeeded
		if existing, ok := b.segments[name]; ok {
			b.mu.Unlock()
			seg.Close()
			return existing, nil
		}
		b.segments[name] = entry
		count := len(b.segments)
		b.mu.Unlock()

		b.metrics.SetRegistered(monitoring.KindSegment, count)
		b.logger.Debug("Segment registered",
			logging.Segment(name),
			logging.Size(seg.Size()),
			zap.Bool("created", seg.Created()),
			zap.Bool("enforced", enforceSize),
		)
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*segmentEntry), nil
}

// segmentKey separates opens that may create the segment from attach-only
// opens, so a creator never inherits an attacher's ErrObjectMissing.
func segmentKey(name string, size int) string {
	if size > 0 {
		return "segment/create/" + name
	}
	return "segment/attach/" + name
}

// NotifyTopic raises the topic's pending notification unless one is
// already pending. It reports whether this call raised it.
func (b *Bus) NotifyTopic(name string) (bool, error) {
	t, err := b.EnsureTopic(name)
	if err != nil {
		return false, err
	}
	signaled, err := t.SignalIfZero()
	if err != nil {
		return false, fmt.Errorf("notify topic %q: %w", name, err)
	}
	b.metrics.RecordNotification(name, signaled)
	return signaled, nil
}

// Publish writes payload to the segment and notifies the topic. The first
// publish to a segment fixes its size; later payloads must match it.
func (b *Bus) Publish(topic, segment string, payload []byte) error {
	return b.publish([]string{topic}, segment, payload)
}

// PublishList writes payload to the segment once, then notifies every
// topic in order.
func (b *Bus) PublishList(topics []string, segment string, payload []byte) error {
	return b.publish(topics, segment, payload)
}

func (b *Bus) publish(topics []string, segment string, payload []byte) (err error) {
	start := time.Now()
	defer func() {
		status := monitoring.StatusOK
		if err != nil {
			status = monitoring.StatusError
			b.logger.Error("Publish failed", logging.Topics(topics), logging.Segment(segment), zap.Error(err))
		}
		b.metrics.RecordPublish(segment, status, len(payload), time.Since(start))
	}()

	if len(payload) == 0 {
		return fmt.Errorf("publish to segment %q: empty payload: %w", segment, ipc.ErrInvalidSize)
	}
	for _, name := range topics {
		if err := b.ns.ValidateTopicName(name); err != nil {
			return err
		}
	}

	entry, err := b.ensureSegment(segment, true, len(payload))
	if err != nil {
		return err
	}
	if entry.enforced && entry.seg.Size() != len(payload) {
		return fmt.Errorf("publish to segment %q: payload of %d bytes, segment is %d: %w",
			segment, len(payload), entry.seg.Size(), ipc.ErrSizeMismatch)
	}

	if err := entry.seg.WithLock(func() error {
		return entry.seg.Write(payload)
	}); err != nil {
		return err
	}

	for _, name := range topics {
		if _, err := b.NotifyTopic(name); err != nil {
			return err
		}
	}

	b.logger.Debug("Published", logging.Topics(topics), logging.Segment(segment), logging.Size(len(payload)))
	return nil
}

// Subscribe blocks until the topic is notified, then passes a copy of the
// segment to fn. fn runs on the calling goroutine after the segment mutex
// has been released; its error is returned wrapped.
func (b *Bus) Subscribe(topic, segment string, fn func([]byte) error) error {
	start := time.Now()
	t, err := b.EnsureTopic(topic)
	if err == nil {
		if err = t.Wait(); err != nil {
			err = fmt.Errorf("subscribe to topic %q: %w", topic, err)
		}
	}
	if err == nil {
		err = b.deliver(topic, segment, fn)
	}
	b.record(topic, monitoring.ModeWait, true, err, start)
	return err
}

// SubscribeNoWait delivers only if a notification is already pending.
// When none is, it returns false without touching the segment or fn.
func (b *Bus) SubscribeNoWait(topic, segment string, fn func([]byte) error) (bool, error) {
	start := time.Now()
	delivered, err := b.subscribeIf(topic, segment, fn, func(t *sem.Semaphore) (bool, error) {
		return t.TryWait()
	})
	b.record(topic, monitoring.ModeNoWait, delivered, err, start)
	return delivered, err
}

// SubscribeTimeout waits up to timeout for a notification. On timeout it
// returns false and nothing is consumed.
func (b *Bus) SubscribeTimeout(topic, segment string, timeout time.Duration, fn func([]byte) error) (bool, error) {
	start := time.Now()
	delivered, err := b.subscribeIf(topic, segment, fn, func(t *sem.Semaphore) (bool, error) {
		return t.WaitTimeout(timeout)
	})
	b.record(topic, monitoring.ModeTimeout, delivered, err, start)
	return delivered, err
}

func (b *Bus) subscribeIf(topic, segment string, fn func([]byte) error, wait func(*sem.Semaphore) (bool, error)) (bool, error) {
	t, err := b.EnsureTopic(topic)
	if err != nil {
		return false, err
	}
	ok, err := wait(t)
	if err != nil {
		return false, fmt.Errorf("subscribe to topic %q: %w", topic, err)
	}
	if !ok {
		return false, nil
	}
	if err := b.deliver(topic, segment, fn); err != nil {
		return true, err
	}
	return true, nil
}

// deliver reads the segment under its mutex and hands the copy to fn
func (b *Bus) deliver(topic, segment string, fn func([]byte) error) error {
	entry, err := b.ensureSegment(segment, false, 0)
	if err != nil {
		return fmt.Errorf("subscribe to topic %q: %w", topic, err)
	}

	var data []byte
	if err := entry.seg.WithLock(func() error {
		var rerr error
		data, rerr = entry.seg.Read()
		return rerr
	}); err != nil {
		return err
	}

	if err := fn(data); err != nil {
		return fmt.Errorf("topic %q callback: %w", topic, err)
	}
	return nil
}

func (b *Bus) record(topic, mode string, delivered bool, err error, start time.Time) {
	outcome := monitoring.OutcomeDelivered
	switch {
	case err != nil:
		outcome = monitoring.OutcomeError
		b.logger.Error("Subscribe failed", logging.Topic(topic), zap.String("mode", mode), zap.Error(err))
	case !delivered && mode == monitoring.ModeNoWait:
		outcome = monitoring.OutcomeBusy
	case !delivered:
		outcome = monitoring.OutcomeTimeout
	}
	b.metrics.RecordSubscribe(topic, mode, outcome, time.Since(start))
}

// Topics returns the registered topic names in sorted order
func (b *Bus) Topics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.topics))
	for name := range b.topics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Segments returns the registered segment names in sorted order
func (b *Bus) Segments() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.segments))
	for name := range b.segments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close detaches every registered topic and segment. Kernel objects stay
// in place for other processes. Close is idempotent.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	topics, segments := b.topics, b.segments
	b.topics = make(map[string]*sem.Semaphore)
	b.segments = make(map[string]*segmentEntry)
	b.mu.Unlock()

	var err error
	for _, t := range topics {
		err = multierr.Append(err, t.Close())
	}
	for _, entry := range segments {
		err = multierr.Append(err, entry.seg.Close())
	}

	b.metrics.SetRegistered(monitoring.KindTopic, 0)
	b.metrics.SetRegistered(monitoring.KindSegment, 0)
	b.logger.Debug("Bus closed", zap.Int("topics", len(topics)), zap.Int("segments", len(segments)))
	return err
}
