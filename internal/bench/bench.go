package bench

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/GriffinCanCode/shmbus/internal/infrastructure/logging"
	"github.com/GriffinCanCode/shmbus/internal/shared/id"
	"github.com/GriffinCanCode/shmbus/internal/shared/paths"
	"github.com/GriffinCanCode/shmbus/internal/topic"
)

// HeaderSize is the sequence number and timestamp at the start of every payload
const HeaderSize = 16

// ErrNoDeliveries reports a run in which the subscriber saw nothing
var ErrNoDeliveries = errors.New("no messages delivered")

// Options configures a run
type Options struct {
	Topic       string
	Segment     string
	Messages    int
	Rate        float64       // messages per second; 0 publishes as fast as possible
	PayloadSize int           // at least HeaderSize
	Timeout     time.Duration // how long the subscriber waits for a straggler
}

// DefaultOptions returns a small run suitable for a smoke test
func DefaultOptions() Options {
	return Options{
		Topic:       "bench",
		Segment:     "bench",
		Messages:    1000,
		Rate:        1000,
		PayloadSize: 64,
		Timeout:     time.Second,
	}
}

func (o Options) validate() error {
	if o.Messages <= 0 {
		return fmt.Errorf("messages must be positive, got %d", o.Messages)
	}
	if o.PayloadSize < HeaderSize {
		return fmt.Errorf("payload size must be at least %d bytes, got %d", HeaderSize, o.PayloadSize)
	}
	if o.Rate < 0 {
		return fmt.Errorf("rate must not be negative, got %g", o.Rate)
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", o.Timeout)
	}
	return nil
}

// Result summarizes a run. Latencies are publish-to-callback times.
type Result struct {
	RunID      id.RunID      `json:"run_id"`
	Sent       int           `json:"sent"`
	Delivered  int           `json:"delivered"`
	Superseded int           `json:"superseded"`
	Elapsed    time.Duration `json:"elapsed"`
	Throughput float64       `json:"throughput"` // deliveries per second

	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stddev"`
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	P50    time.Duration `json:"p50"`
	P90    time.Duration `json:"p90"`
	P99    time.Duration `json:"p99"`
}

// Run publishes opts.Messages payloads and measures their delivery.
func Run(ctx context.Context, ns paths.Namespace, opts Options, logger *logging.Logger) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	runID := id.NewRunID()
	logger = logger.With(zap.Stringer("run", runID))

	pub := topic.New(ns, topic.WithLogger(logger.Named("publisher")))
	defer pub.Close()
	sub := topic.New(ns, topic.WithLogger(logger.Named("subscriber")))
	defer sub.Close()

	// The topic must exist before the first publish so no notification is
	// raised on a semaphore nobody waits on yet.
	if _, err := sub.EnsureTopic(opts.Topic); err != nil {
		return nil, err
	}

	var (
		published atomic.Int64
		pubDone   atomic.Bool
		latencies = make([]float64, 0, opts.Messages)
	)
	last := uint64(opts.Messages - 1)

	subErr := make(chan error, 1)
	go func() {
		subErr <- func() error {
			for ctx.Err() == nil {
				seen := false
				delivered, err := sub.SubscribeTimeout(opts.Topic, opts.Segment, opts.Timeout, func(data []byte) error {
					seq, sent := decodeHeader(data)
					latencies = append(latencies, float64(time.Since(sent)))
					seen = seq == last
					return nil
				})
				if err != nil {
					return err
				}
				if seen || (!delivered && pubDone.Load()) {
					return nil
				}
			}
			return ctx.Err()
		}()
	}()

	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	limiter := rate.NewLimiter(limit, 1)

	start := time.Now()
	payload := make([]byte, opts.PayloadSize)
	var pubErr error
	for i := 0; i < opts.Messages; i++ {
		if pubErr = limiter.Wait(ctx); pubErr != nil {
			break
		}
		encodeHeader(payload, uint64(i), time.Now())
		if pubErr = pub.Publish(opts.Topic, opts.Segment, payload); pubErr != nil {
			break
		}
		published.Add(1)
	}
	pubDone.Store(true)

	err := <-subErr
	elapsed := time.Since(start)
	if pubErr != nil {
		return nil, fmt.Errorf("publish: %w", pubErr)
	}
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	result := summarize(latencies)
	result.RunID = runID
	result.Sent = int(published.Load())
	result.Superseded = result.Sent - result.Delivered
	result.Elapsed = elapsed
	if elapsed > 0 {
		result.Throughput = float64(result.Delivered) / elapsed.Seconds()
	}

	logger.Info("Benchmark finished",
		logging.Topic(opts.Topic),
		zap.Int("sent", result.Sent),
		zap.Int("delivered", result.Delivered),
		zap.Duration("p50", result.P50),
		zap.Duration("p99", result.P99),
	)

	if result.Delivered == 0 {
		return result, ErrNoDeliveries
	}
	return result, nil
}

func encodeHeader(buf []byte, seq uint64, sent time.Time) {
	binary.LittleEndian.PutUint64(buf[0:8], seq)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(sent.UnixNano()))
}

func decodeHeader(buf []byte) (uint64, time.Time) {
	if len(buf) < HeaderSize {
		return 0, time.Now()
	}
	seq := binary.LittleEndian.Uint64(buf[0:8])
	sent := time.Unix(0, int64(binary.LittleEndian.Uint64(buf[8:16])))
	return seq, sent
}

// summarize computes latency statistics with gonum
func summarize(latencies []float64) *Result {
	result := &Result{Delivered: len(latencies)}
	if len(latencies) == 0 {
		return result
	}

	sorted := make([]float64, len(latencies))
	copy(sorted, latencies)
	sort.Float64s(sorted)

	result.Mean = time.Duration(stat.Mean(sorted, nil))
	if len(sorted) > 1 {
		result.StdDev = time.Duration(stat.StdDev(sorted, nil))
	}
	result.Min = time.Duration(floats.Min(sorted))
	result.Max = time.Duration(floats.Max(sorted))
	result.P50 = time.Duration(stat.Quantile(0.50, stat.Empirical, sorted, nil))
	result.P90 = time.Duration(stat.Quantile(0.90, stat.Empirical, sorted, nil))
	result.P99 = time.Duration(stat.Quantile(0.99, stat.Empirical, sorted, nil))
	return result
}
