package producer

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/markis/omnom/internal/logging"
	"github.com/markis/omnom/internal/metrics"
	"github.com/markis/omnom/internal/nom"
)

// Callback receives each accumulated view wrapped as a starting outcome and
// returns the outcome of parsing it.
type Callback[O any] func(nom.Outcome[nom.Unit, []byte]) nom.Outcome[[]byte, O]

// Parse adapts a parser into a push callback.
func Parse[O any](p nom.Parser[O]) Callback[O] {
	return func(start nom.Outcome[nom.Unit, []byte]) nom.Outcome[[]byte, O] {
		return nom.FlatMap(start, p)
	}
}

// ChunkError records a parse failure on one callback invocation.
type ChunkError struct {
	Chunk int           // 1-based callback invocation
	Code  nom.ErrorCode // failure code
}

// Summary aggregates what happened during a push.
type Summary struct {
	Chunks     int          // callback invocations
	Bytes      int64        // bytes produced
	Done       int          // invocations that completed a parse
	Continues  int          // Continue states seen
	Errors     []ChunkError // per-chunk parse failures
	Incomplete bool         // stream ended inside a suspended parse
	Carried    int          // unconsumed bytes left at the end
}

// Err joins the per-chunk failures, or returns nil when there were none.
func (s Summary) Err() error {
	errs := make([]error, 0, len(s.Errors))
	for _, e := range s.Errors {
		errs = append(errs, e.Code)
	}
	return errors.Join(errs...)
}

// RetryPolicy bounds how long Push waits on a producer that keeps returning
// Continue.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      50,
		InitialInterval: time.Millisecond,
		MaxInterval:     100 * time.Millisecond,
	}
}

// BackOff builds an exponential backoff that gives up after MaxRetries.
func (r RetryPolicy) BackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.InitialInterval
	b.MaxInterval = r.MaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, r.MaxRetries)
}

type pushOptions struct {
	logger   logging.Logger
	metrics  metrics.Metrics
	maxCarry int
	backOff  func() backoff.BackOff
}

// Option configures Push.
type Option func(*pushOptions)

func WithLogger(l logging.Logger) Option {
	return func(o *pushOptions) { o.logger = l }
}

func WithMetrics(m metrics.Metrics) Option {
	return func(o *pushOptions) { o.metrics = m }
}

// WithMaxCarry bounds the bytes kept between chunks. Zero means unbounded.
func WithMaxCarry(n int) Option {
	return func(o *pushOptions) { o.maxCarry = n }
}

// WithBackOff sets the delay policy applied while the producer returns Continue.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(o *pushOptions) { o.backOff = newBackOff }
}

// WithRetryPolicy is WithBackOff for a RetryPolicy.
func WithRetryPolicy(r RetryPolicy) Option {
	return WithBackOff(r.BackOff)
}

// Push drives f over the chunks of p until the producer is exhausted, sends
// its final chunk, or fails.
//
// Each Data or EOF chunk is appended to the bytes carried over from the
// previous chunk. An empty final chunk after earlier chunks is not passed to
// f unless bytes are carried or a parse is suspended. A parse that completes leaves its remaining input as the
// new carry; a parse that needs more input keeps the whole view and is
// resumed, not restarted, with the next chunk. A parse error is logged,
// recorded in the summary and its bytes dropped; the stream goes on.
//
// The loop never writes into a buffer it has handed to f, so views kept by f
// stay valid. Producer failures, a stalled producer, carry overflow and ctx
// cancellation end the push with an error.
func Push[O any](ctx context.Context, p Producer, f Callback[O], opts ...Option) (Summary, error) {
	o := pushOptions{
		logger:  logging.NewNoOpLogger(),
		metrics: metrics.NoOp(),
		backOff: DefaultRetryPolicy().BackOff,
	}
	for _, opt := range opts {
		opt(&o)
	}
	log, m := o.logger, o.metrics

	m.Timer(metrics.Push).Start()
	defer m.Timer(metrics.Push).Stop()

	retry := o.backOff()
	retry.Reset()

	var (
		summary Summary
		carry   []byte
		pending nom.Continuation[[]byte, O]
	)

	for {
		if err := ctx.Err(); err != nil {
			summary.Carried = len(carry)
			return summary, err
		}
		if p.Exhausted() {
			log.Debug("producer exhausted")
			break
		}

		state := p.Produce()
		switch state.Kind {
		case KindError:
			err := state.error()
			log.Error("producer failed: %v", err)
			summary.Carried = len(carry)
			return summary, err
		case KindContinue:
			summary.Continues++
			m.Counter(metrics.ProducerContinue).Incr()
			delay := retry.NextBackOff()
			if delay == backoff.Stop {
				log.Error("producer stalled after %d retries", summary.Continues)
				summary.Carried = len(carry)
				return summary, &Error{Code: nom.ErrStalled}
			}
			if err := sleep(ctx, delay); err != nil {
				summary.Carried = len(carry)
				return summary, err
			}
			continue
		}
		retry.Reset()

		// Readers only see the end of the stream on an extra empty read. When
		// nothing is carried or suspended that read has nothing to parse.
		if state.Kind == KindEOF && len(state.Chunk) == 0 && len(carry) == 0 && pending == nil && summary.Chunks > 0 {
			log.Debug("stream ended on a chunk boundary")
			break
		}

		summary.Bytes += int64(len(state.Chunk))
		m.Counter(metrics.PushBytes).Add(uint64(len(state.Chunk)))
		m.Histogram(metrics.ChunkBytes).Update(int64(len(state.Chunk)))

		view := join(carry, state.Chunk)
		var res nom.Outcome[[]byte, O]
		if pending != nil {
			res = pending(view)
			pending = nil
		} else {
			res = f(nom.Begin(view))
		}
		summary.Chunks++
		m.Counter(metrics.PushChunks).Incr()

		switch res.State() {
		case nom.StateError:
			log.Warn("parse error on chunk %d: %v", summary.Chunks, res.Code())
			m.Counter(metrics.ParseErrors).Incr()
			summary.Errors = append(summary.Errors, ChunkError{Chunk: summary.Chunks, Code: res.Code()})
			carry = nil
		case nom.StateIncomplete:
			m.Counter(metrics.ParseIncomplete).Incr()
			pending = res.Resume
			carry = view
		default:
			m.Counter(metrics.ParseDone).Incr()
			summary.Done++
			carry = res.Remaining()
		}
		log.Debug("chunk %d: %s, %d bytes carried", summary.Chunks, res.State(), len(carry))

		if o.maxCarry > 0 && len(carry) > o.maxCarry {
			log.Error("carry of %d bytes exceeds limit of %d", len(carry), o.maxCarry)
			summary.Carried = len(carry)
			return summary, &Error{Code: nom.ErrCarryOverflow}
		}

		if state.Kind == KindEOF {
			if pending != nil {
				log.Warn("stream ended with %d bytes in a suspended parse", len(carry))
				summary.Incomplete = true
				summary.Errors = append(summary.Errors, ChunkError{Chunk: summary.Chunks, Code: nom.ErrIncompleteAtEOF})
			}
			break
		}
	}

	summary.Carried = len(carry)
	log.Debug("push finished: %d chunks, %d bytes, %d errors", summary.Chunks, summary.Bytes, len(summary.Errors))
	return summary, nil
}

// join returns carry followed by chunk. The chunk is used as is when nothing
// is carried; otherwise both are copied into a new buffer.
func join(carry, chunk []byte) []byte {
	if len(carry) == 0 {
		return chunk
	}
	view := make([]byte, 0, len(carry)+len(chunk))
	view = append(view, carry...)
	return append(view, chunk...)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
