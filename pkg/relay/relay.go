package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
	"liyu1981.xyz/mobilealerts-proxy/pkg/metrics"
	"liyu1981.xyz/mobilealerts-proxy/pkg/models"
	"liyu1981.xyz/mobilealerts-proxy/pkg/protocol"
)

const (
	OutcomeOK          = "ok"
	OutcomeTimeout     = "timeout"
	OutcomeUnreachable = "unreachable"
	OutcomeRejected    = "rejected"
	OutcomeCancelled   = "cancelled"
	OutcomeDropped     = "dropped"
)

// Request is one upload to pass through to the cloud untouched.
type Request struct {
	GatewayID string
	Identify  string
	Header    http.Header
	Payload   models.Payload
	Upstream  string
}

type Options struct {
	Workers        int
	QueueSize      int
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Client         *http.Client
}

// Relay forwards uploads on its own workers so the upload handler never
// waits for the cloud.
type Relay struct {
	opts   Options
	client *http.Client
	queue  chan Request

	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(opts Options) *Relay {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 10 * time.Second
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Relay{
		opts:   opts,
		client: client,
		queue:  make(chan Request, opts.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for range opts.Workers {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

// Forward queues req without blocking. It returns false, and counts the
// upload as dropped, when the queue is full or the relay is shut down.
func (r *Relay) Forward(req Request) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		metrics.RelayRequests.WithLabelValues(OutcomeDropped).Inc()
		return false
	}
	select {
	case r.queue <- req:
		metrics.RelayQueueDepth.Inc()
		return true
	default:
		metrics.RelayRequests.WithLabelValues(OutcomeDropped).Inc()
		common.GetLoggerWith(common.LoggerNameRelay,
			zap.String(common.LoggerFieldGatewayID, req.GatewayID)).
			Warn("Relay queue full, upload dropped")
		return false
	}
}

func (r *Relay) worker() {
	defer r.wg.Done()
	for req := range r.queue {
		metrics.RelayQueueDepth.Dec()
		start := time.Now()
		err := r.send(r.ctx, req)
		metrics.RelayDuration.Observe(time.Since(start).Seconds())

		outcome := Outcome(err)
		metrics.RelayRequests.WithLabelValues(outcome).Inc()

		logger := common.GetLoggerWith(common.LoggerNameRelay,
			zap.String(common.LoggerFieldGatewayID, req.GatewayID))
		if err != nil {
			logger.Warn("Relay failed, upload dropped", zap.String("outcome", outcome), zap.Error(err))
		} else {
			logger.Debug("Relayed upload", zap.Int("bytes", req.Payload.Len()))
		}
	}
}

func (r *Relay) send(ctx context.Context, req Request) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.InitialBackoff
	b.MaxInterval = r.opts.MaxBackoff
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.opts.MaxRetries)), ctx)
	return backoff.RetryNotify(
		func() error {
			metrics.RelayAttempts.Inc()
			return r.attempt(ctx, req)
		},
		policy,
		func(err error, next time.Duration) {
			common.GetLoggerWith(common.LoggerNameRelay,
				zap.String(common.LoggerFieldGatewayID, req.GatewayID)).
				Debug("Relay attempt failed, retrying", zap.Error(err), zap.Duration("next", next))
		},
	)
}

func (r *Relay) attempt(ctx context.Context, req Request) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, req.Upstream, req.Payload.Reader())
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build relay request: %w", err))
	}
	httpReq.ContentLength = int64(req.Payload.Len())
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	// written as is, the cloud expects the gateway's spelling
	httpReq.Header[protocol.IdentifyHeader] = []string{req.Identify}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		if (ctx.Err() != nil && r.ctx.Err() == nil) || isTimeout(err) {
			return fmt.Errorf("%w: %w", common.ErrRelayTimeout, err)
		}
		return fmt.Errorf("%w: %w", common.ErrRelayUnreachable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("upstream status %d: %w", resp.StatusCode, common.ErrRelayUnreachable)
	case resp.StatusCode >= 400:
		return backoff.Permanent(fmt.Errorf("upstream status %d: %w", resp.StatusCode, common.ErrRelayRejected))
	}
	return nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) && netErr.Timeout()
}

// Outcome maps the final error of a relayed upload to its counter label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled):
		return OutcomeCancelled
	case errors.Is(err, common.ErrRelayTimeout):
		return OutcomeTimeout
	case errors.Is(err, common.ErrRelayRejected):
		return OutcomeRejected
	default:
		return OutcomeUnreachable
	}
}

// Shutdown stops accepting uploads and lets queued and in-flight ones finish
// until ctx is done. Whatever is left is then abandoned.
func (r *Relay) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return fmt.Errorf("relay shutdown: %w", ctx.Err())
	}
}
