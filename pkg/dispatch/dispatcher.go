package dispatch

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
	"liyu1981.xyz/mobilealerts-proxy/pkg/metrics"
	"liyu1981.xyz/mobilealerts-proxy/pkg/models"
)

//go:generate mockgen -destination=mocks/mock_subscriber.go -package=mocks liyu1981.xyz/mobilealerts-proxy/pkg/dispatch Subscriber

// Subscriber receives updates. Calls for the same sensor are sequential and
// in order; calls for different sensors may run concurrently.
type Subscriber interface {
	Deliver(ctx context.Context, update models.Update) error
}

type SubscriberFunc func(ctx context.Context, update models.Update) error

func (f SubscriberFunc) Deliver(ctx context.Context, update models.Update) error {
	return f(ctx, update)
}

// Filter limits a subscription, empty fields match everything.
type Filter struct {
	SensorIDs []string
	Types     []models.UpdateType
}

func (f Filter) Match(u models.Update) bool {
	if len(f.SensorIDs) > 0 && !slices.Contains(f.SensorIDs, u.SensorID) {
		return false
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, u.Type) {
		return false
	}
	return true
}

type subscription struct {
	id         string
	name       string
	subscriber Subscriber
	filter     Filter
}

type Options struct {
	Shards    int
	QueueSize int
}

// Dispatcher fans updates out to subscribers. Each sensor is pinned to one
// worker so its updates are delivered in publish order.
type Dispatcher struct {
	queues []chan models.Update

	mu   sync.RWMutex
	subs []*subscription

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
	closed    chan struct{}
}

func New(opts Options) *Dispatcher {
	if opts.Shards <= 0 {
		opts.Shards = 8
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		queues: make([]chan models.Update, opts.Shards),
		ctx:    ctx,
		cancel: cancel,
		closed: make(chan struct{}),
	}
	for i := range d.queues {
		d.queues[i] = make(chan models.Update, opts.QueueSize)
		d.wg.Add(1)
		go d.run(d.queues[i])
	}
	return d
}

// Subscribe registers s and returns the subscription ID. name is used in
// logs and metrics.
func (d *Dispatcher) Subscribe(name string, s Subscriber, filter Filter) string {
	sub := &subscription{id: uuid.NewString(), name: name, subscriber: s, filter: filter}

	d.mu.Lock()
	d.subs = append(d.subs, sub)
	d.mu.Unlock()

	metrics.Subscribers.Inc()
	return sub.id
}

func (d *Dispatcher) Unsubscribe(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, sub := range d.subs {
		if sub.id == id {
			d.subs = slices.Delete(d.subs, i, i+1)
			metrics.Subscribers.Dec()
			return true
		}
	}
	return false
}

// Publish queues u on its sensor's worker. It blocks while that queue is
// full and drops the update once the dispatcher is closed.
func (d *Dispatcher) Publish(u models.Update) {
	q := d.queues[xxhash.Sum64String(u.SensorID)%uint64(len(d.queues))]
	select {
	case <-d.closed:
		metrics.UpdatesDropped.Inc()
		return
	default:
	}
	select {
	case q <- u:
		metrics.UpdatesPublished.WithLabelValues(string(u.Type)).Inc()
	case <-d.closed:
		metrics.UpdatesDropped.Inc()
	}
}

func (d *Dispatcher) run(q chan models.Update) {
	defer d.wg.Done()
	for {
		select {
		case u := <-q:
			d.deliver(u)
		case <-d.closed:
			// drain what was accepted before closing
			for {
				select {
				case u := <-q:
					d.deliver(u)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(u models.Update) {
	d.mu.RLock()
	subs := slices.Clone(d.subs)
	d.mu.RUnlock()

	for _, sub := range subs {
		if sub.filter.Match(u) {
			d.deliverTo(sub, u)
		}
	}
}

func (d *Dispatcher) deliverTo(sub *subscription, u models.Update) {
	logger := common.GetLoggerWith(common.LoggerNameDispatcher,
		zap.String("subscriber", sub.name),
		zap.String(common.LoggerFieldSensorID, u.SensorID))

	defer func() {
		if r := recover(); r != nil {
			metrics.DeliveryFailures.WithLabelValues(sub.name).Inc()
			logger.Error("Subscriber panicked", zap.Any("panic", r))
		}
	}()

	if err := sub.subscriber.Deliver(d.ctx, u); err != nil {
		metrics.DeliveryFailures.WithLabelValues(sub.name).Inc()
		logger.Warn("Subscriber failed", zap.Error(err), zap.Uint64("seq", u.Seq))
	}
}

// Close stops accepting updates, delivers what is queued and waits for the
// workers until ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.closeOnce.Do(func() { close(d.closed) })

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		return fmt.Errorf("dispatcher close: %w", ctx.Err())
	}
}
