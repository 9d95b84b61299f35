package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
	"liyu1981.xyz/mobilealerts-proxy/pkg/dispatch/mocks"
	"liyu1981.xyz/mobilealerts-proxy/pkg/models"
	_ "liyu1981.xyz/mobilealerts-proxy/pkg/testing"
)

type collector struct {
	mu      sync.Mutex
	updates []models.Update
}

func (c *collector) Deliver(_ context.Context, u models.Update) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, u)
	return nil
}

func (c *collector) all() []models.Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Update(nil), c.updates...)
}

func closeDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
}

func TestDispatcher_OrderPerSensor(t *testing.T) {
	common.SetTestLoggerNop()
	d := New(Options{Shards: 4, QueueSize: 8})
	c := &collector{}
	d.Subscribe("collector", c, Filter{})

	const sensors = 10
	const perSensor = 100

	var wg sync.WaitGroup
	for s := range sensors {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perSensor {
				d.Publish(models.Update{Type: models.UpdateValue, SensorID: fmt.Sprintf("S%02d", s), Seq: uint64(i + 1)})
			}
		}()
	}
	wg.Wait()
	closeDispatcher(t, d)

	updates := c.all()
	require.Len(t, updates, sensors*perSensor)
	last := map[string]uint64{}
	for _, u := range updates {
		assert.Equal(t, last[u.SensorID]+1, u.Seq, "sensor %s out of order", u.SensorID)
		last[u.SensorID] = u.Seq
	}
}

func TestDispatcher_FailingSubscriberIsIsolated(t *testing.T) {
	common.SetTestLoggerNop()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	failing := mocks.NewMockSubscriber(ctrl)
	failing.EXPECT().Deliver(gomock.Any(), gomock.Any()).Return(errors.New("entity layer down")).Times(3)

	panicking := SubscriberFunc(func(context.Context, models.Update) error {
		panic("broken subscriber")
	})

	d := New(Options{Shards: 2})
	c := &collector{}
	d.Subscribe("failing", failing, Filter{})
	d.Subscribe("panicking", panicking, Filter{})
	d.Subscribe("collector", c, Filter{})

	for i := range 3 {
		d.Publish(models.Update{SensorID: "02AABBCCDDEE", Seq: uint64(i + 1)})
	}
	closeDispatcher(t, d)

	assert.Len(t, c.all(), 3)
}

func TestDispatcher_FilterAndUnsubscribe(t *testing.T) {
	common.SetTestLoggerNop()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	d := New(Options{Shards: 1})

	availability := mocks.NewMockSubscriber(ctrl)
	availability.EXPECT().
		Deliver(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, u models.Update) error {
			assert.Equal(t, models.UpdateAvailability, u.Type)
			assert.Equal(t, "A", u.SensorID)
			return nil
		}).
		Times(1)

	d.Subscribe("availability", availability, Filter{SensorIDs: []string{"A"}, Types: []models.UpdateType{models.UpdateAvailability}})

	c := &collector{}
	id := d.Subscribe("collector", c, Filter{})
	assert.NotEmpty(t, id)

	d.Publish(models.Update{Type: models.UpdateAvailability, SensorID: "A", Seq: 1})
	d.Publish(models.Update{Type: models.UpdateValue, SensorID: "A", Seq: 2})
	d.Publish(models.Update{Type: models.UpdateAvailability, SensorID: "B", Seq: 1})

	// single shard, so once the collector saw all three the filter saw them too
	require.Eventually(t, func() bool { return len(c.all()) == 3 }, time.Second, 5*time.Millisecond)

	assert.True(t, d.Unsubscribe(id))
	assert.False(t, d.Unsubscribe(id))

	d.Publish(models.Update{Type: models.UpdateValue, SensorID: "B", Seq: 2})
	closeDispatcher(t, d)
	assert.Len(t, c.all(), 3)
}

func TestDispatcher_PublishAfterClose(t *testing.T) {
	common.SetTestLoggerNop()
	d := New(Options{})
	c := &collector{}
	d.Subscribe("collector", c, Filter{})
	closeDispatcher(t, d)

	d.Publish(models.Update{SensorID: "A"})
	assert.Empty(t, c.all())
	// closing twice is fine
	closeDispatcher(t, d)
}

func TestDispatcher_CloseTimesOut(t *testing.T) {
	common.SetTestLoggerNop()
	release := make(chan struct{})
	d := New(Options{Shards: 1})
	d.Subscribe("slow", SubscriberFunc(func(context.Context, models.Update) error {
		<-release
		return nil
	}), Filter{})

	d.Publish(models.Update{SensorID: "A"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestFilter_Match(t *testing.T) {
	u := models.Update{Type: models.UpdateValue, SensorID: "A"}
	assert.True(t, Filter{}.Match(u))
	assert.True(t, Filter{SensorIDs: []string{"B", "A"}}.Match(u))
	assert.False(t, Filter{SensorIDs: []string{"B"}}.Match(u))
	assert.False(t, Filter{Types: []models.UpdateType{models.UpdateAvailability}}.Match(u))
}
