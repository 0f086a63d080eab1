package pubsub

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscriber) (interface{}, bool) {
	t.Helper()
	select {
	case msg := <-sub.Channel:
		return msg, true
	case <-time.After(100 * time.Millisecond):
		return nil, false
	}
}

func TestSubscribe(t *testing.T) {
	ps := New()

	a := ps.Subscribe(TopicExportCompleted, "", 10)
	b := ps.Subscribe(TopicExportCompleted, "stations.yaml", 5)
	ps.Subscribe(TopicScopeChanged, "", 1)

	assert.Equal(t, TopicExportCompleted, a.Topic)
	assert.Equal(t, 10, cap(a.Channel))
	assert.Equal(t, "stations.yaml", b.Filter)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, ps.SubscriberCount(TopicExportCompleted))
	assert.Equal(t, 1, ps.SubscriberCount(TopicScopeChanged))
	assert.Equal(t, 0, ps.SubscriberCount(TopicGridIngested))
}

func TestUnsubscribe_ClosesChannel(t *testing.T) {
	ps := New()
	sub := ps.Subscribe(TopicExportCompleted, "", 10)

	ps.Unsubscribe(sub)

	assert.Equal(t, 0, ps.SubscriberCount(TopicExportCompleted))
	_, ok := <-sub.Channel
	assert.False(t, ok, "channel should be closed after unsubscribe")

	// unknown subscribers are ignored
	ps.Unsubscribe(&Subscriber{ID: "missing", Topic: TopicExportCompleted})
}

func TestPublish_Filters(t *testing.T) {
	ps := New()
	stations := ps.Subscribe(TopicExportCompleted, "stations.yaml", 10)
	domains := ps.Subscribe(TopicExportCompleted, "domains.yaml", 10)
	all := ps.Subscribe(TopicExportCompleted, "", 10)

	ps.Publish(TopicExportCompleted, "stations.yaml", "done")

	msg, ok := receive(t, stations)
	require.True(t, ok)
	assert.Equal(t, "done", msg)

	msg, ok = receive(t, all)
	require.True(t, ok)
	assert.Equal(t, "done", msg)

	_, ok = receive(t, domains)
	assert.False(t, ok, "filtered subscriber should not receive the message")
}

func TestPublishAll_IgnoresFilters(t *testing.T) {
	ps := New()
	subs := []*Subscriber{
		ps.Subscribe(TopicGridIngested, "AROME", 10),
		ps.Subscribe(TopicGridIngested, "ECMWF", 10),
	}

	ps.PublishAll(TopicGridIngested, "broadcast")

	for i, sub := range subs {
		msg, ok := receive(t, sub)
		require.True(t, ok, "subscriber %d timed out", i)
		assert.Equal(t, "broadcast", msg)
	}
}

func TestPublish_DoesNotBlockOnFullChannel(t *testing.T) {
	ps := New()
	sub := ps.Subscribe(TopicExportCompleted, "", 1)
	ps.Publish(TopicExportCompleted, "", "first")

	done := make(chan struct{})
	go func() {
		ps.Publish(TopicExportCompleted, "", "dropped")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Publish blocked on full channel")
	}
	assert.Equal(t, "first", <-sub.Channel)
}

func TestConcurrentSubscribePublishUnsubscribe(t *testing.T) {
	ps := New()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := ps.Subscribe(TopicExportCompleted, "", 10)
			select {
			case <-sub.Channel:
			case <-time.After(50 * time.Millisecond):
			}
			ps.Unsubscribe(sub)
		}()
	}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ps.Publish(TopicExportCompleted, "", i)
		}(i)
	}

	wg.Wait()
	assert.Equal(t, 0, ps.SubscriberCount(TopicExportCompleted))
}
