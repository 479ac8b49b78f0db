package eventbus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	defer sub.Close()

	b.Publish(Event{Kind: KindQueueChanged, Data: []string{"a"}})

	got := <-sub.Events()
	require.Equal(t, KindQueueChanged, got.Kind)
	require.Equal(t, []string{"a"}, got.Data)
}

func TestPublishFansOutToMultipleSubscribers(t *testing.T) {
	b := New()
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	defer s1.Close()
	defer s2.Close()

	b.Publish(Event{Kind: KindStatusChanged})

	require.Equal(t, KindStatusChanged, (<-s1.Events()).Kind)
	require.Equal(t, KindStatusChanged, (<-s2.Events()).Kind)
}

func TestSlowSubscriberDropsRatherThanBlocks(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	defer sub.Close()

	for i := 0; i < backlog+10; i++ {
		b.Publish(Event{Kind: KindOutputsChanged})
	}

	require.Len(t, sub.Events(), backlog)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	require.Equal(t, 1, b.SubscriberCount())

	sub.Close()
	require.Equal(t, 0, b.SubscriberCount())

	_, ok := <-sub.Events()
	require.False(t, ok)
}

func TestMetadataEventCarriesTag(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	defer sub.Close()

	b.Publish(Event{Kind: KindMetadata, Tag: "album_art", Data: "cover.jpg"})

	got := <-sub.Events()
	require.Equal(t, "album_art", got.Tag)
}
