package present

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_FansOut(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	first, cancelFirst := b.Subscribe()
	defer cancelFirst()
	second, cancelSecond := b.Subscribe()
	defer cancelSecond()
	assert.Equal(t, 2, b.Clients())

	scene := solvedScene(t)
	require.NoError(t, b.Render(context.Background(), scene))

	for _, ch := range []<-chan []byte{first, second} {
		var msg Message
		require.NoError(t, json.Unmarshal(<-ch, &msg))
		assert.Equal(t, int64(1500), msg.TimestampMS)
		assert.Len(t, msg.Joints, scene.Pose.Len())
	}
	assert.Equal(t, uint64(2), b.Sent())
}

func TestBroadcaster_DropsForSlowSubscriber(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	ch, cancel := b.Subscribe()
	defer cancel()

	scene := solvedScene(t)
	for i := 0; i < subscriberBuffer+3; i++ {
		require.NoError(t, b.Render(context.Background(), scene))
	}

	assert.Len(t, ch, subscriberBuffer)
	assert.Equal(t, uint64(3), b.Dropped())
}

func TestBroadcaster_SkipsEmptyScenes(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	ch, cancel := b.Subscribe()
	defer cancel()

	require.NoError(t, b.Render(context.Background(), Scene{}))
	assert.Empty(t, ch)
}

func TestBroadcaster_CancelAndClose(t *testing.T) {
	b := NewBroadcaster()

	ch, cancel := b.Subscribe()
	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open, "cancel closes the channel")
	assert.Zero(t, b.Clients())

	other, _ := b.Subscribe()
	require.NoError(t, b.Close())
	_, open = <-other
	assert.False(t, open, "close disconnects subscribers")

	late, _ := b.Subscribe()
	_, open = <-late
	assert.False(t, open, "subscribing after close yields a closed channel")
	require.NoError(t, b.Close())
}
