package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "chapters", map[string]string{"url": "a"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "chapters", map[string]string{"url": "b"})
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "chapters", msgs[0].Topic)

	msgs[0].Topic = "modified"
	require.Equal(t, "chapters", pub.Messages()[0].Topic, "Messages() must return a copy")
	require.NoError(t, pub.Close())
}

func TestPublisherErr(t *testing.T) {
	t.Parallel()

	pub := New()
	pub.Err = errors.New("unavailable")
	_, err := pub.Publish(context.Background(), "chapters", nil)
	require.EqualError(t, err, "unavailable")
	require.Empty(t, pub.Messages())
}
