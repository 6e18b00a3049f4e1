package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubCloseEndsLiveSubscriptions(t *testing.T) {
	h := newHub()

	var chans []<-chan []Message
	for _, user := range []string{"u1", "u1", "u2"} {
		ch, err := h.subscribe(context.Background(), user, nil)
		require.NoError(t, err)
		chans = append(chans, ch)
	}

	closed := make(chan struct{})
	go func() {
		h.close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("close waited on subscriptions whose context never ends")
	}

	for _, ch := range chans {
		<-ch // initial snapshot
		_, ok := <-ch
		assert.False(t, ok)
	}

	_, err := h.subscribe(context.Background(), "u1", nil)
	assert.ErrorIs(t, err, ErrClosed)
	h.close()
}
