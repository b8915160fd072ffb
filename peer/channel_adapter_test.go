package peer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/KargJonas/sabus/peer"
)

func TestChannelAdapterDeliversPostedMessages(t *testing.T) {
	a, b := peer.NewChannelPair()
	defer a.Close()
	defer b.Close()

	received := make(chan []byte, 1)
	unsubscribe := b.OnMessage(func(msg []byte) {
		received <- msg
	})
	defer unsubscribe()

	require.NoError(t, a.Post([]byte("hello")))

	select {
	case msg := <-received:
		require.Equal(t, "hello", string(msg))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestChannelAdapterIsSymmetric(t *testing.T) {
	a, b := peer.NewChannelPair()
	defer a.Close()
	defer b.Close()

	received := make(chan []byte, 1)
	a.OnMessage(func(msg []byte) { received <- msg })

	require.NoError(t, b.Post([]byte("reply")))
	select {
	case msg := <-received:
		require.Equal(t, "reply", string(msg))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestChannelAdapterPostAfterCloseFails(t *testing.T) {
	a, b := peer.NewChannelPair()
	defer b.Close()

	require.NoError(t, a.Close())
	err := a.Post([]byte("x"))
	require.ErrorIs(t, err, peer.ErrClosed)
}

func TestChannelAdapterUnsubscribeStopsDelivery(t *testing.T) {
	a, b := peer.NewChannelPair()
	defer a.Close()
	defer b.Close()

	count := 0
	unsubscribe := b.OnMessage(func(msg []byte) { count++ })
	unsubscribe()

	require.NoError(t, a.Post([]byte("ignored")))
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 0, count)
}
