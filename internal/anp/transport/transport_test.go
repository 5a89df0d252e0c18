package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/anpbroker/internal/anp/rawsock"
	"github.com/marmos91/anpbroker/internal/anp/selector"
	"github.com/marmos91/anpbroker/pkg/anp"
)

func dialPair(t *testing.T) (client, server rawsock.FD) {
	t.Helper()
	ln, port, err := rawsock.Listen(0, 4)
	require.NoError(t, err)
	defer ln.Close()

	cfd, err := rawsock.NewTCP4()
	require.NoError(t, err)
	err = cfd.Connect(port)
	require.True(t, err == nil || err == rawsock.ErrWouldBlock)

	var sfd rawsock.FD = -1
	deadline := time.Now().Add(2 * time.Second)
	for sfd == -1 {
		require.True(t, time.Now().Before(deadline), "timed out accepting")
		sfd, err = ln.Accept()
		if err == rawsock.ErrWouldBlock {
			sfd = -1
			time.Sleep(time.Millisecond)
			continue
		}
		require.NoError(t, err)
	}

	// drain the connect completion on the client side
	deadline = time.Now().Add(2 * time.Second)
	for {
		require.True(t, time.Now().Before(deadline), "timed out connecting")
		cerr := cfd.ConnectResult()
		if cerr == nil {
			break
		}
		time.Sleep(time.Millisecond)
	}

	return cfd, sfd
}

func pumpUntil(t *testing.T, fds []rawsock.FD, transports []*Transport, done func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !done() {
		require.True(t, time.Now().Before(deadline), "timed out pumping transfers")
		sel := selector.New()
		for _, tr := range transports {
			tr.UpdateSelector(sel)
		}
		sel.SetTimeoutMicros(int64(50 * time.Millisecond / time.Microsecond))
		require.NoError(t, sel.Wait())
		for _, tr := range transports {
			err := tr.DoTransfer(sel)
			require.NoError(t, err)
		}
	}
}

func TestTransport_RoundTripOverRealSocket(t *testing.T) {
	cfd, sfd := dialPair(t)
	defer cfd.Close()
	defer sfd.Close()

	client := New(cfd)
	server := New(sfd)

	msg := anp.NewCommand(1, 0, 42, 100, anp.String("hello"), anp.U32(7))
	require.NoError(t, client.SendMessage(msg))

	pumpUntil(t, nil, []*Transport{client, server}, func() bool {
		return server.RecvState() == Received
	})

	got, err := server.TakeReceived()
	require.NoError(t, err)
	msg.PayloadSize = msg.PayloadSizeComputed()
	require.Equal(t, msg.Header, got.Header)
	require.Len(t, got.Elements, 2)

	s, err := got.Elements[0].AsString()
	require.NoError(t, err)
	require.Equal(t, "hello", s)
}

func TestTransport_ZeroPayloadMessage(t *testing.T) {
	cfd, sfd := dialPair(t)
	defer cfd.Close()
	defer sfd.Close()

	client := New(cfd)
	server := New(sfd)

	msg := anp.NewEvent(1, 0, 99, 0)
	require.NoError(t, client.SendMessage(msg))

	pumpUntil(t, nil, []*Transport{client, server}, func() bool {
		return server.RecvState() == Received
	})

	got, err := server.TakeReceived()
	require.NoError(t, err)
	require.Equal(t, msg.Header, got.Header)
	require.Empty(t, got.Elements)
}

func TestTransport_PeerCloseIsLost(t *testing.T) {
	cfd, sfd := dialPair(t)
	defer sfd.Close()

	server := New(sfd)
	require.NoError(t, cfd.Close())

	deadline := time.Now().Add(2 * time.Second)
	for {
		require.True(t, time.Now().Before(deadline), "timed out waiting for lost connection")
		sel := selector.New()
		server.UpdateSelector(sel)
		sel.SetTimeoutMicros(int64(50 * time.Millisecond / time.Microsecond))
		require.NoError(t, sel.Wait())
		err := server.DoTransfer(sel)
		if err != nil {
			require.ErrorIs(t, err, ErrLost)
			return
		}
	}
}

func TestTransport_SendMessageWhileSendingFails(t *testing.T) {
	cfd, sfd := dialPair(t)
	defer cfd.Close()
	defer sfd.Close()

	client := New(cfd)
	require.NoError(t, client.SendMessage(anp.NewEvent(1, 0, 1, 0)))
	err := client.SendMessage(anp.NewEvent(1, 0, 2, 0))
	require.ErrorIs(t, err, ErrAlreadySending)
}
