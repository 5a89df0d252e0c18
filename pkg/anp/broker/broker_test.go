package broker

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/anpbroker/pkg/anp"
)

const pingNamespace = 100

type side struct {
	mu             sync.Mutex
	channels       []*Channel
	queries        []*IncomingQuery
	incomingEvents []*anp.Message
}

func (s *side) asEvents() Events {
	return Events{
		OnChannelOpen: func(ch *Channel) {
			s.mu.Lock()
			s.channels = append(s.channels, ch)
			s.mu.Unlock()
		},
		OnIncomingQuery: func(ch *Channel, q *IncomingQuery) {
			s.mu.Lock()
			s.queries = append(s.queries, q)
			s.mu.Unlock()
		},
		OnIncomingEvent: func(ch *Channel, m *anp.Message) {
			s.mu.Lock()
			s.incomingEvents = append(s.incomingEvents, m)
			s.mu.Unlock()
		},
	}
}

func (s *side) firstChannel() *Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.channels) == 0 {
		return nil
	}
	return s.channels[0]
}

func (s *side) firstQuery() *IncomingQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queries) == 0 {
		return nil
	}
	return s.queries[0]
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		require.True(t, time.Now().Before(deadline), "timed out waiting for condition")
		time.Sleep(2 * time.Millisecond)
	}
}

func startPair(t *testing.T) (serverSide, clientSide *side, srv, cli *Broker) {
	dir := t.TempDir()
	path := filepath.Join(dir, "info.txt")

	serverSide = &side{}
	clientSide = &side{}

	srv = NewServerBroker(ServerConfig{RendezvousPath: path, HandshakeTimeout: 2 * time.Second, Major: 1, Minor: 0}, serverSide.asEvents())
	require.NoError(t, srv.Start())

	cli = NewClientBroker(ClientConfig{RendezvousPath: path, Major: 1, Minor: 0}, clientSide.asEvents())
	require.NoError(t, cli.Start())
	cli.RequestConnect()

	waitUntil(t, func() bool { return serverSide.firstChannel() != nil && clientSide.firstChannel() != nil })
	return
}

func TestBroker_QueryReply(t *testing.T) {
	serverSide, _, srv, cli := startPair(t)
	defer srv.TryStop()
	defer cli.TryStop()

	clientCh := clientChannelOf(t, cli)
	q, err := clientCh.SendCommand(pingNamespace, anp.String("ping"))
	require.NoError(t, err)

	waitUntil(t, func() bool { return serverSide.firstQuery() != nil })
	iq := serverSide.firstQuery()
	s, err := iq.Command.Elements[0].AsString()
	require.NoError(t, err)
	require.Equal(t, "ping", s)
	require.NoError(t, iq.Reply(pingNamespace, anp.String("pong")))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	reply, err := q.Wait(ctx)
	require.NoError(t, err)
	s, err = reply.Elements[0].AsString()
	require.NoError(t, err)
	require.Equal(t, "pong", s)
}

func TestBroker_Cancel(t *testing.T) {
	serverSide, _, srv, cli := startPair(t)
	defer srv.TryStop()
	defer cli.TryStop()

	clientCh := clientChannelOf(t, cli)
	q, err := clientCh.SendCommand(pingNamespace, anp.String("long-running"))
	require.NoError(t, err)

	waitUntil(t, func() bool { return serverSide.firstQuery() != nil })
	iq := serverSide.firstQuery()

	clientCh.Cancel(q)

	select {
	case <-iq.Cancelled():
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for incoming query cancellation")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = q.Wait(ctx)
	require.Error(t, err)
	require.False(t, q.Pending())
}

func clientChannelOf(t *testing.T, cli *Broker) *Channel {
	t.Helper()
	chans := cli.Channels()
	require.Len(t, chans, 1)
	return chans[0]
}
