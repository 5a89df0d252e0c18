package adminapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/anpbroker/pkg/adminapi/auth"
	"github.com/marmos91/anpbroker/pkg/anp"
	"github.com/marmos91/anpbroker/pkg/anp/broker"
)

const pingNamespace = anp.NamespacePing

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		require.True(t, time.Now().Before(deadline), "timed out waiting for condition")
		time.Sleep(2 * time.Millisecond)
	}
}

func startServerWithOneChannel(t *testing.T) (*broker.Broker, *broker.Broker) {
	dir := t.TempDir()
	path := filepath.Join(dir, "info.txt")

	srv := broker.NewServerBroker(broker.ServerConfig{RendezvousPath: path, HandshakeTimeout: 2 * time.Second, Major: 1, Minor: 0}, broker.Events{})
	require.NoError(t, srv.Start())

	cli := broker.NewClientBroker(broker.ClientConfig{RendezvousPath: path, Major: 1, Minor: 0}, broker.Events{
		OnIncomingQuery: func(ch *broker.Channel, q *broker.IncomingQuery) {
			_ = q.Reply(pingNamespace)
		},
	})
	require.NoError(t, cli.Start())
	cli.RequestConnect()

	waitUntil(t, func() bool { return len(srv.Channels()) == 1 })
	t.Cleanup(func() {
		srv.TryStop()
		cli.TryStop()
	})
	return srv, cli
}

func TestLiveness_Unauthenticated(t *testing.T) {
	srv, _ := startServerWithOneChannel(t)
	jwtSvc, err := auth.NewService("anpd-test")
	require.NoError(t, err)

	router := NewRouter(srv, jwtSvc, Config{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, "healthy", resp.Status)
}

func TestChannelList_RequiresAuth(t *testing.T) {
	srv, _ := startServerWithOneChannel(t)
	jwtSvc, err := auth.NewService("anpd-test")
	require.NoError(t, err)

	router := NewRouter(srv, jwtSvc, Config{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/channels", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChannelList_WithToken(t *testing.T) {
	srv, _ := startServerWithOneChannel(t)
	jwtSvc, err := auth.NewService("anpd-test")
	require.NoError(t, err)
	token, err := jwtSvc.Mint(time.Hour)
	require.NoError(t, err)

	router := NewRouter(srv, jwtSvc, Config{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/channels", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	list, ok := resp.Data.([]interface{})
	require.True(t, ok)
	require.Len(t, list, 1)
}

func TestChannelPing_RoundTrip(t *testing.T) {
	srv, _ := startServerWithOneChannel(t)
	jwtSvc, err := auth.NewService("anpd-test")
	require.NoError(t, err)
	token, err := jwtSvc.Mint(time.Hour)
	require.NoError(t, err)

	router := NewRouter(srv, jwtSvc, Config{PingTimeout: 2 * time.Second})
	id := srv.Channels()[0].ID

	req := httptest.NewRequest(http.MethodPost, channelPingPath(id), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, "ok", resp.Status)
}

func TestChannelGet_UnknownID(t *testing.T) {
	srv, _ := startServerWithOneChannel(t)
	jwtSvc, err := auth.NewService("anpd-test")
	require.NoError(t, err)
	token, err := jwtSvc.Mint(time.Hour)
	require.NoError(t, err)

	router := NewRouter(srv, jwtSvc, Config{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/channels/9999", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func channelPingPath(id uint64) string {
	return "/api/v1/channels/" + strconv.FormatUint(id, 10) + "/ping"
}
