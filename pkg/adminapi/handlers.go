package adminapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/anpbroker/pkg/anp"
	"github.com/marmos91/anpbroker/pkg/anp/broker"
)

// healthHandler serves the unauthenticated liveness probe.
type healthHandler struct {
	b         *broker.Broker
	startedAt time.Time
}

// healthData is the shape anpctl's status command expects back from
// /health, independent of the outer Response envelope.
type healthData struct {
	Service   string `json:"service"`
	StartedAt string `json:"started_at"`
	Uptime    string `json:"uptime"`
	UptimeSec int64  `json:"uptime_sec"`
}

func (h *healthHandler) liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startedAt)
	resp := okResponse(healthData{
		Service:   "anpd",
		StartedAt: h.startedAt.UTC().Format(time.RFC3339),
		Uptime:    uptime.String(),
		UptimeSec: int64(uptime.Seconds()),
	})
	resp.Status = "healthy"
	writeJSON(w, http.StatusOK, resp)
}

// channelSummary is the wire shape of one entry in the channel list.
type channelSummary struct {
	ID              uint64 `json:"id"`
	Open            bool   `json:"open"`
	PendingOutgoing int    `json:"pending_outgoing"`
	PendingIncoming int    `json:"pending_incoming"`
}

// channelHandler serves the JWT-protected channel introspection and ping
// routes, reading directly off the owning Broker.
type channelHandler struct {
	b           *broker.Broker
	pingTimeout time.Duration
}

func newChannelSummary(ch *broker.Channel) channelSummary {
	return channelSummary{
		ID:              ch.ID,
		Open:            ch.Open(),
		PendingOutgoing: ch.PendingOutgoing(),
		PendingIncoming: ch.PendingIncoming(),
	}
}

func (h *channelHandler) list(w http.ResponseWriter, r *http.Request) {
	chans := h.b.Channels()
	out := make([]channelSummary, 0, len(chans))
	for _, ch := range chans {
		out = append(out, newChannelSummary(ch))
	}
	writeJSON(w, http.StatusOK, okResponse(out))
}

func (h *channelHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseChannelID(w, r)
	if !ok {
		return
	}
	ch, ok := h.b.Channel(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse("channel not found"))
		return
	}
	writeJSON(w, http.StatusOK, okResponse(newChannelSummary(ch)))
}

// pingResult reports the outcome of a diagnostic round trip on one channel.
type pingResult struct {
	ChannelID  uint64 `json:"channel_id"`
	QueryID    uint64 `json:"query_id"`
	DurationMs int64  `json:"duration_ms"`
}

// ping sends an empty command on the reserved ping namespace and waits for
// the reply, reporting the round-trip time.
func (h *channelHandler) ping(w http.ResponseWriter, r *http.Request) {
	id, ok := parseChannelID(w, r)
	if !ok {
		return
	}
	ch, ok := h.b.Channel(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse("channel not found"))
		return
	}

	start := time.Now()
	q, err := ch.SendCommand(anp.NamespacePing)
	if err != nil {
		writeJSON(w, http.StatusConflict, errorResponse(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.pingTimeout)
	defer cancel()

	if _, err := q.Wait(ctx); err != nil {
		ch.Cancel(q)
		writeJSON(w, http.StatusGatewayTimeout, errorResponse("ping timed out: "+err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, okResponse(pingResult{
		ChannelID:  id,
		QueryID:    q.ID,
		DurationMs: time.Since(start).Milliseconds(),
	}))
}

func parseChannelID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid channel id"))
		return 0, false
	}
	return id, true
}
