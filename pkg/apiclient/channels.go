package apiclient

import "fmt"

// Channel is one entry in the admin API's channel listing.
type Channel struct {
	ID              uint64 `json:"id"`
	Open            bool   `json:"open"`
	PendingOutgoing int    `json:"pending_outgoing"`
	PendingIncoming int    `json:"pending_incoming"`
}

// PingResult reports the outcome of a diagnostic round trip on one channel.
type PingResult struct {
	ChannelID  uint64 `json:"channel_id"`
	QueryID    uint64 `json:"query_id"`
	DurationMs int64  `json:"duration_ms"`
}

// ListChannels returns every channel currently open on the broker.
func (c *Client) ListChannels() ([]Channel, error) {
	var channels []Channel
	if err := c.get("/api/v1/channels", &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// GetChannel fetches the detail of a single channel by id.
func (c *Client) GetChannel(id uint64) (*Channel, error) {
	var ch Channel
	if err := c.get(fmt.Sprintf("/api/v1/channels/%d", id), &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// PingChannel sends a diagnostic ping on the given channel and waits for the
// admin API to report the round trip.
func (c *Client) PingChannel(id uint64) (*PingResult, error) {
	var result PingResult
	if err := c.post(fmt.Sprintf("/api/v1/channels/%d/ping", id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
