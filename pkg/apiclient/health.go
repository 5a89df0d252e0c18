package apiclient

// HealthData is the payload of the admin API's /health endpoint.
type HealthData struct {
	Service   string `json:"service"`
	StartedAt string `json:"started_at"`
	Uptime    string `json:"uptime"`
	UptimeSec int64  `json:"uptime_sec"`
}

// Health calls the unauthenticated liveness probe and returns the envelope's
// data field. The envelope's top-level Status field is not returned.
func (c *Client) Health() (*HealthData, error) {
	var data HealthData
	if err := c.get("/health", &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Healthy reports whether Health returns without error: the admin API is
// reachable, answers with a status below 400, and its data decodes.
func (c *Client) Healthy() bool {
	_, err := c.Health()
	return err == nil
}
