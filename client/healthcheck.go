package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const healthPath = "/health"

// HealthResponse contains health endpoint response data.
type HealthResponse struct {
	APIVersion    string `json:"api_version"`
	ServerVersion string `json:"server_version"`
	Healthy       bool   `json:"healthy"`
}

// CheckHealth makes a GET request to the health endpoint. A non-2xx response
// is shaped into a CorrelatedError so operators get the correlation id in the
// failure message.
func (c *Client) CheckHealth(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.Get(ctx, healthPath)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, ParseErrorResponse(resp)
	}

	defer resp.Body.Close()

	response := &HealthResponse{}
	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return nil, fmt.Errorf("parsing failed")
	}

	return response, nil
}
