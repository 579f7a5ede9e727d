package api

import (
	"context"
	"net/http"

	"github.com/jekyllbuildr/buildr/observe"
)

var opHealth = observe.OpMeta{Component: "api", Name: "health"}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status  string `json:"status,omitempty"`
	Version string `json:"version,omitempty"`
}

// Health calls GET /health once, without authentication or retries.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var status HealthStatus
	err := c.mw.Run(ctx, opHealth, func(ctx context.Context) error {
		return c.doJSON(ctx, c.plain, http.MethodGet, PathHealth, nil, &status)
	})
	return status, err
}
