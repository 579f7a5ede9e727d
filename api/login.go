package api

import (
	"context"
	"net/http"

	"github.com/jekyllbuildr/buildr/auth"
	"github.com/jekyllbuildr/buildr/observe"
)

var opCheckLogin = observe.OpMeta{Component: "auth", Name: "checkLogin"}

type checkLoginRequest struct {
	SessionID string `json:"sessionId"`
}

// CheckLogin asks whether the login for sessionID has completed. It is
// unauthenticated and attempted once; the caller owns polling and timeouts.
func (c *Client) CheckLogin(ctx context.Context, sessionID string) (auth.LoginStatus, error) {
	var status auth.LoginStatus
	err := c.mw.Run(ctx, opCheckLogin, func(ctx context.Context) error {
		return c.doJSON(ctx, c.plain, http.MethodPost, PathCheckLogin, checkLoginRequest{SessionID: sessionID}, &status)
	})
	if err != nil {
		return auth.LoginStatus{}, err
	}
	return status, nil
}

var _ auth.StatusChecker = (*Client)(nil)
