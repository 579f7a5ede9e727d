package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBearerTransport_SetsHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := &http.Client{Transport: &BearerTransport{
		Source: TokenSourceFunc(func(context.Context) (string, error) { return "tok-123", nil }),
	}}

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	if got != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer tok-123")
	}
	if req.Header.Get("Authorization") != "" {
		t.Error("caller's request was modified")
	}
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestBearerTransport_TokenError(t *testing.T) {
	wantErr := errors.New("login cancelled")
	rt := &BearerTransport{
		Source: TokenSourceFunc(func(context.Context) (string, error) { return "", wantErr }),
		Base: roundTripFunc(func(*http.Request) (*http.Response, error) {
			t.Fatal("base transport must not be called")
			return nil, nil
		}),
	}

	body := &closeTracker{Reader: strings.NewReader("{}")}
	req, _ := http.NewRequest(http.MethodPost, "http://example.invalid", body)

	if _, err := rt.RoundTrip(req); !errors.Is(err, wantErr) {
		t.Errorf("RoundTrip() error = %v, want %v", err, wantErr)
	}
	if !body.closed {
		t.Error("request body should be closed on error")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
