package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jekyllbuildr/buildr/cache"
	"github.com/jekyllbuildr/buildr/observe"
)

var (
	opGenerateSite = observe.OpMeta{Component: "ai", Name: "generateSite", Tags: []string{"read"}}
	opGeneratePost = observe.OpMeta{Component: "ai", Name: "generatePost", Tags: []string{"read"}}
)

// Cache operation classes, usable as keys of cache.Policy.OperationTTLs.
var (
	OpGenerateSite = opGenerateSite.OpID()
	OpGeneratePost = opGeneratePost.OpID()
)

// SiteRequest is the body of POST /ai.
type SiteRequest struct {
	Prompt  string         `json:"prompt"`
	Options map[string]any `json:"options"`
}

// SiteStructure describes a generated site. Nested parts are kept as raw JSON.
type SiteStructure struct {
	Name        string            `json:"name,omitempty"`
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description,omitempty"`
	Config      json.RawMessage   `json:"config,omitempty"`
	Layouts     []json.RawMessage `json:"layouts,omitempty"`
	Includes    []json.RawMessage `json:"includes,omitempty"`
	Posts       []json.RawMessage `json:"posts,omitempty"`
	Pages       []json.RawMessage `json:"pages,omitempty"`
	Collections json.RawMessage   `json:"collections,omitempty"`
	Assets      json.RawMessage   `json:"assets,omitempty"`
}

// SiteResponse is the answer to POST /ai.
type SiteResponse struct {
	Structure SiteStructure `json:"structure"`
}

// PostRequest is the body of POST /ai/generatePost.
type PostRequest struct {
	Title      string   `json:"title"`
	Tags       []string `json:"tags"`
	Categories []string `json:"categories"`
}

// PostResponse is the answer to POST /ai/generatePost.
type PostResponse struct {
	Content string `json:"content"`
}

// requestIdentity is what the cache key is derived from: the full URL and body.
type requestIdentity struct {
	URL  string `json:"url"`
	Body any    `json:"body"`
}

// normalized fills the useTailwind option from the prompt unless set.
func (r SiteRequest) normalized() SiteRequest {
	options := make(map[string]any, len(r.Options)+1)
	options["useTailwind"] = strings.Contains(strings.ToLower(r.Prompt), "tailwind")
	for k, v := range r.Options {
		options[k] = v
	}
	r.Options = options
	return r
}

func (r PostRequest) normalized() PostRequest {
	if r.Tags == nil {
		r.Tags = []string{}
	}
	if r.Categories == nil {
		r.Categories = []string{}
	}
	return r
}

// GenerateSite asks the service for a site structure. Results are cached.
// The useTailwind option defaults to whether the prompt mentions tailwind.
func (c *Client) GenerateSite(ctx context.Context, req SiteRequest) (SiteResponse, error) {
	return generate[SiteResponse](ctx, c, opGenerateSite, PathGenerateSite, req.normalized())
}

// GeneratePost asks the service for a post body. Results are cached.
func (c *Client) GeneratePost(ctx context.Context, req PostRequest) (PostResponse, error) {
	return generate[PostResponse](ctx, c, opGeneratePost, PathGeneratePost, req.normalized())
}

// InvalidateSite drops the cached response for req.
func (c *Client) InvalidateSite(ctx context.Context, req SiteRequest) error {
	return c.cache.Invalidate(ctx, OpGenerateSite, c.identity(PathGenerateSite, req.normalized()))
}

// InvalidatePost drops the cached response for req.
func (c *Client) InvalidatePost(ctx context.Context, req PostRequest) error {
	return c.cache.Invalidate(ctx, OpGeneratePost, c.identity(PathGeneratePost, req.normalized()))
}

func (c *Client) identity(path string, body any) requestIdentity {
	return requestIdentity{URL: c.endpoint(path), Body: body}
}

func generate[T any](ctx context.Context, c *Client, op observe.OpMeta, path string, body any) (T, error) {
	return cache.Do(ctx, c.cache, op.OpID(), c.identity(path, body), op.Tags, func(ctx context.Context) (T, error) {
		var out T
		err := c.call(ctx, op, c.authed, http.MethodPost, path, body, &out)
		return out, err
	})
}
