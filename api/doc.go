// Package api is the HTTP client for the remote site-generation service.
//
// CheckLogin and Health are plain, single-attempt calls. GenerateSite and
// GeneratePost are authenticated with a bearer token, memoized in the
// response cache under a key derived from the request URL and body, and run
// through a resilience.Executor.
package api
