// Package auth keeps the CLI signed in to the remote service.
//
// A Negotiator reuses the stored credential while its token is unexpired
// and otherwise runs the browser login protocol: it mints a random session
// identifier, sends the user to the login page, and polls the service until
// the login completes or times out. Tokens are decoded without signature
// verification; the remote service is the authority on validity.
package auth
