// Package jwt reads claims out of access tokens without verifying their signature.
//
// The client never holds the backend's signing key, so nothing here is a trust
// decision: the backend remains the authority on whether a token is valid. The claims
// are used only to expire a session early when the token says it is already dead.
package jwt
