// Package client speaks the dashboard backend's authentication wire format.
//
// Every backend response is wrapped in a {success, message, data} envelope. [Decode]
// unwraps it for any endpoint; [Client.Login] and [Client.Refresh] use it for the two
// unauthenticated session endpoints. Failures surface as [*StatusError] (the backend
// answered and said no) or wrap [ErrTransport] (it never answered).
//
// [BearerTransport] attaches the current access token to outgoing CRUD requests.
//
// # What this package must NOT do
//
//   - Retry requests.
//   - Hold or persist tokens; callers own session state.
//   - Import goSession (no upward imports).
package client
