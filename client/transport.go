package client

import "net/http"

// TokenSource yields the current access token, or "" when signed out.
type TokenSource interface {
	AccessToken() string
}

// BearerTransport adds "Authorization: Bearer <token>" to every request whose
// Authorization header is unset. With no token the request goes out unchanged and
// the backend decides.
type BearerTransport struct {
	Source TokenSource
	Base   http.RoundTripper
}

func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Source == nil || req.Header.Get("Authorization") != "" {
		return base.RoundTrip(req)
	}

	token := t.Source.AccessToken()
	if token == "" {
		return base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return base.RoundTrip(clone)
}

// NewAuthorizedClient returns an *http.Client whose requests carry src's token.
func NewAuthorizedClient(src TokenSource, base *http.Client) *http.Client {
	out := &http.Client{}
	if base != nil {
		*out = *base
	}
	out.Transport = &BearerTransport{Source: src, Base: out.Transport}
	return out
}
