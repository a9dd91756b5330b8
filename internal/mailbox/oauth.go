package mailbox

import (
	"context"

	"golang.org/x/oauth2"
)

// OAuth2 describes a bearer token credential. With a refresh token and a
// token URL the access token is renewed whenever it expires.
type OAuth2 struct {
	AccessToken  string
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenURL     string
}

// Enabled reports whether any token is configured.
func (o OAuth2) Enabled() bool {
	return o.AccessToken != "" || o.RefreshToken != ""
}

// TokenSource returns nil when no token is configured.
func (o OAuth2) TokenSource(ctx context.Context) oauth2.TokenSource {
	if !o.Enabled() {
		return nil
	}
	if o.RefreshToken == "" || o.TokenURL == "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: o.AccessToken})
	}

	conf := &oauth2.Config{
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: o.TokenURL},
	}
	// without an expiry a configured access token would count as valid forever,
	// so start from the refresh token alone
	return conf.TokenSource(ctx, &oauth2.Token{RefreshToken: o.RefreshToken})
}
