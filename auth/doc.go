// Package auth manages the bearer token used to call the inference API.
//
// TokenProvider exchanges an API key for a short-lived access token at the
// authentication endpoint and keeps it fresh. A token is refreshed when none
// is held or when it is within the configured grace period of expiry. All
// reads and refreshes share one critical section so concurrent callers never
// trigger more than one refresh.
//
// TokenProvider also satisfies golang.org/x/oauth2 through TokenSource, so the
// token can be plugged into any oauth2-aware transport:
//
//	provider, _ := auth.New(cfg, transport, log)
//	tok, err := provider.Token(ctx)
//	src := provider.TokenSource(ctx) // oauth2.TokenSource
package auth
