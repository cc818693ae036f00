package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/oauth2"

	apperrors "github.com/freeseek/freeseek-go/errors"
	"github.com/freeseek/freeseek-go/httpclient"
	"github.com/freeseek/freeseek-go/logger"
)

// TokenProvider owns the bearer token and its refresh.
type TokenProvider struct {
	cfg  Config
	doer httpclient.Doer
	log  *logger.Logger
	now  func() time.Time

	mu        sync.Mutex
	token     *oauth2.Token
	refreshes int
}

// Option configures a TokenProvider.
type Option func(*TokenProvider)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(p *TokenProvider) { p.now = now }
}

// New creates a TokenProvider. No network call is made until the first Token.
func New(cfg Config, doer httpclient.Doer, log *logger.Logger, opts ...Option) (*TokenProvider, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if doer == nil {
		return nil, errors.New("auth: transport is required")
	}
	p := &TokenProvider{
		cfg:  cfg,
		doer: doer,
		log:  logger.OrNop(log).WithComponent("auth"),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Token returns a valid token, refreshing it first when none is held or the
// held one is within the grace period of expiry.
func (p *TokenProvider) Token(ctx context.Context) (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.validLocked() {
		return cloneToken(p.token), nil
	}
	if err := p.refreshLocked(ctx); err != nil {
		return nil, err
	}
	return cloneToken(p.token), nil
}

// AccessToken returns only the bearer value of Token.
func (p *TokenProvider) AccessToken(ctx context.Context) (string, error) {
	tok, err := p.Token(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// Refresh unconditionally fetches a new token.
func (p *TokenProvider) Refresh(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshLocked(ctx)
}

// Invalidate drops the held token so the next Token call refreshes.
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	p.token = nil
	p.mu.Unlock()
}

// Refreshes reports how many successful refreshes have happened.
func (p *TokenProvider) Refreshes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshes
}

// TokenSource adapts the provider to oauth2.TokenSource bound to ctx.
func (p *TokenProvider) TokenSource(ctx context.Context) oauth2.TokenSource {
	return tokenSource{ctx: ctx, p: p}
}

type tokenSource struct {
	ctx context.Context
	p   *TokenProvider
}

func (s tokenSource) Token() (*oauth2.Token, error) {
	return s.p.Token(s.ctx)
}

func (p *TokenProvider) validLocked() bool {
	if p.token == nil || p.token.AccessToken == "" {
		return false
	}
	return p.now().Before(p.token.Expiry.Add(-p.cfg.GracePeriod))
}

type tokenResponse struct {
	AccessToken string   `json:"access_token"`
	ExpiresIn   *float64 `json:"expires_in"`
}

func (p *TokenProvider) refreshLocked(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.InitialBackoff
	bo.MaxInterval = p.cfg.MaxBackoff

	attempt := 0
	operation := func() (*oauth2.Token, error) {
		attempt++
		return p.fetch(ctx)
	}
	notify := func(err error, wait time.Duration) {
		p.log.Warn("token refresh failed, retrying", logger.Fields(
			logger.FieldAttempt, attempt,
			logger.FieldBackoff, wait.Milliseconds(),
			logger.FieldError, err.Error(),
		))
	}

	tok, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(p.cfg.RefreshAttempts)),
		backoff.WithNotify(notify),
	)
	if err != nil {
		p.log.Error("token refresh failed", logger.ErrorFields("refresh", err))
		return asAuthError(err)
	}

	p.token = tok
	p.refreshes++
	p.log.Debug("token refreshed", logger.Fields("expires_at", tok.Expiry.Format(time.RFC3339)))
	return nil
}

// fetch performs one exchange. Errors that cannot succeed on retry are
// wrapped with backoff.Permanent.
func (p *TokenProvider) fetch(ctx context.Context) (*oauth2.Token, error) {
	resp, err := p.doer.Do(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		URL:     p.cfg.Endpoint,
		Headers: http.Header{"Accept": {"application/json"}},
		Body:    map[string]string{"api_key": p.cfg.APIKey},
	})
	if err != nil {
		if httpclient.IsRetryable(err) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	var payload tokenResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, backoff.Permanent(apperrors.Authentication("malformed token response", err))
	}
	if payload.AccessToken == "" || payload.ExpiresIn == nil {
		return nil, backoff.Permanent(apperrors.Authentication("token response missing access_token or expires_in", nil))
	}

	ttl := time.Duration(*payload.ExpiresIn * float64(time.Second))
	return &oauth2.Token{
		AccessToken: payload.AccessToken,
		TokenType:   "Bearer",
		Expiry:      p.now().Add(ttl),
	}, nil
}

func asAuthError(err error) error {
	if apperrors.IsAuthentication(err) {
		return err
	}
	authErr := apperrors.Authentication("failed to obtain access token", err)
	var httpErr *httpclient.Error
	if errors.As(err, &httpErr) {
		authErr.StatusCode = httpErr.StatusCode
		authErr.Body = httpErr.Body
	}
	return authErr
}

func cloneToken(t *oauth2.Token) *oauth2.Token {
	c := *t
	return &c
}
