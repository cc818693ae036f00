package freeseek

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/freeseek/freeseek-go/auth"
	"github.com/freeseek/freeseek-go/cache"
	"github.com/freeseek/freeseek-go/config"
	"github.com/freeseek/freeseek-go/httpclient"
	"github.com/freeseek/freeseek-go/logger"
	"github.com/freeseek/freeseek-go/middleware"
	"github.com/freeseek/freeseek-go/observability"
	"github.com/freeseek/freeseek-go/optimizer"
	"github.com/freeseek/freeseek-go/resilience"
	"github.com/freeseek/freeseek-go/version"
)

const breakerName = "freeseek-api"

// Transport sends single HTTP attempts. *httpclient.Client implements it.
type Transport interface {
	httpclient.Doer
	httpclient.Streamer
}

// TokenSource supplies the bearer token. *auth.TokenProvider implements it.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	// Invalidate drops the held token after the API rejected it.
	Invalidate()
}

// Client is safe for concurrent use. Create it with New and release it with Close.
type Client struct {
	cfg config.Config
	log *logger.Logger

	transport Transport
	tokens    TokenSource
	breaker   *resilience.CircuitBreaker
	tracker   *resilience.RateLimitTracker
	bulkhead  *resilience.Bulkhead
	pacer     *resilience.Pacer
	pipeline  *middleware.Pipeline
	models    *cache.Loader
	optimizer *optimizer.Optimizer
	recorder  observability.Recorder
	tracer    trace.Tracer
	metrics   counters

	closeOnce sync.Once
	closers   []func() error
}

// New creates a Client from cfg. Defaults are applied to cfg before it is
// validated. No network call is made until the first operation.
func New(cfg config.Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{
		cfg:      cfg,
		log:      logger.OrNop(o.log).WithComponent("client"),
		recorder: o.recorder,
		tracer:   o.tracer,
	}
	if c.recorder == nil {
		c.recorder = observability.Nop{}
	}
	if o.meter != nil {
		m, err := observability.NewClientMetrics(o.meter)
		if err != nil {
			return nil, fmt.Errorf("freeseek: create metrics: %w", err)
		}
		c.recorder = observability.Multi(c.recorder, m)
	}
	if c.tracer == nil {
		c.tracer = observability.Tracer(tracerName)
	}

	if err := c.initTransport(o); err != nil {
		return nil, err
	}
	if err := c.initTokens(o); err != nil {
		return nil, err
	}
	c.initResilience(o)
	if err := c.initCache(o); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initOptimizer(o); err != nil {
		c.Close()
		return nil, err
	}

	c.pipeline = middleware.NewPipeline(c.log, cfg.LogDetailed)
	c.pipeline.AddPreRequest(o.pre...)
	c.pipeline.AddPostResponse(o.post...)

	c.log.Debug("client created", logger.Fields(
		"base_url", cfg.BaseURL,
		"max_retries", cfg.MaxRetries,
		"cache", c.models != nil,
		"optimizer", c.optimizer != nil,
	))
	return c, nil
}

func (c *Client) initTransport(o options) error {
	if o.transport != nil {
		c.transport = o.transport
		return nil
	}
	hcOpts := []httpclient.Option{}
	if o.httpClient != nil {
		hcOpts = append(hcOpts, httpclient.WithHTTPClient(o.httpClient))
	}
	hc, err := httpclient.New(httpclient.Config{
		Timeout:   c.cfg.Timeout,
		UserAgent: version.UserAgent(),
		Headers:   map[string]string{"Accept": "application/json"},
	}, hcOpts...)
	if err != nil {
		return fmt.Errorf("freeseek: create transport: %w", err)
	}
	c.transport = hc
	c.closers = append(c.closers, func() error {
		hc.CloseIdleConnections()
		return nil
	})
	return nil
}

func (c *Client) initTokens(o options) error {
	if o.tokens != nil {
		c.tokens = o.tokens
		return nil
	}
	p, err := auth.New(auth.Config{
		Endpoint:        c.cfg.AuthURL,
		APIKey:          c.cfg.APIKey,
		GracePeriod:     c.cfg.Token.GracePeriod,
		RefreshAttempts: c.cfg.Token.RefreshAttempts,
	}, c.transport, c.log)
	if err != nil {
		return fmt.Errorf("freeseek: create token provider: %w", err)
	}
	c.tokens = p
	return nil
}

func (c *Client) initResilience(o options) {
	breakerCfg := resilience.CircuitBreakerConfig{
		Name:             breakerName,
		FailureThreshold: c.cfg.Circuit.FailureThreshold,
		RecoveryTimeout:  c.cfg.Circuit.RecoveryTimeout,
		IsFailure:        countsAgainstCircuit,
		OnStateChange: func(name string, from, to resilience.State) {
			c.log.Warn("circuit breaker state changed", logger.Fields(
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			))
			c.recorder.CircuitStateChanged(name, from.String(), to.String())
		},
		Now: o.now,
	}
	c.breaker = resilience.NewCircuitBreaker(breakerCfg)

	var trackerOpts []resilience.TrackerOption
	if o.now != nil {
		trackerOpts = append(trackerOpts, resilience.WithTrackerClock(o.now))
	}
	c.tracker = resilience.NewRateLimitTracker(c.log, trackerOpts...)

	if c.cfg.MaxInFlight > 0 {
		c.bulkhead = resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          breakerName,
			MaxConcurrent: c.cfg.MaxInFlight,
		})
	}
	if c.cfg.RequestsPerSecond > 0 {
		c.pacer = resilience.NewPacer(c.cfg.RequestsPerSecond, 0)
	}
}

func (c *Client) initCache(o options) error {
	store := o.store
	if store == nil && c.cfg.Cache.Enabled {
		var err error
		if c.cfg.Cache.UseRedis() {
			store, err = cache.NewRedis(c.cfg.Cache.Redis, c.log)
		} else {
			store, err = cache.NewMemory(c.cfg.Cache.Size, c.cfg.Cache.TTL)
		}
		if err != nil {
			return fmt.Errorf("freeseek: create model cache: %w", err)
		}
	}
	if store == nil {
		return nil
	}
	c.models = cache.NewLoader(store, c.cfg.Cache.TTL, c.log)
	c.closers = append(c.closers, c.models.Close)
	return nil
}

func (c *Client) initOptimizer(o options) error {
	if o.optimizer != nil {
		c.optimizer = o.optimizer
		return nil
	}
	if !c.cfg.Optimizer.Enabled {
		return nil
	}
	opt, err := optimizer.New(c.cfg.Optimizer.Config, c.tracker, c.log)
	if err != nil {
		return fmt.Errorf("freeseek: create optimizer: %w", err)
	}
	c.optimizer = opt
	return nil
}

// countsAgainstCircuit keeps the caller's own cancellation from opening the circuit.
func countsAgainstCircuit(err error) bool {
	return !httpclient.IsCanceled(err) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// AddPreRequest appends middlewares run before each logical call, in order.
func (c *Client) AddPreRequest(mws ...middleware.PreRequest) {
	c.pipeline.AddPreRequest(mws...)
}

// AddPostResponse appends middlewares run on each final response, in order.
func (c *Client) AddPostResponse(mws ...middleware.PostResponse) {
	c.pipeline.AddPostResponse(mws...)
}

// CircuitState returns the state of the circuit breaker guarding the API.
func (c *Client) CircuitState() resilience.State {
	return c.breaker.State()
}

// RateLimit returns the last quota advertised by the API.
func (c *Client) RateLimit() resilience.RateLimitState {
	return c.tracker.Snapshot()
}

// Optimizer returns the adaptive optimizer, or nil when it is disabled.
func (c *Client) Optimizer() *optimizer.Optimizer {
	return c.optimizer
}

// Close releases pooled connections and the model cache. It is safe to call
// more than once.
func (c *Client) Close() error {
	var errs []error
	c.closeOnce.Do(func() {
		for i := len(c.closers) - 1; i >= 0; i-- {
			if err := c.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

func (c *Client) url(path string) string {
	return c.cfg.BaseURL + path
}

func newHeaders() http.Header {
	h := make(http.Header)
	h.Set("Accept", "application/json")
	return h
}
