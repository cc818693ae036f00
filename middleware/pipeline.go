package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"

	apperrors "github.com/freeseek/freeseek-go/errors"
	"github.com/freeseek/freeseek-go/logger"
)

const (
	StagePreRequest   = "pre_request"
	StagePostResponse = "post_response"
)

var errNilReplacement = errors.New("replaced value with nil")

// Pipeline holds the registered middlewares. Registration is safe while
// calls are in flight; a call uses the chain as it was when it started.
type Pipeline struct {
	mu       sync.RWMutex
	pre      []PreRequest
	post     []PostResponse
	log      *logger.Logger
	detailed bool
}

// NewPipeline creates an empty pipeline. With detailed set, every applied
// middleware is logged at debug level.
func NewPipeline(log *logger.Logger, detailed bool) *Pipeline {
	return &Pipeline{
		log:      logger.OrNop(log).WithComponent("middleware"),
		detailed: detailed,
	}
}

// AddPreRequest appends pre-request middlewares.
func (p *Pipeline) AddPreRequest(mws ...PreRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pre = append(p.pre, mws...)
}

// AddPostResponse appends post-response middlewares.
func (p *Pipeline) AddPostResponse(mws ...PostResponse) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.post = append(p.post, mws...)
}

// Len returns the number of registered pre-request and post-response middlewares.
func (p *Pipeline) Len() (pre, post int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.pre), len(p.post)
}

// ProcessPreRequest runs all pre-request middlewares over req.
func (p *Pipeline) ProcessPreRequest(ctx context.Context, req *Request) (*Request, error) {
	p.mu.RLock()
	chain := p.pre
	p.mu.RUnlock()
	return run(ctx, p, StagePreRequest, chain, req)
}

// ProcessPostResponse runs all post-response middlewares over resp.
func (p *Pipeline) ProcessPostResponse(ctx context.Context, resp *Response) (*Response, error) {
	p.mu.RLock()
	chain := p.post
	p.mu.RUnlock()
	return run(ctx, p, StagePostResponse, chain, resp)
}

func run[T comparable](ctx context.Context, p *Pipeline, stage string, chain []Middleware[T], v T) (T, error) {
	var zero T
	for i, mw := range chain {
		name := mw.Name
		if name == "" {
			name = fmt.Sprintf("%s#%d", stage, i)
		}

		out, err := mw.Fn(ctx, v)
		if err != nil {
			p.log.WithContext(ctx).Warn("middleware failed", logger.Fields(
				"stage", stage,
				logger.FieldMiddleware, name,
				logger.FieldError, err.Error(),
			))
			return zero, apperrors.Middleware(stage, name, err)
		}

		replacement, replaced := out.Value()
		if replaced {
			if replacement == zero {
				return zero, apperrors.Middleware(stage, name, errNilReplacement)
			}
			v = replacement
		}

		if p.detailed {
			p.log.WithContext(ctx).Debug("middleware applied", logger.Fields(
				"stage", stage,
				logger.FieldMiddleware, name,
				"replaced", replaced,
			))
		}
	}
	return v, nil
}
