package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"testing"

	apperrors "github.com/freeseek/freeseek-go/errors"
	"github.com/freeseek/freeseek-go/logger"
)

func tagRequest(tag string) PreRequest {
	return Named(tag, func(_ context.Context, req *Request) (Outcome[*Request], error) {
		tags, _ := req.Attributes["tags"].([]string)
		req.SetAttribute("tags", append(tags, tag))
		return Keep[*Request](), nil
	})
}

func tagResponse(tag string) PostResponse {
	return Named(tag, func(_ context.Context, resp *Response) (Outcome[*Response], error) {
		tags, _ := resp.Attributes["tags"].([]string)
		resp.SetAttribute("tags", append(tags, tag))
		return Keep[*Response](), nil
	})
}

func TestPipeline_Order(t *testing.T) {
	p := NewPipeline(logger.Nop(), true)
	p.AddPreRequest(tagRequest("A"), tagRequest("B"))
	p.AddPostResponse(tagResponse("A"), tagResponse("B"))

	req, err := p.ProcessPreRequest(context.Background(), &Request{Method: http.MethodPost})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := req.Attributes["tags"].([]string); !slices.Equal(got, []string{"A", "B"}) {
		t.Errorf("expected [A B], got %v", got)
	}

	resp, err := p.ProcessPostResponse(context.Background(), &Response{StatusCode: 200})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := resp.Attributes["tags"].([]string); !slices.Equal(got, []string{"A", "B"}) {
		t.Errorf("expected [A B], got %v", got)
	}
}

func TestPipeline_Replace(t *testing.T) {
	p := NewPipeline(nil, false)
	replacement := &Request{Method: http.MethodGet, URL: "https://replaced"}
	p.AddPreRequest(
		Named("swap", func(context.Context, *Request) (Outcome[*Request], error) {
			return Replace(replacement), nil
		}),
		Named("observe", func(_ context.Context, req *Request) (Outcome[*Request], error) {
			if req != replacement {
				t.Error("later middleware should see the replacement")
			}
			return Keep[*Request](), nil
		}),
	)

	got, err := p.ProcessPreRequest(context.Background(), &Request{URL: "https://original"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != replacement {
		t.Errorf("expected replacement, got %+v", got)
	}
}

func TestPipeline_KeepPreservesValue(t *testing.T) {
	p := NewPipeline(nil, false)
	p.AddPostResponse(Named("noop", func(context.Context, *Response) (Outcome[*Response], error) {
		return Keep[*Response](), nil
	}))

	in := &Response{StatusCode: http.StatusOK, Body: []byte("{}")}
	out, err := p.ProcessPostResponse(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != in {
		t.Error("Keep must return the original response")
	}
}

func TestPipeline_ErrorAborts(t *testing.T) {
	cause := errors.New("boom")
	ran := false

	p := NewPipeline(nil, false)
	p.AddPreRequest(
		Named("fails", func(context.Context, *Request) (Outcome[*Request], error) {
			return Keep[*Request](), cause
		}),
		Named("after", func(context.Context, *Request) (Outcome[*Request], error) {
			ran = true
			return Keep[*Request](), nil
		}),
	)

	_, err := p.ProcessPreRequest(context.Background(), &Request{})
	if !apperrors.IsMiddleware(err) {
		t.Fatalf("expected middleware error, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("expected the original cause in the chain")
	}
	appErr, _ := apperrors.As(err)
	if appErr.Details["middleware"] != "fails" || appErr.Details["stage"] != StagePreRequest {
		t.Errorf("unexpected details %v", appErr.Details)
	}
	if ran {
		t.Error("middlewares after a failure must not run")
	}
}

func TestPipeline_NilReplacement(t *testing.T) {
	p := NewPipeline(nil, false)
	p.AddPostResponse(Named("nil", func(context.Context, *Response) (Outcome[*Response], error) {
		return Replace[*Response](nil), nil
	}))

	_, err := p.ProcessPostResponse(context.Background(), &Response{})
	if !apperrors.IsMiddleware(err) {
		t.Fatalf("expected middleware error, got %v", err)
	}
}

func TestPipeline_UnnamedMiddleware(t *testing.T) {
	p := NewPipeline(nil, false)
	p.AddPreRequest(PreRequest{Fn: func(context.Context, *Request) (Outcome[*Request], error) {
		return Keep[*Request](), errors.New("x")
	}})

	_, err := p.ProcessPreRequest(context.Background(), &Request{})
	appErr, ok := apperrors.As(err)
	if !ok {
		t.Fatalf("expected *Error, got %v", err)
	}
	if appErr.Details["middleware"] != "pre_request#0" {
		t.Errorf("expected positional name, got %v", appErr.Details["middleware"])
	}
}

func TestPipeline_Len(t *testing.T) {
	p := NewPipeline(nil, false)
	p.AddPreRequest(RequestID(), UserAgent("x"))
	p.AddPostResponse(LogResponses(nil))
	if pre, post := p.Len(); pre != 2 || post != 1 {
		t.Errorf("expected (2, 1), got (%d, %d)", pre, post)
	}
}
