package freeseek

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	apperrors "github.com/freeseek/freeseek-go/errors"
	"github.com/freeseek/freeseek-go/middleware"
	"github.com/freeseek/freeseek-go/validation"
)

// Result is a decoded JSON object returned by the API.
type Result = map[string]any

// Model metadata cache keys.
const (
	keyModelInfo   = "model:"
	keyModelSchema = "schema:"
	keyModelList   = "models"
)

type inferPayload struct {
	Model string         `json:"model"`
	Data  map[string]any `json:"data"`
}

// Infer runs a model on data and returns the decoded response object.
// Input is validated before any network activity.
func (c *Client) Infer(ctx context.Context, model string, data map[string]any) (Result, error) {
	model, data, err := c.prepareInfer(ctx, model, data)
	if err != nil {
		return nil, err
	}
	var result Result
	if _, err := c.execute(ctx, OpInfer, model, c.inferRequest(model, data), &result); err != nil {
		return nil, err
	}
	return result, nil
}

// prepareInfer validates the input, applies the optimizer and, when enabled,
// checks data against the model schema.
func (c *Client) prepareInfer(ctx context.Context, model string, data map[string]any) (string, map[string]any, error) {
	if err := (validation.InferRequest{Model: model, Data: data}).Validate(); err != nil {
		return "", nil, err
	}
	if c.optimizer != nil {
		model, data = c.optimizer.Process(model, data)
	}
	if c.cfg.ValidateSchema {
		schema, err := c.GetModelSchema(ctx, model)
		if err != nil {
			return "", nil, err
		}
		if err := validation.CheckSchema(schema, data); err != nil {
			return "", nil, err
		}
	}
	return model, data, nil
}

func (c *Client) inferRequest(model string, data map[string]any) *middleware.Request {
	return &middleware.Request{
		Method:  http.MethodPost,
		URL:     c.url("/infer"),
		Headers: newHeaders(),
		Body:    inferPayload{Model: model, Data: data},
	}
}

func (c *Client) getRequest(path string) *middleware.Request {
	return &middleware.Request{
		Method:  http.MethodGet,
		URL:     c.url(path),
		Headers: newHeaders(),
	}
}

// GetModelInfo returns the metadata of model. Responses are cached when the
// model cache is enabled.
func (c *Client) GetModelInfo(ctx context.Context, model string) (Result, error) {
	if err := validation.ModelID(model); err != nil {
		return nil, err
	}
	body, err := c.cached(ctx, keyModelInfo+model, OpGetModelInfo, model,
		c.getRequest("/models/"+url.PathEscape(model)))
	if err != nil {
		return nil, err
	}
	var info Result
	if err := decodeCached(body, &info); err != nil {
		return nil, err
	}
	return info, nil
}

// GetModelSchema returns the input schema of model. Its "required" array
// drives schema validation of Infer calls.
func (c *Client) GetModelSchema(ctx context.Context, model string) (Result, error) {
	if err := validation.ModelID(model); err != nil {
		return nil, err
	}
	body, err := c.cached(ctx, keyModelSchema+model, OpGetModelSchema, model,
		c.getRequest("/models/"+url.PathEscape(model)+"/schema"))
	if err != nil {
		return nil, err
	}
	var schema Result
	if err := decodeCached(body, &schema); err != nil {
		return nil, err
	}
	return schema, nil
}

// ListModels returns the models available to the caller. The API may answer
// with a bare array or with an object holding it under "models" or "data".
func (c *Client) ListModels(ctx context.Context) ([]Result, error) {
	body, err := c.cached(ctx, keyModelList, OpListModels, "", c.getRequest("/models"))
	if err != nil {
		return nil, err
	}
	return decodeModelList(body)
}

// cached serves a metadata call from the model cache, executing it on a
// miss. Concurrent misses on the same key share one request.
func (c *Client) cached(ctx context.Context, key, op, model string, req *middleware.Request) ([]byte, error) {
	if c.models == nil {
		return c.execute(ctx, op, model, req, nil)
	}
	return c.models.GetOrLoad(ctx, key, func(ctx context.Context) ([]byte, error) {
		return c.execute(ctx, op, model, req, nil)
	})
}

func decodeCached(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		e := apperrors.API("invalid JSON in response", 0, body).WithCause(err)
		e.Retryable = false
		return e
	}
	return nil
}

func decodeModelList(body []byte) ([]Result, error) {
	var list []Result
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}
	var wrapped map[string]json.RawMessage
	if err := decodeCached(body, &wrapped); err != nil {
		return nil, err
	}
	for _, key := range []string{"models", "data"} {
		raw, ok := wrapped[key]
		if !ok {
			continue
		}
		if err := decodeCached(raw, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	e := apperrors.API("model list missing from response", 0, body)
	e.Retryable = false
	return nil, e
}
