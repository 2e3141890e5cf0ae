package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"

	"github.com/fogcitymarathoner/azure-batch-samples/pkg/model"
)

const (
	moduleName    = "batchsamples/batch"
	moduleVersion = "v0.1.0"

	contentTypeJSON = "application/json; odata=minimalmetadata"
)

// Client provides methods to interact with one Batch account.
type Client struct {
	endpoint string
	pipeline runtime.Pipeline
	logger   *slog.Logger
}

// NewClient creates a Batch client. Authentication is Shared Key when
// cfg.AccountKey is set, otherwise bearer tokens from cfg.Credential.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.ServiceURL == "" {
		return nil, errors.New("batch: service URL is required")
	}
	u, err := url.Parse(cfg.ServiceURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("batch: invalid service URL %q", cfg.ServiceURL)
	}

	auth, err := authPolicy(cfg)
	if err != nil {
		return nil, err
	}

	opts := &policy.ClientOptions{Retry: cfg.retryOptions()}
	if cfg.Transport != nil {
		opts.Transport = cfg.Transport
	}

	pl := runtime.NewPipeline(moduleName, moduleVersion, runtime.PipelineOptions{
		PerRetry: []policy.Policy{auth},
	}, opts)

	return &Client{
		endpoint: cfg.ServiceURL,
		pipeline: pl,
		logger:   logger.With("component", "batch-client"),
	}, nil
}

// Endpoint returns the account endpoint the client talks to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// newRequest builds a request for the given path segments, escaping each.
func (c *Client) newRequest(ctx context.Context, method string, segments ...string) (*policy.Request, error) {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.newRequestURL(ctx, method, runtime.JoinPaths(c.endpoint, escaped...))
}

func (c *Client) newRequestURL(ctx context.Context, method, rawURL string) (*policy.Request, error) {
	req, err := runtime.NewRequest(ctx, method, rawURL)
	if err != nil {
		return nil, fmt.Errorf("batch: build request: %w", err)
	}
	q := req.Raw().URL.Query()
	if q.Get("api-version") == "" {
		q.Set("api-version", APIVersion)
	}
	req.Raw().URL.RawQuery = q.Encode()
	req.Raw().Header.Set("Accept", "application/json")
	return req, nil
}

// send runs req through the pipeline and converts unexpected statuses to *Error.
func (c *Client) send(req *policy.Request, body any, okStatus ...int) (*http.Response, error) {
	if body != nil {
		if err := runtime.MarshalAsJSON(req, body); err != nil {
			return nil, fmt.Errorf("batch: marshal request: %w", err)
		}
		req.Raw().Header.Set("Content-Type", contentTypeJSON)
	}

	raw := req.Raw()
	resp, err := c.pipeline.Do(req)
	if err != nil {
		return nil, fmt.Errorf("batch: %s %s: %w", raw.Method, raw.URL.Path, err)
	}
	c.logger.Debug("request", "method", raw.Method, "path", raw.URL.Path, "status", resp.StatusCode)

	if !runtime.HasStatusCode(resp, okStatus...) {
		return nil, newError(resp)
	}
	return resp, nil
}

// create POSTs body to the collection and maps existsCode to AlreadyExisted.
func (c *Client) create(ctx context.Context, body any, existsCode string, segments ...string) (model.CreateOutcome, error) {
	req, err := c.newRequest(ctx, http.MethodPost, segments...)
	if err != nil {
		return "", err
	}
	resp, err := c.send(req, body, http.StatusCreated)
	if err != nil {
		if IsCode(err, existsCode) {
			return model.AlreadyExisted, nil
		}
		return "", err
	}
	runtime.Drain(resp)
	return model.Created, nil
}

// remove DELETEs a resource and maps 404 to NotFound.
func (c *Client) remove(ctx context.Context, segments ...string) (model.DeleteOutcome, error) {
	req, err := c.newRequest(ctx, http.MethodDelete, segments...)
	if err != nil {
		return "", err
	}
	resp, err := c.send(req, nil, http.StatusAccepted, http.StatusOK)
	if err != nil {
		if IsNotFound(err) {
			return model.NotFound, nil
		}
		return "", err
	}
	runtime.Drain(resp)
	return model.Deleted, nil
}

// get fetches a single resource into out.
func (c *Client) get(ctx context.Context, out any, segments ...string) error {
	req, err := c.newRequest(ctx, http.MethodGet, segments...)
	if err != nil {
		return err
	}
	resp, err := c.send(req, nil, http.StatusOK)
	if err != nil {
		return err
	}
	if err := runtime.UnmarshalAsJSON(resp, out); err != nil {
		return fmt.Errorf("batch: decode response: %w", err)
	}
	return nil
}

// listAll follows odata.nextLink until every page has been read.
func listAll[T any](ctx context.Context, c *Client, segments ...string) ([]T, error) {
	req, err := c.newRequest(ctx, http.MethodGet, segments...)
	if err != nil {
		return nil, err
	}

	var all []T
	for {
		resp, err := c.send(req, nil, http.StatusOK)
		if err != nil {
			return nil, err
		}
		var page listResponse[T]
		if err := runtime.UnmarshalAsJSON(resp, &page); err != nil {
			return nil, fmt.Errorf("batch: decode list page: %w", err)
		}
		all = append(all, page.Value...)
		if page.NextLink == "" {
			return all, nil
		}
		if req, err = c.newRequestURL(ctx, http.MethodGet, page.NextLink); err != nil {
			return nil, err
		}
	}
}
