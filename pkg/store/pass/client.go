// Package pass implements store.Client against the PASS REST API.
//
// Resources live in a Fedora repository, one container per kind
// (funders, users, grants). A resource's Reference is its absolute URI.
// Attribute lookups go to the search index, which accepts an
// Elasticsearch-style term query and answers with the matching @id values.
//
//	POST {base}/{container}   create, 201 + Location
//	GET  {ref}                read
//	PUT  {ref}                replace
//	POST {search}             lookup
package pass

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/grantsync/pkg/clients"
	"github.com/ajitpratap0/grantsync/pkg/config"
	"github.com/ajitpratap0/grantsync/pkg/errors"
	"github.com/ajitpratap0/grantsync/pkg/logger"
	"github.com/ajitpratap0/grantsync/pkg/models"
	"github.com/ajitpratap0/grantsync/pkg/store"
)

const contentType = "application/json"

var containers = map[models.Kind]string{
	models.KindFunder: "funders",
	models.KindUser:   "users",
	models.KindGrant:  "grants",
}

// Client talks to a PASS deployment.
type Client struct {
	baseURL   string
	searchURL string
	http      *clients.HTTPClient
	logger    *zap.Logger
}

var (
	_ store.Client = (*Client)(nil)
	_ store.Closer = (*Client)(nil)
)

func init() {
	store.Register(config.StorePASS, func(_ context.Context, cfg *config.StoreConfig) (store.Client, error) {
		return New(cfg.PASS)
	})
}

// New builds a client from cfg. It does not contact the server.
func New(cfg config.PassConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "pass base url is required")
	}
	base := cfg.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	search := cfg.SearchURL
	if search == "" {
		search = base + "_search"
	}

	l := logger.Named("pass_store")
	httpCfg := clients.DefaultHTTPConfig()
	httpCfg.EnableHTTP2 = cfg.HTTP2
	httpCfg.Username = cfg.Username
	httpCfg.Password = cfg.Password
	if cfg.Timeouts.Request > 0 {
		httpCfg.RequestTimeout = cfg.Timeouts.Request
	}
	if cfg.Timeouts.Connection > 0 {
		httpCfg.DialTimeout = cfg.Timeouts.Connection
	}
	if cfg.Timeouts.Idle > 0 {
		httpCfg.IdleConnTimeout = cfg.Timeouts.Idle
	}
	httpCfg.CircuitBreakerEnabled = cfg.Reliability.CircuitBreaker
	if cfg.Reliability.FailureThreshold > 0 {
		httpCfg.FailureThreshold = cfg.Reliability.FailureThreshold
	}
	if cfg.Reliability.ResetTimeout > 0 {
		httpCfg.ResetTimeout = cfg.Reliability.ResetTimeout
	}
	if cfg.Reliability.IsRateLimited() {
		httpCfg.RateLimit = float64(cfg.Reliability.RateLimitPerSec)
		httpCfg.RateBurst = cfg.Reliability.RateLimitBurst
	}

	return &Client{
		baseURL:   base,
		searchURL: search,
		http:      clients.NewHTTPClient(httpCfg, l),
		logger:    l,
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.logger.Debug("closing PASS client", zap.Any("stats", c.http.GetStats()))
	return c.http.Close()
}

// FindByAttribute implements store.Client.
func (c *Client) FindByAttribute(ctx context.Context, kind models.Kind, attribute, value string) (models.Reference, error) {
	body, err := json.Marshal(termQuery(kind, attribute, value))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeData, "encode search")
	}

	var result searchResult
	status, err := c.send(ctx, http.MethodPost, c.searchURL, body, &result)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", c.unexpected("find "+string(kind), status)
	}
	for _, hit := range result.Hits.Hits {
		if hit.Source.ID != "" {
			return models.Reference(hit.Source.ID), nil
		}
	}
	return "", nil
}

// ReadResource implements store.Client.
func (c *Client) ReadResource(ctx context.Context, ref models.Reference, kind models.Kind) (models.Entity, error) {
	entity := models.New(kind)
	if entity == nil {
		return nil, errors.Newf(errors.ErrorTypeValidation, "unknown kind %s", kind)
	}
	var raw json.RawMessage
	status, err := c.send(ctx, http.MethodGet, string(ref), nil, &raw)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusGone:
		return nil, store.ErrNotFound
	default:
		return nil, c.unexpected("read "+string(kind), status)
	}

	var header struct {
		Type string `json:"@type"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "decode "+string(kind)).WithDetail("ref", string(ref))
	}
	if header.Type != "" && header.Type != string(kind) {
		// the URI exists but holds another kind of resource
		return nil, store.ErrNotFound
	}
	if err := json.Unmarshal(raw, entity); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "decode "+string(kind)).WithDetail("ref", string(ref))
	}
	entity.SetRef(ref)
	return entity, nil
}

// CreateResource implements store.Client.
func (c *Client) CreateResource(ctx context.Context, entity models.Entity) (models.Reference, error) {
	kind := entity.Kind()
	body, err := encode(entity)
	if err != nil {
		return "", err
	}

	req, err := c.http.NewRequest(ctx, http.MethodPost, c.baseURL+containers[kind], bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeConfig, "build request")
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.http.Do(req)
	if err != nil {
		return "", unavailable(err, "create "+string(kind))
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusCreated {
		return "", c.unexpected("create "+string(kind), resp.StatusCode)
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return "", errors.New(errors.ErrorTypeStoreUnavailable, "create "+string(kind)+": response has no Location")
	}
	return models.Reference(location), nil
}

// UpdateResource implements store.Client.
func (c *Client) UpdateResource(ctx context.Context, entity models.Entity) error {
	kind := entity.Kind()
	body, err := encode(entity)
	if err != nil {
		return err
	}
	status, err := c.send(ctx, http.MethodPut, string(entity.Ref()), body, nil)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound, http.StatusGone:
		return errors.Wrap(store.ErrNotFound, errors.ErrorTypeNotFound, "update "+string(kind)).
			WithDetail("ref", string(entity.Ref()))
	}
	return c.unexpected("update "+string(kind), status)
}

// send issues a request and decodes a 200 body into out when out is non-nil.
func (c *Client) send(ctx context.Context, method, url string, body []byte, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := c.http.NewRequest(ctx, method, url, reader)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeValidation, "build request").WithDetail("url", url)
	}
	req.Header.Set("Accept", contentType)
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, unavailable(err, method+" "+url)
	}
	defer drain(resp)

	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return 0, errors.Wrap(err, errors.ErrorTypeData, "decode response").WithDetail("url", url)
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) unexpected(op string, status int) error {
	errType := errors.ErrorTypeStoreUnavailable
	if status >= 400 && status < 500 {
		errType = errors.ErrorTypeValidation
	}
	return errors.Newf(errType, "%s: unexpected status %d", op, status)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func unavailable(err error, op string) error {
	return errors.Wrap(err, errors.ErrorTypeStoreUnavailable, fmt.Sprintf("PASS %s", op))
}
