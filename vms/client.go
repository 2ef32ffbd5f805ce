// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package vms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/panoptes/diaglog"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

const (
	errWrappedFmt  = "%w: %s"
	errorHeaderKey = "errorBody"

	defaultTimeout       = 5 * time.Second
	defaultHeaderTimeout = 5 * time.Second

	// maxErrorBody bounds how much of a rejected response is kept for the
	// error message.
	maxErrorBody = 512
)

// ClientConfig contains config data for the client that will be used to
// make requests to the VMS.
type ClientConfig struct {
	// HTTPClient is used for requests whose whole response is buffered.
	// (Optional) Defaults to a client without a global timeout; Timeout
	// bounds every call instead.
	HTTPClient *http.Client

	// StreamClient is used for passthrough streams, which must not have a
	// whole-body timeout.
	// (Optional) Defaults to a client that only bounds the wait for response
	// headers.
	StreamClient *http.Client

	// Timeout bounds each buffered VMS call.
	// (Optional) Defaults to 5 seconds.
	Timeout time.Duration

	// HeaderTimeout bounds the wait for the first response bytes of a stream.
	// (Optional) Defaults to 5 seconds.
	HeaderTimeout time.Duration

	// Logger to be used by the client when the request context has none.
	// (Optional). By default a no op logger will be used.
	Logger *zap.Logger
}

// Client sends requests to the VMS named by the caller's credentials.
type Client struct {
	client       *http.Client
	streamClient *http.Client
	timeout      time.Duration
	logger       *zap.Logger
	getLogger    func(context.Context) *zap.Logger
	measures     *Measures
}

// Payload is a fully read binary response.
type Payload struct {
	Data        []byte
	ContentType string
}

// Stream is an open passthrough response. The caller must close Body.
type Stream struct {
	Body        io.ReadCloser
	ContentType string
}

type request struct {
	method      string
	path        []string
	query       url.Values
	body        io.Reader
	contentType string
}

type response struct {
	Body        []byte
	Code        int
	ContentType string
}

// NewClient creates a new Client that can be used to make requests to a VMS.
func NewClient(config ClientConfig, measures *Measures, getLogger func(context.Context) *zap.Logger) (*Client, error) {
	if measures == nil {
		return nil, ErrNilMeasures
	}
	validateConfig(&config)
	if getLogger == nil {
		getLogger = sallust.Get
	}

	return &Client{
		client:       config.HTTPClient,
		streamClient: config.StreamClient,
		timeout:      config.Timeout,
		logger:       config.Logger,
		getLogger:    getLogger,
		measures:     measures,
	}, nil
}

func validateConfig(config *ClientConfig) {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.HeaderTimeout <= 0 {
		config.HeaderTimeout = defaultHeaderTimeout
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	if config.StreamClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = config.HeaderTimeout
		config.StreamClient = &http.Client{Transport: transport}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
}

func (c *Client) log(ctx context.Context) *zap.Logger {
	l := c.getLogger(ctx)
	if l == nil {
		l = c.logger
	}
	return l.With(diaglog.CategoryVMS.Field())
}

func (c *Client) newRequest(ctx context.Context, creds Credentials, r request) (*http.Request, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	base, err := url.Parse(creds.ServerURL)
	if err != nil || len(base.Host) == 0 {
		return nil, ErrInvalidServerURL
	}

	elems := make([]string, len(r.path))
	for i, p := range r.path {
		elems[i] = url.PathEscape(p)
	}
	target := base.JoinPath(elems...)
	target.RawQuery = r.query.Encode()

	req, err := http.NewRequestWithContext(ctx, r.method, target.String(), r.body)
	if err != nil {
		return nil, fmt.Errorf(errWrappedFmt, errNewRequestFailure, err.Error())
	}
	req.Header.Set("Authorization", creds.Authorization)
	if len(r.contentType) > 0 {
		req.Header.Set("Content-Type", r.contentType)
	}
	return req, nil
}

// do sends a request whose response is read fully within the client timeout.
// Non-2xx answers become an *UpstreamError.
func (c *Client) do(ctx context.Context, op string, creds Credentials, r request) (response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, creds, r)
	if err != nil {
		return response{}, err
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	c.measures.Duration.With(prometheus.Labels{OperationLabel: op}).Observe(time.Since(start).Seconds())
	if err != nil {
		c.count(op, UnreachableOutcome)
		c.log(ctx).Error("VMS request failed", zap.String("operation", op), zap.Error(err))
		return response{}, fmt.Errorf(errWrappedFmt, ErrUpstreamUnreachable, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.count(op, UnreachableOutcome)
		return response{}, fmt.Errorf("%w: %w: %s", ErrUpstreamUnreachable, errReadingBodyFailure, err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.count(op, RejectedOutcome)
		uerr := &UpstreamError{Code: resp.StatusCode, Message: errorMessage(body)}
		c.log(ctx).Error("VMS responded with a non-successful status code",
			zap.String("operation", op), zap.Int("code", resp.StatusCode), zap.String(errorHeaderKey, uerr.Message))
		return response{}, uerr
	}

	c.count(op, SuccessOutcome)
	return response{
		Body:        body,
		Code:        resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// open sends a request and hands back the live response body. Only the wait
// for the response headers is bounded.
func (c *Client) open(ctx context.Context, op string, creds Credentials, r request) (*Stream, error) {
	req, err := c.newRequest(ctx, creds, r)
	if err != nil {
		return nil, err
	}

	resp, err := c.streamClient.Do(req)
	if err != nil {
		c.count(op, UnreachableOutcome)
		c.log(ctx).Error("VMS stream request failed", zap.String("operation", op), zap.Error(err))
		return nil, fmt.Errorf(errWrappedFmt, ErrUpstreamUnreachable, err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.count(op, RejectedOutcome)
		uerr := &UpstreamError{Code: resp.StatusCode, Message: errorMessage(body)}
		c.log(ctx).Error("VMS rejected the stream request",
			zap.String("operation", op), zap.Int("code", resp.StatusCode), zap.String(errorHeaderKey, uerr.Message))
		return nil, uerr
	}

	c.count(op, SuccessOutcome)
	return &Stream{
		Body:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// value sends a request answered with key=value text and returns the value for
// key.
func (c *Client) value(ctx context.Context, op string, creds Credentials, r request, key string) (string, error) {
	resp, err := c.do(ctx, op, creds, r)
	if err != nil {
		return "", err
	}
	v, ok := ParseKeyValues(string(resp.Body))[key]
	if !ok || len(v) == 0 {
		c.count(op, FailureOutcome)
		return "", fmt.Errorf("%w: %s: missing %q", ErrMalformedResponse, op, key)
	}
	return v, nil
}

func (c *Client) payload(ctx context.Context, op string, creds Credentials, r request) (Payload, error) {
	resp, err := c.do(ctx, op, creds, r)
	if err != nil {
		return Payload{}, err
	}
	if len(resp.Body) == 0 {
		return Payload{}, fmt.Errorf("%w: %s: empty body", ErrMalformedResponse, op)
	}
	return Payload{Data: resp.Body, ContentType: resp.ContentType}, nil
}

func (c *Client) count(op, outcome string) {
	c.measures.Requests.With(prometheus.Labels{OperationLabel: op, OutcomeLabel: outcome}).Inc()
}

func errorMessage(body []byte) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return strings.TrimSpace(string(body))
}

// asMalformed wraps decoding failures so callers can tell them apart from
// transport failures.
func asMalformed(op string, err error) error {
	if err == nil || errors.Is(err, ErrMalformedResponse) {
		return err
	}
	return fmt.Errorf("%w: %s: %s", ErrMalformedResponse, op, err.Error())
}
