// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package streamcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/xmidt-org/panoptes/model"
	"github.com/xmidt-org/panoptes/vms"
)

var (
	ErrRouteBaseEmpty   = errors.New("stream route base url is required")
	ErrInvalidRouteBase = errors.New("stream route base must be an absolute http or https url")
	ErrUnknownType      = errors.New("unknown stream type")
)

// Fetcher turns a stream key into a playable URL without any caching.
type Fetcher interface {
	Fetch(ctx context.Context, key model.StreamKey, creds vms.Credentials) (string, error)
}

// FetcherFunc is an adapter to allow ordinary functions to be used as a
// Fetcher.
type FetcherFunc func(ctx context.Context, key model.StreamKey, creds vms.Credentials) (string, error)

func (f FetcherFunc) Fetch(ctx context.Context, key model.StreamKey, creds vms.Credentials) (string, error) {
	return f(ctx, key, creds)
}

// RouteFetcherConfig locates the stream proxy routes.
type RouteFetcherConfig struct {
	// RouteBase is where this service's own stream routes are reached from
	// the inside, e.g. http://127.0.0.1:6600.
	RouteBase string `validate:"required,url"`

	// PublicBase prefixes URLs that the browser plays directly. It may be
	// empty, in which case those URLs are relative.
	PublicBase string

	// HTTPClient used to call the routes.
	// (Optional) Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// RouteFetcher resolves stream URLs through the proxy stream routes.
type RouteFetcher struct {
	routeBase  *url.URL
	publicBase string
	client     *http.Client
}

var routePaths = map[model.StreamType]string{
	model.StreamGeneric: "/stream",
	model.StreamHLS:     "/stream/hls",
	model.StreamWebRTC:  "/stream/webrtc",
	model.StreamMock:    "/stream/mock",
}

// NewRouteFetcher validates config and builds a RouteFetcher.
func NewRouteFetcher(config RouteFetcherConfig) (*RouteFetcher, error) {
	if len(config.RouteBase) == 0 {
		return nil, ErrRouteBaseEmpty
	}
	base, err := url.Parse(config.RouteBase)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || len(base.Host) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRouteBase, config.RouteBase)
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	return &RouteFetcher{
		routeBase:  base,
		publicBase: strings.TrimSuffix(config.PublicBase, "/"),
		client:     config.HTTPClient,
	}, nil
}

func keyQuery(key model.StreamKey) url.Values {
	return url.Values{
		"camera": {key.CameraID},
		"index":  {strconv.Itoa(key.Index)},
	}
}

// MJPEGURL is the playable URL of a camera's MJPEG stream. The browser pulls
// it from the proxy route directly, so there is nothing to resolve.
func (f *RouteFetcher) MJPEGURL(key model.StreamKey) string {
	return f.publicBase + "/stream/mjpeg?" + keyQuery(key).Encode()
}

type resolveResponse struct {
	Success *bool  `json:"success"`
	URL     string `json:"url"`
	Message string `json:"message"`
}

// Fetch calls the stream route matching the key type. Credentials are
// forwarded when present.
func (f *RouteFetcher) Fetch(ctx context.Context, key model.StreamKey, creds vms.Credentials) (string, error) {
	if key.Type == model.StreamMJPEG {
		return f.MJPEGURL(key), nil
	}

	p, ok := routePaths[key.Type]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, key.Type)
	}

	target := f.routeBase.JoinPath(p)
	target.RawQuery = keyQuery(key).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return "", err
	}
	creds.Apply(req.Header)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s", vms.ErrUpstreamUnreachable, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %s", vms.ErrUpstreamUnreachable, err.Error())
	}

	var r resolveResponse
	jsonErr := json.Unmarshal(body, &r)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if jsonErr == nil && len(r.Message) > 0 {
			msg = r.Message
		}
		return "", &vms.UpstreamError{Code: resp.StatusCode, Message: msg}
	}
	if jsonErr != nil {
		return "", fmt.Errorf("%w: %s", vms.ErrMalformedResponse, jsonErr.Error())
	}
	if len(r.URL) == 0 || (r.Success != nil && !*r.Success) {
		return "", fmt.Errorf("%w: no url for %s", vms.ErrMalformedResponse, key)
	}
	return r.URL, nil
}
