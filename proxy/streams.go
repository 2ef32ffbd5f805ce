// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/xmidt-org/panoptes/model"
	"github.com/xmidt-org/panoptes/vms"
)

type streamRequest struct {
	creds    vms.Credentials
	cameraID string
	index    int
}

type offerRequest struct {
	streamRequest
	offer       []byte
	contentType string
}

type resolveRequest struct {
	creds    vms.Credentials
	key      model.StreamKey
	fallback bool
}

type urlResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
}

type mockURLResponse struct {
	URL string `json:"url"`
}

type resolveResponse struct {
	Success  bool   `json:"success"`
	URL      string `json:"url"`
	Fallback bool   `json:"fallback"`
}

func decodeStreamRequest(_ context.Context, r *http.Request) (interface{}, error) {
	creds, err := decodeCredentials(r)
	if err != nil {
		return nil, err
	}
	camera, index, err := query{r}.cameraStream()
	if err != nil {
		return nil, err
	}
	return &streamRequest{creds: creds, cameraID: camera, index: index}, nil
}

func decodeOfferRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	v, err := decodeStreamRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	body, err := readBody(r)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, &BadRequestErr{Message: "SDP offer body missing"}
	}
	return &offerRequest{
		streamRequest: *v.(*streamRequest),
		offer:         body,
		contentType:   r.Header.Get("Content-Type"),
	}, nil
}

// decodeResolveRequest reads a stream key. Credentials are required for
// every type, including the mock stream.
func decodeResolveRequest(_ context.Context, r *http.Request) (interface{}, error) {
	creds, err := decodeCredentials(r)
	if err != nil {
		return nil, err
	}
	q := query{r}
	camera, index, err := q.cameraStream()
	if err != nil {
		return nil, err
	}
	t, valid := model.ParseStreamType(q.optional("type"))
	if !valid {
		return nil, &BadRequestErr{Message: fmt.Sprintf("unknown stream type %q", q.optional("type"))}
	}
	return &resolveRequest{
		creds:    creds,
		key:      model.StreamKey{CameraID: camera, Type: t, Index: index},
		fallback: q.optional("fallback") == string(model.StreamMock) || q.boolean("fallback"),
	}, nil
}

func streamQuery(cameraID string, index int) string {
	return url.Values{
		cameraParam: {cameraID},
		indexParam:  {strconv.Itoa(index)},
	}.Encode()
}

// streamEndpoint points the browser at the raw passthrough route.
func (h *Handlers) streamEndpoint(_ context.Context, request interface{}) (interface{}, error) {
	req := request.(*streamRequest)
	return &urlResponse{
		Success: true,
		URL:     h.publicBase + "/stream/raw?" + streamQuery(req.cameraID, req.index),
	}, nil
}

func (h *Handlers) rawStreamEndpoint(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(*streamRequest)
	return h.vms.OpenStream(ctx, req.creds, req.cameraID, req.index)
}

func (h *Handlers) mjpegEndpoint(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(*streamRequest)
	return h.vms.OpenMJPEG(ctx, req.creds, req.cameraID, req.index)
}

func (h *Handlers) hlsEndpoint(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(*streamRequest)
	u, err := h.vms.HLSURL(ctx, req.creds, req.cameraID, req.index)
	if err != nil {
		return nil, err
	}
	return &urlResponse{Success: true, URL: u}, nil
}

func (h *Handlers) webrtcEndpoint(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(*streamRequest)
	u, err := h.vms.WebRTCURL(ctx, req.creds, req.cameraID, req.index)
	if err != nil {
		return nil, err
	}
	return &urlResponse{Success: true, URL: u}, nil
}

func (h *Handlers) webrtcOfferEndpoint(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(*offerRequest)
	return h.vms.WebRTCOffer(ctx, req.creds, req.cameraID, req.index, req.offer, req.contentType)
}

func (h *Handlers) mockStreamEndpoint(_ context.Context, request interface{}) (interface{}, error) {
	req := request.(*streamRequest)
	return &mockURLResponse{URL: model.MockStreamURL(req.cameraID, req.index)}, nil
}

// resolveEndpoint answers from the stream cache. With fallback set, a failed
// resolution of any other type is answered with the camera's mock stream.
func (h *Handlers) resolveEndpoint(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(*resolveRequest)
	u, err := h.resolver.Resolve(ctx, req.key, req.creds)
	if err == nil {
		return &resolveResponse{Success: true, URL: u}, nil
	}
	if !req.fallback || req.key.Type == model.StreamMock {
		return nil, err
	}
	u, err = h.resolver.ResolveFallback(ctx, req.key, req.creds, err)
	if err != nil {
		return nil, err
	}
	return &resolveResponse{Success: true, URL: u, Fallback: true}, nil
}

func (h *Handlers) invalidateEndpoint(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(*resolveRequest)
	u, err := h.resolver.Invalidate(ctx, req.key, req.creds)
	if err != nil {
		return nil, err
	}
	return &urlResponse{Success: true, URL: u}, nil
}
