// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/xmidt-org/panoptes/model"
	"github.com/xmidt-org/panoptes/vms"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

const idVarKey = "id"

type credentialsRequest struct {
	creds vms.Credentials
}

type snapshotRequest struct {
	creds         vms.Credentials
	cameraID      string
	width, height int
}

type ptzRequest struct {
	creds           vms.Credentials
	cameraID        string
	pan, tilt, zoom float64
	preset          int
}

type successResponse struct {
	Success bool `json:"success"`
}

var okResponse = successResponse{Success: true}

type camerasResponse struct {
	Success bool           `json:"success"`
	Cameras []model.Camera `json:"cameras"`
}

// snapshotResponse is either an image or a redirect.
type snapshotResponse struct {
	image    vms.Payload
	redirect string
}

func decodeCredentialsOnly(_ context.Context, r *http.Request) (interface{}, error) {
	creds, err := decodeCredentials(r)
	if err != nil {
		return nil, err
	}
	return &credentialsRequest{creds: creds}, nil
}

func decodeSnapshotRequest(_ context.Context, r *http.Request) (interface{}, error) {
	creds, err := decodeCredentials(r)
	if err != nil {
		return nil, err
	}
	id, found := mux.Vars(r)[idVarKey]
	if !found || len(id) == 0 {
		return nil, &BadRequestErr{Message: "{id} URL path parameter missing"}
	}
	q := query{r}
	width, err := q.integer("width", 0)
	if err != nil {
		return nil, err
	}
	height, err := q.integer("height", 0)
	if err != nil {
		return nil, err
	}
	return &snapshotRequest{creds: creds, cameraID: id, width: width, height: height}, nil
}

func decodePTZRequest(_ context.Context, r *http.Request) (interface{}, error) {
	creds, err := decodeCredentials(r)
	if err != nil {
		return nil, err
	}
	camera, err := query{r}.required(cameraParam)
	if err != nil {
		return nil, err
	}
	return &ptzRequest{creds: creds, cameraID: camera}, nil
}

func decodePTZMoveRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	v, err := decodePTZRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	req := v.(*ptzRequest)
	q := query{r}
	if req.pan, err = q.float("pan", 0); err != nil {
		return nil, err
	}
	if req.tilt, err = q.float("tilt", 0); err != nil {
		return nil, err
	}
	if req.zoom, err = q.float("zoom", 0); err != nil {
		return nil, err
	}
	return req, nil
}

func decodePTZPresetRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	v, err := decodePTZRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	req := v.(*ptzRequest)
	q := query{r}
	if _, err := q.required("preset"); err != nil {
		return nil, err
	}
	if req.preset, err = q.integer("preset", 0); err != nil {
		return nil, err
	}
	return req, nil
}

func (h *Handlers) listCamerasEndpoint(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(*credentialsRequest)
	cameras, err := h.vms.ListCameras(ctx, req.creds)
	if err != nil {
		return nil, err
	}
	return &camerasResponse{Success: true, Cameras: cameras}, nil
}

// snapshotEndpoint answers with the placeholder image when the VMS cannot be
// reached; anything the VMS says is surfaced.
func (h *Handlers) snapshotEndpoint(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(*snapshotRequest)
	p, err := h.vms.Snapshot(ctx, req.creds, req.cameraID)
	if err == nil {
		return &snapshotResponse{image: p}, nil
	}
	if !vms.IsUnreachable(err) {
		return nil, err
	}
	sallust.Get(ctx).Warn("live snapshot unavailable, redirecting to placeholder",
		zap.String("camera", req.cameraID), zap.Error(err))
	return &snapshotResponse{redirect: h.archive.PlaceholderURL(req.width, req.height)}, nil
}

func (h *Handlers) ptzMoveEndpoint(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(*ptzRequest)
	if err := h.vms.PTZMove(ctx, req.creds, req.cameraID, req.pan, req.tilt, req.zoom); err != nil {
		return nil, err
	}
	return okResponse, nil
}

func (h *Handlers) ptzStopEndpoint(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(*ptzRequest)
	if err := h.vms.PTZStop(ctx, req.creds, req.cameraID); err != nil {
		return nil, err
	}
	return okResponse, nil
}

func (h *Handlers) ptzPresetEndpoint(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(*ptzRequest)
	if err := h.vms.PTZPreset(ctx, req.creds, req.cameraID, req.preset); err != nil {
		return nil, err
	}
	return okResponse, nil
}

func encodeSnapshot(ctx context.Context, rw http.ResponseWriter, value interface{}) error {
	s, found := value.(*snapshotResponse)
	if !found {
		return ErrCasting
	}
	if len(s.redirect) > 0 {
		rw.Header().Set("Location", s.redirect)
		rw.Header().Set("Cache-Control", "no-store")
		rw.WriteHeader(http.StatusFound)
		return nil
	}
	if len(s.image.ContentType) == 0 {
		s.image.ContentType = "image/jpeg"
	}
	return encodePayload(ctx, rw, s.image)
}
