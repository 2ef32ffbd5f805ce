// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/xmidt-org/panoptes/model"
	"github.com/xmidt-org/panoptes/vms"
)

type archiveStartRequest struct {
	creds     vms.Credentials
	cameraID  string
	at        time.Time
	direction model.Direction
}

type sessionRequest struct {
	creds   vms.Credentials
	session string
}

type archiveSnapshotRequest struct {
	sessionRequest
	speed         float64
	width, height int
}

type rangeRequest struct {
	creds    vms.Credentials
	cameraID string
	from, to time.Time
}

type archiveStartResponse struct {
	Success   bool               `json:"success"`
	SessionID string             `json:"sessionId"`
	Mock      bool               `json:"mock"`
	State     model.SessionState `json:"state"`
}

type archiveTimeResponse struct {
	Success  bool      `json:"success"`
	Time     time.Time `json:"time"`
	Fallback bool      `json:"fallback"`
}

type archiveStopResponse struct {
	Success bool               `json:"success"`
	State   model.SessionState `json:"state"`
}

type sequencesResponse struct {
	Success   bool             `json:"success"`
	Sequences []model.Sequence `json:"sequences"`
}

type exportStartResponse struct {
	Success   bool               `json:"success"`
	SessionID string             `json:"sessionId"`
	State     model.SessionState `json:"state"`
}

type exportStatusResponse struct {
	Success bool               `json:"success"`
	Status  string             `json:"status"`
	Percent int                `json:"percent"`
	State   model.SessionState `json:"state"`
}

func decodeArchiveStartRequest(_ context.Context, r *http.Request) (interface{}, error) {
	creds, err := decodeCredentials(r)
	if err != nil {
		return nil, err
	}
	q := query{r}
	camera, err := q.required(cameraParam)
	if err != nil {
		return nil, err
	}
	at, err := q.requiredTimestamp("time")
	if err != nil {
		return nil, err
	}
	dir, valid := model.ParseDirection(q.optional("direction"))
	if !valid {
		return nil, &BadRequestErr{Message: "direction must be Forward or Backward"}
	}
	return &archiveStartRequest{creds: creds, cameraID: camera, at: at, direction: dir}, nil
}

func decodeSessionRequest(_ context.Context, r *http.Request) (interface{}, error) {
	creds, err := decodeCredentials(r)
	if err != nil {
		return nil, err
	}
	session, err := query{r}.required(sessionParam)
	if err != nil {
		return nil, err
	}
	return &sessionRequest{creds: creds, session: session}, nil
}

func decodeArchiveSnapshotRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	v, err := decodeSessionRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	req := &archiveSnapshotRequest{sessionRequest: *v.(*sessionRequest)}
	q := query{r}
	if req.speed, err = q.float("speed", 1); err != nil {
		return nil, err
	}
	if req.width, err = q.integer("width", 0); err != nil {
		return nil, err
	}
	if req.height, err = q.integer("height", 0); err != nil {
		return nil, err
	}
	return req, nil
}

func decodeRangeRequest(_ context.Context, r *http.Request) (interface{}, error) {
	creds, err := decodeCredentials(r)
	if err != nil {
		return nil, err
	}
	q := query{r}
	camera, err := q.required(cameraParam)
	if err != nil {
		return nil, err
	}
	from, err := q.requiredTimestamp("from")
	if err != nil {
		return nil, err
	}
	to, err := q.requiredTimestamp("to")
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, &BadRequestErr{Message: fmt.Sprintf("to (%s) is before from (%s)", to.Format(time.RFC3339), from.Format(time.RFC3339))}
	}
	return &rangeRequest{creds: creds, cameraID: camera, from: from, to: to}, nil
}

func (h *Handlers) archiveStartEndpoint(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(*archiveStartRequest)
	started, err := h.archive.Start(ctx, req.creds, req.cameraID, req.at, req.direction)
	if err != nil {
		return nil, err
	}
	return &archiveStartResponse{
		Success:   true,
		SessionID: started.SessionID,
		Mock:      started.Mock,
		State:     started.State,
	}, nil
}

func (h *Handlers) archiveTimeEndpoint(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(*sessionRequest)
	t, fallback := h.archive.Time(ctx, req.creds, req.session)
	return &archiveTimeResponse{Success: true, Time: t, Fallback: fallback}, nil
}

func (h *Handlers) archiveSnapshotEndpoint(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(*archiveSnapshotRequest)
	f := h.archive.Snapshot(ctx, req.creds, req.session, req.speed, req.width, req.height)
	return &snapshotResponse{image: f.Image, redirect: f.Redirect}, nil
}

func (h *Handlers) archiveStopEndpoint(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(*sessionRequest)
	state, err := h.archive.Stop(ctx, req.creds, req.session)
	if err != nil {
		return nil, err
	}
	return &archiveStopResponse{Success: true, State: state}, nil
}

func (h *Handlers) archiveSequencesEndpoint(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(*rangeRequest)
	seqs, err := h.archive.Sequences(ctx, req.creds, req.cameraID, req.from, req.to)
	if err != nil {
		return nil, err
	}
	return &sequencesResponse{Success: true, Sequences: seqs}, nil
}

func (h *Handlers) exportStartEndpoint(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(*rangeRequest)
	session, err := h.archive.ExportStart(ctx, req.creds, req.cameraID, req.from, req.to)
	if err != nil {
		return nil, err
	}
	return &exportStartResponse{Success: true, SessionID: session, State: model.SessionExporting}, nil
}

func (h *Handlers) exportStatusEndpoint(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(*sessionRequest)
	p, err := h.archive.ExportStatus(ctx, req.creds, req.session)
	if err != nil {
		return nil, err
	}
	return &exportStatusResponse{
		Success: true,
		Status:  p.Status,
		Percent: p.Percent,
		State:   p.State(),
	}, nil
}
