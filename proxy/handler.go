// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-kit/kit/endpoint"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/xmidt-org/panoptes/archive"
	"github.com/xmidt-org/panoptes/model"
	"github.com/xmidt-org/panoptes/vms"
)

var (
	ErrNoVMS      = errors.New("no vms client provided")
	ErrNoResolver = errors.New("no stream resolver provided")
	ErrNoArchive  = errors.New("no archive controller provided")
)

// VMS is the part of the VMS API the live routes forward to.
type VMS interface {
	ListCameras(ctx context.Context, creds vms.Credentials) ([]model.Camera, error)
	Snapshot(ctx context.Context, creds vms.Credentials, cameraID string) (vms.Payload, error)
	PTZMove(ctx context.Context, creds vms.Credentials, cameraID string, pan, tilt, zoom float64) error
	PTZStop(ctx context.Context, creds vms.Credentials, cameraID string) error
	PTZPreset(ctx context.Context, creds vms.Credentials, cameraID string, preset int) error

	OpenStream(ctx context.Context, creds vms.Credentials, cameraID string, index int) (*vms.Stream, error)
	OpenMJPEG(ctx context.Context, creds vms.Credentials, cameraID string, index int) (*vms.Stream, error)
	HLSURL(ctx context.Context, creds vms.Credentials, cameraID string, index int) (string, error)
	WebRTCURL(ctx context.Context, creds vms.Credentials, cameraID string, index int) (string, error)
	WebRTCOffer(ctx context.Context, creds vms.Credentials, cameraID string, index int, offer []byte, contentType string) (vms.Payload, error)

	ListPersons(ctx context.Context, creds vms.Credentials) ([]model.Person, error)
	GetPerson(ctx context.Context, creds vms.Credentials, id string) (model.Person, error)
	CreatePerson(ctx context.Context, creds vms.Credentials, body []byte) (string, error)
	UpdatePerson(ctx context.Context, creds vms.Credentials, id string, body []byte) error
	DeletePerson(ctx context.Context, creds vms.Credentials, id string) error

	ListNotifications(ctx context.Context, creds vms.Credentials, from time.Time, count int) ([]model.Notification, error)
}

// Resolver hands out playable stream URLs.
type Resolver interface {
	Resolve(ctx context.Context, key model.StreamKey, creds vms.Credentials) (string, error)
	Invalidate(ctx context.Context, key model.StreamKey, creds vms.Credentials) (string, error)
	ResolveFallback(ctx context.Context, key model.StreamKey, creds vms.Credentials, cause error) (string, error)
}

// Archive runs archive sessions.
type Archive interface {
	Start(ctx context.Context, creds vms.Credentials, cameraID string, t time.Time, dir model.Direction) (archive.Started, error)
	Time(ctx context.Context, creds vms.Credentials, session string) (time.Time, bool)
	Snapshot(ctx context.Context, creds vms.Credentials, session string, speed float64, width, height int) archive.Frame
	Stop(ctx context.Context, creds vms.Credentials, session string) (model.SessionState, error)
	Sequences(ctx context.Context, creds vms.Credentials, cameraID string, from, to time.Time) ([]model.Sequence, error)
	ExportStart(ctx context.Context, creds vms.Credentials, cameraID string, from, to time.Time) (string, error)
	ExportStatus(ctx context.Context, creds vms.Credentials, session string) (model.ExportProgress, error)
	PlaceholderURL(width, height int) string
}

// Config locates the URLs this service hands back to the browser.
type Config struct {
	// PublicBase prefixes URLs of this service that the browser plays
	// directly. Empty yields relative URLs.
	PublicBase string
}

// Handlers serves the browser-facing routes.
type Handlers struct {
	vms        VMS
	resolver   Resolver
	archive    Archive
	publicBase string
	options    []kithttp.ServerOption
}

// NewHandlers builds the route handlers.
func NewHandlers(config Config, v VMS, r Resolver, a Archive) (*Handlers, error) {
	if v == nil {
		return nil, ErrNoVMS
	}
	if r == nil {
		return nil, ErrNoResolver
	}
	if a == nil {
		return nil, ErrNoArchive
	}
	return &Handlers{
		vms:        v,
		resolver:   r,
		archive:    a,
		publicBase: strings.TrimSuffix(config.PublicBase, "/"),
		options:    serverOptions(),
	}, nil
}

func (h *Handlers) server(e endpoint.Endpoint, dec kithttp.DecodeRequestFunc, enc kithttp.EncodeResponseFunc) http.Handler {
	return kithttp.NewServer(e, dec, enc, h.options...)
}

// Mount registers every route on r.
func (h *Handlers) Mount(r *mux.Router) {
	r.Handle("/cameras", h.server(h.listCamerasEndpoint, decodeCredentialsOnly, encodeJSON)).Methods(http.MethodGet)
	r.Handle("/cameras/{id}/snapshot", h.server(h.snapshotEndpoint, decodeSnapshotRequest, encodeSnapshot)).Methods(http.MethodGet)

	r.Handle("/ptz/move", h.server(h.ptzMoveEndpoint, decodePTZMoveRequest, encodeJSON)).Methods(http.MethodGet)
	r.Handle("/ptz/stop", h.server(h.ptzStopEndpoint, decodePTZRequest, encodeJSON)).Methods(http.MethodGet)
	r.Handle("/ptz/preset", h.server(h.ptzPresetEndpoint, decodePTZPresetRequest, encodeJSON)).Methods(http.MethodGet)

	r.Handle("/faces/persons", h.server(h.listPersonsEndpoint, decodeCredentialsOnly, encodeJSON)).Methods(http.MethodGet)
	r.Handle("/faces/persons", h.server(h.createPersonEndpoint, decodePersonBodyRequest, encodeJSON)).Methods(http.MethodPost)
	r.Handle("/faces/persons/{id}", h.server(h.getPersonEndpoint, decodePersonRequest, encodeJSON)).Methods(http.MethodGet)
	r.Handle("/faces/persons/{id}", h.server(h.updatePersonEndpoint, decodePersonBodyRequest, encodeJSON)).Methods(http.MethodPut)
	r.Handle("/faces/persons/{id}", h.server(h.deletePersonEndpoint, decodePersonRequest, encodeJSON)).Methods(http.MethodDelete)

	r.Handle("/notifications", h.server(h.notificationsEndpoint, decodeNotificationsRequest, encodeJSON)).Methods(http.MethodGet)

	r.Handle("/stream", h.server(h.streamEndpoint, decodeStreamRequest, encodeJSON)).Methods(http.MethodGet)
	r.Handle("/stream/raw", h.server(h.rawStreamEndpoint, decodeStreamRequest, encodeStream)).Methods(http.MethodGet)
	r.Handle("/stream/hls", h.server(h.hlsEndpoint, decodeStreamRequest, encodeJSON)).Methods(http.MethodGet)
	r.Handle("/stream/mjpeg", h.server(h.mjpegEndpoint, decodeStreamRequest, encodeStream)).Methods(http.MethodGet)
	r.Handle("/stream/webrtc", h.server(h.webrtcEndpoint, decodeStreamRequest, encodeJSON)).Methods(http.MethodGet)
	r.Handle("/stream/webrtc/offer", h.server(h.webrtcOfferEndpoint, decodeOfferRequest, encodePayload)).Methods(http.MethodPost)
	r.Handle("/stream/mock", h.server(h.mockStreamEndpoint, decodeStreamRequest, encodeJSON)).Methods(http.MethodGet)

	r.Handle("/streams/resolve", h.server(h.resolveEndpoint, decodeResolveRequest, encodeJSON)).Methods(http.MethodGet)
	r.Handle("/streams/invalidate", h.server(h.invalidateEndpoint, decodeResolveRequest, encodeJSON)).Methods(http.MethodPost)

	r.Handle("/archive/start", h.server(h.archiveStartEndpoint, decodeArchiveStartRequest, encodeJSON)).Methods(http.MethodGet)
	r.Handle("/archive/time", h.server(h.archiveTimeEndpoint, decodeSessionRequest, encodeJSON)).Methods(http.MethodGet)
	r.Handle("/archive/snapshot", h.server(h.archiveSnapshotEndpoint, decodeArchiveSnapshotRequest, encodeSnapshot)).Methods(http.MethodGet)
	r.Handle("/archive/stop", h.server(h.archiveStopEndpoint, decodeSessionRequest, encodeJSON)).Methods(http.MethodGet)
	r.Handle("/archive/sequences", h.server(h.archiveSequencesEndpoint, decodeRangeRequest, encodeJSON)).Methods(http.MethodGet)
	r.Handle("/archive/export/start", h.server(h.exportStartEndpoint, decodeRangeRequest, encodeJSON)).Methods(http.MethodGet)
	r.Handle("/archive/export/status", h.server(h.exportStatusEndpoint, decodeSessionRequest, encodeJSON)).Methods(http.MethodGet)
}
