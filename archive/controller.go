// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/xmidt-org/panoptes/diaglog"
	"github.com/xmidt-org/panoptes/model"
	"github.com/xmidt-org/panoptes/vms"
	"go.uber.org/zap"
)

// MockSessionPrefix marks session ids made up locally while the VMS is down.
const MockSessionPrefix = "mock-session-"

const (
	defaultPlaceholderURL = "https://placehold.co/{width}x{height}?text=No+archive+frame"
	defaultWidth          = 1280
	defaultHeight         = 720
	unknownStatus         = "Unknown"
)

var (
	ErrNilMeasures = errors.New("measures cannot be nil")
	ErrNoClient    = errors.New("no vms client provided")
)

// Client is the part of the VMS API the controller drives.
type Client interface {
	ArchiveStart(ctx context.Context, creds vms.Credentials, cameraID string, t time.Time, dir model.Direction) (string, error)
	ArchiveTime(ctx context.Context, creds vms.Credentials, session string) (time.Time, error)
	ArchiveSnapshot(ctx context.Context, creds vms.Credentials, session string, speed float64, width, height int) (vms.Payload, error)
	ArchiveStop(ctx context.Context, creds vms.Credentials, session string) error
	ArchiveSequences(ctx context.Context, creds vms.Credentials, cameraID string, from, to time.Time) ([]model.Sequence, error)
	ExportStart(ctx context.Context, creds vms.Credentials, cameraID string, from, to time.Time) (string, error)
	ExportStatus(ctx context.Context, creds vms.Credentials, session string) (string, error)
}

// Config tunes the controller.
type Config struct {
	// PlaceholderURL is the image a failed snapshot redirects to. The tokens
	// {width} and {height} are replaced with the requested view size.
	// (Optional) Defaults to a placehold.co image.
	PlaceholderURL string

	// Logger to be used when the request context carries none.
	// (Optional). By default a no op logger will be used.
	Logger *zap.Logger
}

// Controller runs archive playback and export sessions against the VMS and
// keeps the UI usable in demo mode when the VMS cannot be reached.
type Controller struct {
	client      Client
	placeholder string
	logger      *zap.Logger
	getLogger   func(context.Context) *zap.Logger
	measures    *Measures
	now         func() time.Time
	random      func() uint32
}

// Started describes a freshly opened session.
type Started struct {
	SessionID string             `json:"sessionId"`
	Mock      bool               `json:"mock"`
	State     model.SessionState `json:"state"`
}

// Frame is either the decoded image or, when none could be fetched, the
// placeholder to redirect to.
type Frame struct {
	Image    vms.Payload
	Redirect string
}

// New builds a Controller.
func New(config Config, c Client, measures *Measures, getLogger func(context.Context) *zap.Logger) (*Controller, error) {
	if c == nil {
		return nil, ErrNoClient
	}
	if measures == nil {
		return nil, ErrNilMeasures
	}
	if len(config.PlaceholderURL) == 0 {
		config.PlaceholderURL = defaultPlaceholderURL
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	ctrl := &Controller{
		client:      c,
		placeholder: config.PlaceholderURL,
		logger:      config.Logger,
		getLogger:   getLogger,
		measures:    measures,
		now:         time.Now,
		random:      rand.Uint32,
	}
	if ctrl.getLogger == nil {
		ctrl.getLogger = func(context.Context) *zap.Logger { return nil }
	}
	return ctrl, nil
}

func (c *Controller) log(ctx context.Context) *zap.Logger {
	l := c.getLogger(ctx)
	if l == nil {
		l = c.logger
	}
	return l.With(diaglog.CategoryArchive.Field())
}

func (c *Controller) fallback(ctx context.Context, op, session string, err error) {
	c.measures.Fallbacks.WithLabelValues(op).Inc()
	c.log(ctx).Warn("archive call degraded to demo mode",
		zap.String("operation", op), zap.String("session", session), zap.Error(err))
}

// IsMock reports whether session was made up locally.
func IsMock(session string) bool {
	return strings.HasPrefix(session, MockSessionPrefix)
}

func (c *Controller) mockSession() string {
	return MockSessionPrefix + strconv.FormatInt(c.now().UnixMilli(), 10) + "-" + strconv.FormatUint(uint64(c.random()), 10)
}

// Start opens a playback session at t. When the VMS cannot be reached a mock
// session is handed out instead; a VMS that answers with an error is
// surfaced.
func (c *Controller) Start(ctx context.Context, creds vms.Credentials, cameraID string, t time.Time, dir model.Direction) (Started, error) {
	session, err := c.client.ArchiveStart(ctx, creds, cameraID, t, dir)
	if err == nil {
		c.log(ctx).Debug("archive session started", zap.String("camera", cameraID), zap.String("session", session))
		return Started{SessionID: session, State: model.SessionActive}, nil
	}
	if !vms.IsUnreachable(err) {
		return Started{}, err
	}

	session = c.mockSession()
	c.fallback(ctx, "start", session, err)
	return Started{SessionID: session, Mock: true, State: model.SessionActive}, nil
}

// Time returns the playback cursor. Mock sessions and failed lookups report
// the wall clock; the second result is true in that case.
func (c *Controller) Time(ctx context.Context, creds vms.Credentials, session string) (time.Time, bool) {
	if IsMock(session) {
		return c.now().UTC(), true
	}
	t, err := c.client.ArchiveTime(ctx, creds, session)
	if err != nil {
		c.fallback(ctx, "time", session, err)
		return c.now().UTC(), true
	}
	return t, false
}

// PlaceholderURL is the placeholder image for a view of width x height. A
// missing dimension selects 1280x720.
func (c *Controller) PlaceholderURL(width, height int) string {
	if width <= 0 || height <= 0 {
		width, height = defaultWidth, defaultHeight
	}
	return strings.NewReplacer(
		"{width}", strconv.Itoa(width),
		"{height}", strconv.Itoa(height),
	).Replace(c.placeholder)
}

// Snapshot fetches the frame at the cursor. It never fails: any problem turns
// into a redirect to the placeholder image.
func (c *Controller) Snapshot(ctx context.Context, creds vms.Credentials, session string, speed float64, width, height int) Frame {
	if IsMock(session) {
		return Frame{Redirect: c.PlaceholderURL(width, height)}
	}
	p, err := c.client.ArchiveSnapshot(ctx, creds, session, speed, width, height)
	if err != nil {
		c.fallback(ctx, "snapshot", session, err)
		return Frame{Redirect: c.PlaceholderURL(width, height)}
	}
	return Frame{Image: p}
}

// Stop closes a session. Mock sessions have nothing to close.
func (c *Controller) Stop(ctx context.Context, creds vms.Credentials, session string) (model.SessionState, error) {
	if IsMock(session) {
		return model.SessionClosed, nil
	}
	if err := c.client.ArchiveStop(ctx, creds, session); err != nil {
		return "", err
	}
	return model.SessionClosed, nil
}

// Sequences lists the recorded intervals of a camera.
func (c *Controller) Sequences(ctx context.Context, creds vms.Credentials, cameraID string, from, to time.Time) ([]model.Sequence, error) {
	if to.Before(from) {
		from, to = to, from
	}
	return c.client.ArchiveSequences(ctx, creds, cameraID, from, to)
}

// ExportStart begins an export of the recording between from and to.
func (c *Controller) ExportStart(ctx context.Context, creds vms.Credentials, cameraID string, from, to time.Time) (string, error) {
	return c.client.ExportStart(ctx, creds, cameraID, from, to)
}

// ExportStatus reports the progress of an export.
func (c *Controller) ExportStatus(ctx context.Context, creds vms.Credentials, session string) (model.ExportProgress, error) {
	raw, err := c.client.ExportStatus(ctx, creds, session)
	if err != nil {
		return model.ExportProgress{}, err
	}
	return ParseExportStatus(raw), nil
}

// ParseExportStatus reads "status=<s>;percent=<n>". A missing status reads as
// "Unknown" and a missing or unparsable percent as 0.
func ParseExportStatus(s string) model.ExportProgress {
	values := vms.ParseKeyValues(s)
	p := model.ExportProgress{Status: unknownStatus}
	if st := values["status"]; len(st) > 0 {
		p.Status = st
	}
	if pct, err := strconv.Atoi(strings.TrimSuffix(values["percent"], "%")); err == nil {
		p.Percent = pct
	}
	return p
}
