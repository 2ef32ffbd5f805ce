// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"fmt"
	"strings"
	"time"
)

// StreamType names the flavor of a live stream a browser can play.
type StreamType string

const (
	// StreamGeneric is the raw binary stream served by the VMS.
	StreamGeneric StreamType = "stream"
	StreamHLS     StreamType = "hls"
	StreamMJPEG   StreamType = "mjpeg"
	StreamWebRTC  StreamType = "webrtc"
	StreamMock    StreamType = "mock"
)

// ParseStreamType maps a query value to a StreamType. The empty string is the
// generic stream.
func ParseStreamType(s string) (StreamType, bool) {
	switch t := StreamType(strings.ToLower(strings.TrimSpace(s))); t {
	case "", StreamGeneric:
		return StreamGeneric, true
	case StreamHLS, StreamMJPEG, StreamWebRTC, StreamMock:
		return t, true
	}
	return "", false
}

// StreamKey identifies a resolved stream URL.
type StreamKey struct {
	// CameraID is the VMS camera identifier.
	CameraID string `json:"cameraId"`

	// Type is the stream flavor.
	Type StreamType `json:"type"`

	// Index selects between the streams a camera offers (main, sub, ...).
	Index int `json:"index"`
}

// String composes the key into the single string used by the stream cache.
func (k StreamKey) String() string {
	return fmt.Sprintf("%s:%s:%d", k.CameraID, k.Type, k.Index)
}

// MockStreamURL is the deterministic demo stream for a camera.
func MockStreamURL(cameraID string, index int) string {
	return fmt.Sprintf("/mock-streams/camera-%s-stream-%d.mp4", cameraID, index)
}

// Direction is the archive playback direction.
type Direction string

const (
	Forward  Direction = "Forward"
	Backward Direction = "Backward"
)

// ParseDirection accepts the two directions case-insensitively. The empty
// string means Forward.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "forward":
		return Forward, true
	case "backward":
		return Backward, true
	}
	return "", false
}

// SessionState is the client-visible state of an archive session.
type SessionState string

const (
	SessionUninitialized SessionState = "uninitialized"
	SessionActive        SessionState = "active"
	SessionExporting     SessionState = "exporting"
	SessionClosed        SessionState = "closed"
)

// ExportProgress is the parsed export status reported by the VMS.
type ExportProgress struct {
	Status  string `json:"status"`
	Percent int    `json:"percent"`
}

// State reports where the export sits in the session lifecycle. The VMS
// closes the session itself once the export completes.
func (p ExportProgress) State() SessionState {
	if p.Percent >= 100 {
		return SessionClosed
	}
	return SessionExporting
}

// Camera is a camera known to the VMS.
type Camera struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	PTZ     bool   `json:"ptz"`
	Streams int    `json:"streams"`
	Status  string `json:"status,omitempty"`
}

// Person is an entry of the face-recognition module.
type Person struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Group   string `json:"group,omitempty"`
	Comment string `json:"comment,omitempty"`
	Photos  int    `json:"photos"`
}

// Notification is an event raised by the VMS.
type Notification struct {
	ID       string    `json:"id"`
	Time     time.Time `json:"time"`
	CameraID string    `json:"cameraId,omitempty"`
	Type     string    `json:"type"`
	Message  string    `json:"message,omitempty"`
}

// Sequence is a recorded interval in the archive.
type Sequence struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
