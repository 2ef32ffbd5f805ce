// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package vms

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/xmidt-org/panoptes/model"
)

// ListCameras fetches every camera the VMS knows about.
func (c *Client) ListCameras(ctx context.Context, creds Credentials) ([]model.Camera, error) {
	resp, err := c.do(ctx, "cameras", creds, request{
		method: http.MethodGet,
		path:   []string{"api", "cameras"},
	})
	if err != nil {
		return nil, err
	}

	var doc camerasDocument
	if err := decodeXML(resp.Body, &doc); err != nil {
		return nil, asMalformed("cameras", err)
	}

	cameras := make([]model.Camera, 0, len(doc.Cameras))
	for _, e := range doc.Cameras {
		cameras = append(cameras, e.camera())
	}
	return cameras, nil
}

// Snapshot fetches the current JPEG frame of a camera.
func (c *Client) Snapshot(ctx context.Context, creds Credentials, cameraID string) (Payload, error) {
	return c.payload(ctx, "snapshot", creds, request{
		method: http.MethodGet,
		path:   []string{"api", "cameras", cameraID, "snapshot"},
	})
}

// PTZMove starts moving a camera. Speeds are in the VMS range [-1, 1].
func (c *Client) PTZMove(ctx context.Context, creds Credentials, cameraID string, pan, tilt, zoom float64) error {
	_, err := c.do(ctx, "ptz_move", creds, request{
		method: http.MethodGet,
		path:   []string{"api", "ptz", "move"},
		query: url.Values{
			"camera": {cameraID},
			"pan":    {strconv.FormatFloat(pan, 'f', -1, 64)},
			"tilt":   {strconv.FormatFloat(tilt, 'f', -1, 64)},
			"zoom":   {strconv.FormatFloat(zoom, 'f', -1, 64)},
		},
	})
	return err
}

// PTZStop halts any movement of a camera.
func (c *Client) PTZStop(ctx context.Context, creds Credentials, cameraID string) error {
	_, err := c.do(ctx, "ptz_stop", creds, request{
		method: http.MethodGet,
		path:   []string{"api", "ptz", "stop"},
		query:  url.Values{"camera": {cameraID}},
	})
	return err
}

// PTZPreset moves a camera to a stored preset.
func (c *Client) PTZPreset(ctx context.Context, creds Credentials, cameraID string, preset int) error {
	_, err := c.do(ctx, "ptz_preset", creds, request{
		method: http.MethodGet,
		path:   []string{"api", "ptz", "preset"},
		query: url.Values{
			"camera": {cameraID},
			"preset": {strconv.Itoa(preset)},
		},
	})
	return err
}
