// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package vms

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strconv"
)

func streamQuery(index int) url.Values {
	return url.Values{"index": {strconv.Itoa(index)}}
}

// OpenStream opens the raw binary stream of a camera.
func (c *Client) OpenStream(ctx context.Context, creds Credentials, cameraID string, index int) (*Stream, error) {
	return c.open(ctx, "stream", creds, request{
		method: http.MethodGet,
		path:   []string{"api", "cameras", cameraID, "stream"},
		query:  streamQuery(index),
	})
}

// OpenMJPEG opens the multipart MJPEG stream of a camera.
func (c *Client) OpenMJPEG(ctx context.Context, creds Credentials, cameraID string, index int) (*Stream, error) {
	return c.open(ctx, "mjpeg", creds, request{
		method: http.MethodGet,
		path:   []string{"api", "cameras", cameraID, "mjpeg"},
		query:  streamQuery(index),
	})
}

// HLSURL asks the VMS for the HLS playlist of a camera stream.
func (c *Client) HLSURL(ctx context.Context, creds Credentials, cameraID string, index int) (string, error) {
	return c.value(ctx, "hls", creds, request{
		method: http.MethodGet,
		path:   []string{"api", "cameras", cameraID, "hls"},
		query:  streamQuery(index),
	}, "url")
}

// WebRTCURL asks the VMS for the WebRTC signalling endpoint of a camera
// stream.
func (c *Client) WebRTCURL(ctx context.Context, creds Credentials, cameraID string, index int) (string, error) {
	return c.value(ctx, "webrtc", creds, request{
		method: http.MethodGet,
		path:   []string{"api", "cameras", cameraID, "webrtc"},
		query:  streamQuery(index),
	}, "url")
}

// WebRTCOffer forwards an SDP offer and returns the VMS answer untouched.
func (c *Client) WebRTCOffer(ctx context.Context, creds Credentials, cameraID string, index int, offer []byte, contentType string) (Payload, error) {
	if len(contentType) == 0 {
		contentType = "application/sdp"
	}
	return c.payload(ctx, "webrtc_offer", creds, request{
		method:      http.MethodPost,
		path:        []string{"api", "cameras", cameraID, "webrtc", "offer"},
		query:       streamQuery(index),
		body:        bytes.NewReader(offer),
		contentType: contentType,
	})
}
