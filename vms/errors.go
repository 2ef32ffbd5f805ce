// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package vms

import (
	"errors"
	"fmt"
	"net/http"
)

// Errors that can be returned by this package. Most of them are returned
// wrapped, so use errors.Is() to check for them.
var (
	ErrNilMeasures         = errors.New("measures cannot be nil")
	ErrServerURLEmpty      = errors.New("server-url header is required")
	ErrAuthorizationEmpty  = errors.New("authorization header is required")
	ErrInvalidServerURL    = errors.New("server-url header must be an absolute URL")
	ErrUpstreamUnreachable = errors.New("vms is unreachable")
	ErrMalformedResponse   = errors.New("vms returned a malformed response")
)

var (
	errNewRequestFailure  = errors.New("failed creating an HTTP request")
	errReadingBodyFailure = errors.New("failed while reading http response body")
)

// UpstreamError is returned when the VMS answers with a non-success status.
// Message carries the text the VMS sent back, if any.
type UpstreamError struct {
	Code    int
	Message string
}

func (e *UpstreamError) Error() string {
	if len(e.Message) > 0 {
		return fmt.Sprintf("vms responded with status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("vms responded with status %d", e.Code)
}

// StatusCode relays error statuses from the VMS. Anything else the VMS
// answered with still counts as a failure of this service.
func (e *UpstreamError) StatusCode() int {
	if e.Code >= http.StatusBadRequest && e.Code < 600 {
		return e.Code
	}
	return http.StatusInternalServerError
}

// IsUnreachable reports whether err means the VMS could not be reached in
// time, which is the only failure the fallback paths degrade on.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUpstreamUnreachable)
}
