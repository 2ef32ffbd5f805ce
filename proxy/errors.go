// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/xmidt-org/panoptes/diaglog"
	"github.com/xmidt-org/panoptes/vms"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

// ErrCasting indicates there was a middleware wiring mistake with the go-kit style
// encoders.
var ErrCasting = errors.New("casting error due to middleware wiring mistake")

// BadRequestErr is returned for requests that cannot be forwarded at all.
type BadRequestErr struct {
	Message string
}

func (bre BadRequestErr) Error() string {
	return bre.Message
}

func (bre BadRequestErr) StatusCode() int {
	return http.StatusBadRequest
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// statusCode maps err to the status of the response. Credential problems are
// the caller's fault even when they surface from the vms client.
func statusCode(err error) int {
	switch {
	case errors.Is(err, vms.ErrServerURLEmpty),
		errors.Is(err, vms.ErrAuthorizationEmpty),
		errors.Is(err, vms.ErrInvalidServerURL):
		return http.StatusBadRequest
	}

	var sc kithttp.StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

func message(err error) string {
	var uerr *vms.UpstreamError
	if errors.As(err, &uerr) && len(uerr.Message) > 0 {
		return uerr.Message
	}
	return err.Error()
}

// encodeError writes {success:false, message} with the status derived from
// err, logging the failure first.
func encodeError(ctx context.Context, err error, w http.ResponseWriter) {
	code := statusCode(err)
	l := sallust.Get(ctx).With(diaglog.CategoryHTTP.Field())
	if code >= http.StatusInternalServerError {
		l.Error("request failed", zap.Int("code", code), zap.Error(err))
	} else {
		l.Info("request rejected", zap.Int("code", code), zap.Error(err))
	}

	if headerer, ok := err.(kithttp.Headerer); ok {
		for k, values := range headerer.Headers() {
			for _, v := range values {
				w.Header().Add(k, v)
			}
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errorResponse{Message: message(err)})
}
