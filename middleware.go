// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/justinas/alice"
	"github.com/xmidt-org/panoptes/diaglog"
	"github.com/xmidt-org/panoptes/vms"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-Id"

// redactHeaders copies h, replacing the authorization value with just its
// scheme.
func redactHeaders(h http.Header) http.Header {
	logHeader := h.Clone()
	if str := logHeader.Get(vms.AuthorizationHeaderKey); str != "" {
		logHeader.Del(vms.AuthorizationHeaderKey)
		logHeader.Set("Authorization-Type", strings.Split(str, " ")[0])
	}
	return logHeader
}

// SetLogger puts a request scoped logger into the request context. Incoming
// request ids are kept; otherwise one is generated and echoed back.
func SetLogger(logger *zap.Logger) alice.Constructor {
	return func(delegate http.Handler) http.Handler {
		return http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				id := r.Header.Get(requestIDHeader)
				if len(id) == 0 {
					id = uuid.NewString()
				}
				w.Header().Set(requestIDHeader, id)

				l := logger.With(
					zap.String("requestID", id),
					zap.Any("requestHeaders", redactHeaders(r.Header)),
					zap.String("requestURL", r.URL.EscapedPath()),
					zap.String("method", r.Method),
				)
				l.Debug("request received", diaglog.CategoryHTTP.Field())
				delegate.ServeHTTP(w, r.WithContext(sallust.With(r.Context(), l)))
			})
	}
}
