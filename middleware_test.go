// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRedactHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Basic dXNlcjpwYXNz")
	h.Set("Server-Url", "http://vms.local")

	redacted := redactHeaders(h)
	assert.Empty(t, redacted.Get("Authorization"))
	assert.Equal(t, "Basic", redacted.Get("Authorization-Type"))
	assert.Equal(t, "http://vms.local", redacted.Get("Server-Url"))
	assert.Equal(t, "Basic dXNlcjpwYXNz", h.Get("Authorization"))
}

func TestSetLogger(t *testing.T) {
	tcs := []struct {
		Description string
		RequestID   string
	}{
		{Description: "Generated request id"},
		{Description: "Incoming request id", RequestID: "abc-123"},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)
			core, logs := observer.New(zap.DebugLevel)

			handler := SetLogger(zap.New(core))(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
				sallust.Get(r.Context()).Info("inside")
			}))

			req := httptest.NewRequest(http.MethodGet, "/cameras", nil)
			req.Header.Set("Authorization", "Bearer secret")
			if len(tc.RequestID) > 0 {
				req.Header.Set(requestIDHeader, tc.RequestID)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			id := rec.Header().Get(requestIDHeader)
			require.NotEmpty(t, id)
			if len(tc.RequestID) > 0 {
				assert.Equal(tc.RequestID, id)
			}

			inside := logs.FilterMessage("inside").All()
			require.Len(t, inside, 1)
			fields := inside[0].ContextMap()
			assert.Equal(id, fields["requestID"])
			assert.Equal("/cameras", fields["requestURL"])
			assert.Equal(http.MethodGet, fields["method"])
			headers, ok := fields["requestHeaders"].(http.Header)
			require.True(t, ok)
			assert.Empty(headers.Get("Authorization"))
			assert.Equal("Bearer", headers.Get("Authorization-Type"))
		})
	}
}
