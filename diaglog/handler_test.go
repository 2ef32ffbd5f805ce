// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package diaglog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/httpaux/erraux"
)

func TestLogsRoutes(t *testing.T) {
	l := newTestLogger(t, Config{})
	l.Log(LevelDebug, CategoryStream, "resolved", nil)
	l.Log(LevelWarn, CategoryArchive, "mock session", nil)
	l.Log(LevelError, CategoryVMS, "unreachable", nil)
	l.Log(LevelInfo, CategoryVMS, "cameras listed", nil)

	r := mux.NewRouter()
	l.Mount(r)

	tcs := []struct {
		Description      string
		Query            string
		ExpectedCode     int
		ExpectedMessages []string
	}{
		{
			Description:      "Everything",
			ExpectedCode:     http.StatusOK,
			ExpectedMessages: []string{"cameras listed", "unreachable", "mock session", "resolved"},
		},
		{
			Description:      "Minimum level",
			Query:            "?level=warn",
			ExpectedCode:     http.StatusOK,
			ExpectedMessages: []string{"unreachable", "mock session"},
		},
		{
			Description:      "Category",
			Query:            "?category=vms",
			ExpectedCode:     http.StatusOK,
			ExpectedMessages: []string{"cameras listed", "unreachable"},
		},
		{
			Description:      "Limit",
			Query:            "?limit=1",
			ExpectedCode:     http.StatusOK,
			ExpectedMessages: []string{"cameras listed"},
		},
		{Description: "Bad level", Query: "?level=loud", ExpectedCode: http.StatusBadRequest},
		{Description: "Bad category", Query: "?category=kitchen", ExpectedCode: http.StatusBadRequest},
		{Description: "Bad limit", Query: "?limit=-1", ExpectedCode: http.StatusBadRequest},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, LogsPath+tc.Query, nil))
			assert.Equal(tc.ExpectedCode, rec.Code)
			if tc.ExpectedCode != http.StatusOK {
				var body errorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.False(body.Success)
				assert.NotEmpty(body.Message)
				return
			}

			var body struct {
				Level   string
				Entries []struct {
					Level    string
					Category string
					Message  string
				}
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal("DEBUG", body.Level)
			messages := make([]string, 0, len(body.Entries))
			for _, e := range body.Entries {
				messages = append(messages, e.Message)
			}
			assert.Equal(tc.ExpectedMessages, messages)
		})
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, LogsPath, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, l.Entries())
}

func TestBadRequest(t *testing.T) {
	err := badRequest("unknown category %q", "radio")
	var e *erraux.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, http.StatusBadRequest, e.StatusCode())
	assert.Equal(t, `unknown category "radio"`, err.Error())
}
