// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package diaglog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/xmidt-org/httpaux/erraux"
)

// LogsPath is where the buffer is served.
const LogsPath = "/diagnostics/logs"

type listRequest struct {
	level    Level
	category Category
	limit    int
}

type listResponse struct {
	Success bool    `json:"success"`
	Level   Level   `json:"level"`
	Entries []Entry `json:"entries"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func badRequest(format string, args ...interface{}) error {
	return &erraux.Error{
		Err:  fmt.Errorf(format, args...),
		Code: http.StatusBadRequest,
	}
}

func decodeListRequest(_ context.Context, r *http.Request) (interface{}, error) {
	q := r.URL.Query()
	req := &listRequest{}

	level, err := ParseLevel(q.Get("level"))
	if err != nil {
		return nil, badRequest("level must be one of DEBUG, INFO, WARN or ERROR")
	}
	req.level = level

	if v := q.Get("category"); len(v) > 0 {
		c, valid := ParseCategory(v)
		if !valid {
			return nil, badRequest("unknown category %q", v)
		}
		req.category = c
	}

	if v := q.Get("limit"); len(v) > 0 {
		req.limit, err = strconv.Atoi(v)
		if err != nil || req.limit < 0 {
			return nil, badRequest("limit must be a non-negative integer")
		}
	}
	return req, nil
}

func decodeNothing(context.Context, *http.Request) (interface{}, error) {
	return nil, nil
}

func (l *Logger) listEndpoint(_ context.Context, request interface{}) (interface{}, error) {
	req := request.(*listRequest)
	entries := l.Entries()
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Level < req.level {
			continue
		}
		if len(req.category) > 0 && e.Category != req.category {
			continue
		}
		out = append(out, e)
		if req.limit > 0 && len(out) == req.limit {
			break
		}
	}
	return &listResponse{Success: true, Level: l.Level(), Entries: out}, nil
}

func (l *Logger) clearEndpoint(context.Context, interface{}) (interface{}, error) {
	l.Clear()
	return nil, nil
}

func encodeList(_ context.Context, rw http.ResponseWriter, value interface{}) error {
	rw.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(rw).Encode(value)
}

func encodeNoContent(_ context.Context, rw http.ResponseWriter, _ interface{}) error {
	rw.WriteHeader(http.StatusNoContent)
	return nil
}

func encodeError(_ context.Context, err error, rw http.ResponseWriter) {
	code := http.StatusInternalServerError
	var sc kithttp.StatusCoder
	if errors.As(err, &sc) {
		code = sc.StatusCode()
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	json.NewEncoder(rw).Encode(errorResponse{Message: err.Error()})
}

// Mount registers the diagnostics routes on r.
func (l *Logger) Mount(r *mux.Router) {
	opts := []kithttp.ServerOption{kithttp.ServerErrorEncoder(encodeError)}
	r.Handle(LogsPath, kithttp.NewServer(l.listEndpoint, decodeListRequest, encodeList, opts...)).Methods(http.MethodGet)
	r.Handle(LogsPath, kithttp.NewServer(l.clearEndpoint, decodeNothing, encodeNoContent, opts...)).Methods(http.MethodDelete)
}
