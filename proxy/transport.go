// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/spf13/cast"
	"github.com/xmidt-org/panoptes/vms"
)

const (
	cameraParam  = "camera"
	indexParam   = "index"
	sessionParam = "session"

	// maxBodyBytes bounds JSON and SDP bodies forwarded to the VMS.
	maxBodyBytes = 1 << 20
)

// decodeCredentials reads the credentials headers and rejects the request
// before anything is sent to the VMS.
func decodeCredentials(r *http.Request) (vms.Credentials, error) {
	creds := vms.CredentialsFromHeader(r.Header)
	if err := creds.Validate(); err != nil {
		return vms.Credentials{}, &BadRequestErr{Message: err.Error()}
	}
	return creds, nil
}

type query struct {
	r *http.Request
}

func (q query) required(name string) (string, error) {
	v := q.r.URL.Query().Get(name)
	if len(v) == 0 {
		return "", &BadRequestErr{Message: fmt.Sprintf("%s query parameter missing", name)}
	}
	return v, nil
}

func (q query) optional(name string) string {
	return q.r.URL.Query().Get(name)
}

// integer parses name, returning def when it is absent.
func (q query) integer(name string, def int) (int, error) {
	v := q.optional(name)
	if len(v) == 0 {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, &BadRequestErr{Message: fmt.Sprintf("%s query parameter must be an integer", name)}
	}
	return i, nil
}

// float parses name, returning def when it is absent.
func (q query) float(name string, def float64) (float64, error) {
	v := q.optional(name)
	if len(v) == 0 {
		return def, nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, &BadRequestErr{Message: fmt.Sprintf("%s query parameter must be a number", name)}
	}
	return f, nil
}

func (q query) boolean(name string) bool {
	return cast.ToBool(q.optional(name))
}

// timestamp parses name as RFC3339 or unix milliseconds. An absent value
// yields def.
func (q query) timestamp(name string, def time.Time) (time.Time, error) {
	v := q.optional(name)
	if len(v) == 0 {
		return def, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, &BadRequestErr{Message: fmt.Sprintf("%s query parameter must be an RFC3339 time or unix milliseconds", name)}
}

func (q query) requiredTimestamp(name string) (time.Time, error) {
	if _, err := q.required(name); err != nil {
		return time.Time{}, err
	}
	return q.timestamp(name, time.Time{})
}

// cameraStream reads the camera and index parameters most stream routes take.
func (q query) cameraStream() (string, int, error) {
	camera, err := q.required(cameraParam)
	if err != nil {
		return "", 0, err
	}
	index, err := q.integer(indexParam, 0)
	if err != nil {
		return "", 0, err
	}
	return camera, index, nil
}

func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, &BadRequestErr{Message: "failed to read body"}
	}
	return data, nil
}

func encodeJSON(_ context.Context, rw http.ResponseWriter, value interface{}) error {
	rw.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(rw).Encode(value)
}

// encodePayload writes a fully read VMS answer as is.
func encodePayload(_ context.Context, rw http.ResponseWriter, value interface{}) error {
	p, ok := value.(vms.Payload)
	if !ok {
		return ErrCasting
	}
	if len(p.ContentType) > 0 {
		rw.Header().Set("Content-Type", p.ContentType)
	}
	rw.Header().Set("Cache-Control", "no-store")
	_, err := rw.Write(p.Data)
	return err
}

// encodeStream copies a live VMS stream to the browser until either side
// goes away, flushing after every chunk.
func encodeStream(ctx context.Context, rw http.ResponseWriter, value interface{}) error {
	s, ok := value.(*vms.Stream)
	if !ok {
		return ErrCasting
	}
	defer s.Body.Close()

	if len(s.ContentType) > 0 {
		rw.Header().Set("Content-Type", s.ContentType)
	}
	rw.Header().Set("Cache-Control", "no-store")
	rw.WriteHeader(http.StatusOK)

	flusher, _ := rw.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, err := s.Body.Read(buf)
		if n > 0 {
			if _, werr := rw.Write(buf[:n]); werr != nil {
				return nil
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func serverOptions() []kithttp.ServerOption {
	return []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(encodeError),
	}
}
