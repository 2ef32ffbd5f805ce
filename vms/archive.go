// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package vms

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/xmidt-org/panoptes/model"
)

// ArchiveStart opens an archive playback session positioned at t.
func (c *Client) ArchiveStart(ctx context.Context, creds Credentials, cameraID string, t time.Time, dir model.Direction) (string, error) {
	return c.value(ctx, "archive_start", creds, request{
		method: http.MethodGet,
		path:   []string{"api", "archive", "start"},
		query: url.Values{
			"camera":    {cameraID},
			"time":      {formatTime(t)},
			"direction": {string(dir)},
		},
	}, "sessionid")
}

// ArchiveTime reads the playback cursor of a session.
func (c *Client) ArchiveTime(ctx context.Context, creds Credentials, session string) (time.Time, error) {
	v, err := c.value(ctx, "archive_time", creds, request{
		method: http.MethodGet,
		path:   []string{"api", "archive", "time"},
		query:  url.Values{"session": {session}},
	}, "time")
	if err != nil {
		return time.Time{}, err
	}

	t, err := parseTime(v)
	if err != nil {
		return time.Time{}, asMalformed("archive_time", err)
	}
	return t, nil
}

// ArchiveSnapshot fetches the decoded frame at the session cursor.
func (c *Client) ArchiveSnapshot(ctx context.Context, creds Credentials, session string, speed float64, width, height int) (Payload, error) {
	query := url.Values{
		"session": {session},
		"speed":   {strconv.FormatFloat(speed, 'f', -1, 64)},
	}
	if width > 0 && height > 0 {
		query.Set("width", strconv.Itoa(width))
		query.Set("height", strconv.Itoa(height))
	}
	return c.payload(ctx, "archive_snapshot", creds, request{
		method: http.MethodGet,
		path:   []string{"api", "archive", "snapshot"},
		query:  query,
	})
}

// ArchiveStop closes a playback or export session.
func (c *Client) ArchiveStop(ctx context.Context, creds Credentials, session string) error {
	_, err := c.do(ctx, "archive_stop", creds, request{
		method: http.MethodGet,
		path:   []string{"api", "archive", "stop"},
		query:  url.Values{"session": {session}},
	})
	return err
}

// ArchiveSequences lists the recorded intervals of a camera between from and
// to. Intervals the VMS reports with unparsable bounds are skipped.
func (c *Client) ArchiveSequences(ctx context.Context, creds Credentials, cameraID string, from, to time.Time) ([]model.Sequence, error) {
	resp, err := c.do(ctx, "archive_sequences", creds, request{
		method: http.MethodGet,
		path:   []string{"api", "archive", "sequences"},
		query: url.Values{
			"camera": {cameraID},
			"from":   {formatTime(from)},
			"to":     {formatTime(to)},
		},
	})
	if err != nil {
		return nil, err
	}

	var doc sequencesDocument
	if err := decodeXML(resp.Body, &doc); err != nil {
		return nil, asMalformed("archive_sequences", err)
	}

	sequences := make([]model.Sequence, 0, len(doc.Sequences))
	for _, e := range doc.Sequences {
		start, err := parseTime(e.Start)
		if err != nil {
			continue
		}
		end, err := parseTime(e.End)
		if err != nil {
			continue
		}
		sequences = append(sequences, model.Sequence{Start: start, End: end})
	}
	return sequences, nil
}

// ExportStart begins exporting the recording between from and to.
func (c *Client) ExportStart(ctx context.Context, creds Credentials, cameraID string, from, to time.Time) (string, error) {
	return c.value(ctx, "export_start", creds, request{
		method: http.MethodGet,
		path:   []string{"api", "archive", "export", "start"},
		query: url.Values{
			"camera": {cameraID},
			"from":   {formatTime(from)},
			"to":     {formatTime(to)},
		},
	}, "sessionid")
}

// ExportStatus returns the raw status text of an export session, for example
// "status=Running;percent=42".
func (c *Client) ExportStatus(ctx context.Context, creds Credentials, session string) (string, error) {
	resp, err := c.do(ctx, "export_status", creds, request{
		method: http.MethodGet,
		path:   []string{"api", "archive", "export", "status"},
		query:  url.Values{"session": {session}},
	})
	if err != nil {
		return "", err
	}
	return string(resp.Body), nil
}
