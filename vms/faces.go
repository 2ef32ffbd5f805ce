// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package vms

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/xmidt-org/panoptes/model"
)

// ListPersons fetches every person enrolled in the face-recognition module.
func (c *Client) ListPersons(ctx context.Context, creds Credentials) ([]model.Person, error) {
	resp, err := c.do(ctx, "faces_list", creds, request{
		method: http.MethodGet,
		path:   []string{"api", "faces", "persons"},
	})
	if err != nil {
		return nil, err
	}

	var doc personsDocument
	if err := decodeXML(resp.Body, &doc); err != nil {
		return nil, asMalformed("faces_list", err)
	}

	persons := make([]model.Person, 0, len(doc.Persons))
	for _, e := range doc.Persons {
		persons = append(persons, e.person())
	}
	return persons, nil
}

// GetPerson fetches a single enrolled person.
func (c *Client) GetPerson(ctx context.Context, creds Credentials, id string) (model.Person, error) {
	resp, err := c.do(ctx, "faces_get", creds, request{
		method: http.MethodGet,
		path:   []string{"api", "faces", "persons", id},
	})
	if err != nil {
		return model.Person{}, err
	}

	var e personElement
	if err := decodeXML(resp.Body, &e); err != nil {
		return model.Person{}, asMalformed("faces_get", err)
	}
	return e.person(), nil
}

// CreatePerson enrolls a person. The JSON body is forwarded as is and the id
// assigned by the VMS is returned.
func (c *Client) CreatePerson(ctx context.Context, creds Credentials, body []byte) (string, error) {
	return c.value(ctx, "faces_create", creds, request{
		method:      http.MethodPost,
		path:        []string{"api", "faces", "persons"},
		body:        bytes.NewReader(body),
		contentType: "application/json",
	}, "id")
}

// UpdatePerson replaces the record of an enrolled person.
func (c *Client) UpdatePerson(ctx context.Context, creds Credentials, id string, body []byte) error {
	_, err := c.do(ctx, "faces_update", creds, request{
		method:      http.MethodPut,
		path:        []string{"api", "faces", "persons", id},
		body:        bytes.NewReader(body),
		contentType: "application/json",
	})
	return err
}

// DeletePerson removes an enrolled person.
func (c *Client) DeletePerson(ctx context.Context, creds Credentials, id string) error {
	_, err := c.do(ctx, "faces_delete", creds, request{
		method: http.MethodDelete,
		path:   []string{"api", "faces", "persons", id},
	})
	return err
}

// ListNotifications fetches up to count events raised since from. A zero from
// leaves the window to the VMS.
func (c *Client) ListNotifications(ctx context.Context, creds Credentials, from time.Time, count int) ([]model.Notification, error) {
	query := url.Values{}
	if !from.IsZero() {
		query.Set("from", formatTime(from))
	}
	if count > 0 {
		query.Set("count", strconv.Itoa(count))
	}

	resp, err := c.do(ctx, "events", creds, request{
		method: http.MethodGet,
		path:   []string{"api", "events"},
		query:  query,
	})
	if err != nil {
		return nil, err
	}

	var doc eventsDocument
	if err := decodeXML(resp.Body, &doc); err != nil {
		return nil, asMalformed("events", err)
	}

	notifications := make([]model.Notification, 0, len(doc.Events))
	for _, e := range doc.Events {
		n := model.Notification{
			ID:       e.ID,
			CameraID: e.Camera,
			Type:     e.Type,
			Message:  e.Message,
		}
		if t, err := parseTime(e.Time); err == nil {
			n.Time = t
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}
