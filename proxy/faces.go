// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/xmidt-org/panoptes/model"
	"github.com/xmidt-org/panoptes/vms"
)

const defaultNotificationCount = 50

type personRequest struct {
	creds vms.Credentials
	id    string
	body  []byte
}

type notificationsRequest struct {
	creds vms.Credentials
	from  time.Time
	count int
}

type personsResponse struct {
	Success bool           `json:"success"`
	Persons []model.Person `json:"persons"`
}

type personResponse struct {
	Success bool         `json:"success"`
	Person  model.Person `json:"person"`
}

type createdResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

type notificationsResponse struct {
	Success       bool                 `json:"success"`
	Notifications []model.Notification `json:"notifications"`
}

func decodePersonRequest(_ context.Context, r *http.Request) (interface{}, error) {
	creds, err := decodeCredentials(r)
	if err != nil {
		return nil, err
	}
	id, found := mux.Vars(r)[idVarKey]
	if !found || len(id) == 0 {
		return nil, &BadRequestErr{Message: "{id} URL path parameter missing"}
	}
	return &personRequest{creds: creds, id: id}, nil
}

// decodePersonBodyRequest serves both create and update; the id is only
// present on update.
func decodePersonBodyRequest(_ context.Context, r *http.Request) (interface{}, error) {
	creds, err := decodeCredentials(r)
	if err != nil {
		return nil, err
	}
	body, err := readBody(r)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, &BadRequestErr{Message: "failed to unmarshal json"}
	}
	return &personRequest{creds: creds, id: mux.Vars(r)[idVarKey], body: body}, nil
}

func decodeNotificationsRequest(_ context.Context, r *http.Request) (interface{}, error) {
	creds, err := decodeCredentials(r)
	if err != nil {
		return nil, err
	}
	q := query{r}
	from, err := q.timestamp("from", time.Time{})
	if err != nil {
		return nil, err
	}
	count, err := q.integer("count", defaultNotificationCount)
	if err != nil {
		return nil, err
	}
	return &notificationsRequest{creds: creds, from: from, count: count}, nil
}

func (h *Handlers) listPersonsEndpoint(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(*credentialsRequest)
	persons, err := h.vms.ListPersons(ctx, req.creds)
	if err != nil {
		return nil, err
	}
	return &personsResponse{Success: true, Persons: persons}, nil
}

func (h *Handlers) getPersonEndpoint(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(*personRequest)
	p, err := h.vms.GetPerson(ctx, req.creds, req.id)
	if err != nil {
		return nil, err
	}
	return &personResponse{Success: true, Person: p}, nil
}

func (h *Handlers) createPersonEndpoint(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(*personRequest)
	id, err := h.vms.CreatePerson(ctx, req.creds, req.body)
	if err != nil {
		return nil, err
	}
	return &createdResponse{Success: true, ID: id}, nil
}

func (h *Handlers) updatePersonEndpoint(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(*personRequest)
	if err := h.vms.UpdatePerson(ctx, req.creds, req.id, req.body); err != nil {
		return nil, err
	}
	return okResponse, nil
}

func (h *Handlers) deletePersonEndpoint(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(*personRequest)
	if err := h.vms.DeletePerson(ctx, req.creds, req.id); err != nil {
		return nil, err
	}
	return okResponse, nil
}

func (h *Handlers) notificationsEndpoint(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(*notificationsRequest)
	n, err := h.vms.ListNotifications(ctx, req.creds, req.from, req.count)
	if err != nil {
		return nil, err
	}
	return &notificationsResponse{Success: true, Notifications: n}, nil
}
