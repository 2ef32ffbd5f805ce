// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package vms

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Request headers the browser sends along with every proxied call.
const (
	ServerURLHeaderKey     = "server-url"
	AuthorizationHeaderKey = "authorization"
)

var validate = validator.New()

// Credentials locate the VMS and authenticate against it. Both values are
// supplied by the browser; the authorization value is opaque to this service.
type Credentials struct {
	ServerURL     string `validate:"required,http_url"`
	Authorization string `validate:"required"`
}

// CredentialsFromHeader reads the credentials headers without validating them.
func CredentialsFromHeader(h http.Header) Credentials {
	return Credentials{
		ServerURL:     h.Get(ServerURLHeaderKey),
		Authorization: h.Get(AuthorizationHeaderKey),
	}
}

// Empty is true when neither header was sent.
func (c Credentials) Empty() bool {
	return len(c.ServerURL) == 0 && len(c.Authorization) == 0
}

// Apply sets the credentials headers on an outgoing request to a proxy route.
func (c Credentials) Apply(h http.Header) {
	if len(c.ServerURL) > 0 {
		h.Set(ServerURLHeaderKey, c.ServerURL)
	}
	if len(c.Authorization) > 0 {
		h.Set(AuthorizationHeaderKey, c.Authorization)
	}
}

// Validate returns ErrServerURLEmpty, ErrAuthorizationEmpty or
// ErrInvalidServerURL when the credentials cannot be used.
func (c Credentials) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}

	fe := fieldErrs[0]
	switch {
	case fe.Field() == "ServerURL" && fe.Tag() == "required":
		return ErrServerURLEmpty
	case fe.Field() == "ServerURL":
		return ErrInvalidServerURL
	default:
		return ErrAuthorizationEmpty
	}
}
