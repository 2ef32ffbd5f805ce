// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"emperror.dev/emperror"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/xmidt-org/arrange/arrangehttp"
	"github.com/xmidt-org/candlelight"
	"github.com/xmidt-org/panoptes/diaglog"
	"github.com/xmidt-org/touchstone"
	"github.com/xmidt-org/touchstone/touchhttp"
	"go.uber.org/fx"
)

// ServersConfig holds one listener per port. The primary server keeps a zero
// WriteTimeout; live streams are passed through for as long as the browser
// keeps watching.
type ServersConfig struct {
	Primary arrangehttp.ServerConfig
	Metrics arrangehttp.ServerConfig
	Health  arrangehttp.ServerConfig
}

type VMSConfig struct {
	Timeout       time.Duration `validate:"gte=0"`
	HeaderTimeout time.Duration `validate:"gte=0"`

	// Client builds the HTTP client used for buffered calls.
	Client arrangehttp.ClientConfig

	// StreamClient builds the HTTP client used for passthrough streams. Its
	// Timeout must stay zero. HeaderTimeout is used for the transport's
	// ResponseHeaderTimeout unless one is configured.
	StreamClient arrangehttp.ClientConfig
}

type StreamsConfig struct {
	TTL           time.Duration `validate:"gte=0"`
	CheckInterval time.Duration `validate:"gte=0"`
	FetchTimeout  time.Duration `validate:"gte=0"`

	// RouteBase is where the cache reaches the stream routes of this
	// service. Defaults to the primary server on the loopback interface.
	RouteBase string `validate:"omitempty,http_url"`

	// PublicBase prefixes stream URLs handed to the browser.
	PublicBase string `validate:"omitempty,http_url"`

	// MockDir holds the demo mp4 files served under /mock-streams/.
	MockDir string
}

type ArchiveConfig struct {
	PlaceholderURL string
}

// Config is the whole configuration file apart from logging, which is read
// before the container starts.
type Config struct {
	Servers           ServersConfig
	VMS               VMSConfig
	Streams           StreamsConfig
	Archive           ArchiveConfig
	Diagnostics       diaglog.Config
	Prometheus        touchstone.Config
	PrometheusHandler touchhttp.Config
	Tracing           candlelight.Config
}

// ConfigOut provides each section to the container. Diagnostics is handled
// by setup.
type ConfigOut struct {
	fx.Out
	Servers           ServersConfig
	VMS               VMSConfig
	Streams           StreamsConfig
	Archive           ArchiveConfig
	Prometheus        touchstone.Config
	PrometheusHandler touchhttp.Config
	Tracing           candlelight.Config
}

var (
	errStreamClientTimeout = errors.New("the stream client cannot have a timeout")

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(validateServerConfig, arrangehttp.ServerConfig{})
	v.RegisterStructValidation(validateVMSConfig, VMSConfig{})
	return v
}

// checkListenAddress accepts host:port with any port from 0 to 65535. Port 0
// asks the system for an ephemeral port.
func checkListenAddress(address string) error {
	_, port, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return fmt.Errorf("invalid port %q", port)
	}
	return nil
}

func validateServerConfig(sl validator.StructLevel) {
	sc := sl.Current().Interface().(arrangehttp.ServerConfig)
	if err := checkListenAddress(sc.Address); err != nil {
		sl.ReportError(sc.Address, "Address", "Address", "listen_address", err.Error())
	}
}

func validateVMSConfig(sl validator.StructLevel) {
	vc := sl.Current().Interface().(VMSConfig)
	if vc.StreamClient.Timeout != 0 {
		sl.ReportError(vc.StreamClient.Timeout, "StreamClient", "StreamClient", "stream_timeout", errStreamClientTimeout.Error())
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("servers.primary.address", ":6600")
	v.SetDefault("servers.primary.readHeaderTimeout", 10*time.Second)
	v.SetDefault("servers.primary.idleTimeout", 2*time.Minute)
	v.SetDefault("servers.metrics.address", ":6601")
	v.SetDefault("servers.health.address", ":6602")
	v.SetDefault("vms.timeout", 5*time.Second)
	v.SetDefault("vms.headerTimeout", 5*time.Second)
	v.SetDefault("streams.ttl", 5*time.Minute)
	v.SetDefault("streams.checkInterval", time.Minute)
	v.SetDefault("streams.fetchTimeout", 15*time.Second)
	v.SetDefault("diagnostics.capacity", 1000)
	v.SetDefault("diagnostics.level", "DEBUG")
}

func unmarshalConfig(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, emperror.Wrap(err, "failed to unmarshal configuration")
	}
	if err := validate.Struct(c); err != nil {
		return Config{}, emperror.Wrap(err, "invalid configuration")
	}

	if len(c.Streams.RouteBase) == 0 {
		base, err := loopbackBase(c.Servers.Primary.Address)
		if err != nil {
			return Config{}, err
		}
		c.Streams.RouteBase = base
	}
	return c, nil
}

// loopbackBase turns a listen address such as ":6600" into the URL the
// service uses to call itself.
func loopbackBase(address string) (string, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return "", emperror.WrapWith(err, "invalid primary server address", "address", address)
	}
	if len(host) == 0 || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(host, port)), nil
}

func provideConfig(v *viper.Viper) (ConfigOut, error) {
	c, err := unmarshalConfig(v)
	if err != nil {
		return ConfigOut{}, err
	}
	c.Tracing.ApplicationName = applicationName
	return ConfigOut{
		Servers:           c.Servers,
		VMS:               c.VMS,
		Streams:           c.Streams,
		Archive:           c.Archive,
		Prometheus:        c.Prometheus,
		PrometheusHandler: c.PrometheusHandler,
		Tracing:           c.Tracing,
	}, nil
}
