// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/arrange/arrangehttp"
	"github.com/xmidt-org/panoptes/diaglog"
	"github.com/xmidt-org/panoptes/proxy"
	"github.com/xmidt-org/panoptes/streamcache"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const testConfig = `
logging:
  level: "debug"
  encoding: "json"
  outputPaths:
    - "stderr"
  errorOutputPaths:
    - "stderr"
diagnostics:
  capacity: 10
  level: "info"
`

func writeConfig(t *testing.T, contents string) string {
	p := filepath.Join(t.TempDir(), "panoptes.yaml")
	require.NoError(t, os.WriteFile(p, []byte(contents), 0o600))
	return p
}

func TestSetupVersion(t *testing.T) {
	var out bytes.Buffer
	_, _, _, err := setup([]string{"--version"}, &out)
	assert.ErrorIs(t, err, errVersionPrinted)
	assert.Contains(t, out.String(), applicationName+":")
}

func TestSetupErrors(t *testing.T) {
	tcs := []struct {
		Description string
		Args        []string
	}{
		{Description: "Unknown flag", Args: []string{"--nope"}},
		{Description: "Missing file", Args: []string{"--file", filepath.Join(t.TempDir(), "missing.yaml")}},
		{Description: "Bad diagnostics level", Args: []string{"--file", writeConfig(t, "diagnostics:\n  level: loud\n")}},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			_, _, _, err := setup(tc.Args, &bytes.Buffer{})
			assert.Error(t, err)
		})
	}
}

func TestSetup(t *testing.T) {
	assert := assert.New(t)
	v, logger, diag, err := setup([]string{"--file", writeConfig(t, testConfig)}, &bytes.Buffer{})
	require.NoError(t, err)
	require.NotNil(t, v)
	require.NotNil(t, diag)

	logger.Debug("below the diagnostics level")
	logger.Info("camera list refreshed", diaglog.CategoryCamera.Field(), zap.Int("count", 3))

	entries := diag.Entries()
	require.Len(t, entries, 1)
	assert.Equal(diaglog.CategoryCamera, entries[0].Category)
	assert.Equal("camera list refreshed", entries[0].Message)
	assert.EqualValues(3, entries[0].Details["count"])
}

func TestSetupDebug(t *testing.T) {
	_, _, diag, err := setup([]string{"--debug", "--file", writeConfig(t, testConfig)}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, diaglog.LevelDebug, diag.Level())
}

func testViper(t *testing.T) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.Set("servers.primary.address", "127.0.0.1:0")
	v.Set("servers.metrics.address", "127.0.0.1:0")
	v.Set("servers.health.address", "127.0.0.1:0")
	v.Set("streams.mockDir", t.TempDir())
	return v
}

func TestApp(t *testing.T) {
	assert := assert.New(t)
	diag, err := diaglog.New(diaglog.Config{})
	require.NoError(t, err)

	var (
		handlers *proxy.Handlers
		cache    *streamcache.Cache
		bound    = make(chan net.Addr, 3)
	)
	app := newApp(testViper(t), zap.NewNop(), diag,
		fx.Supply(arrangehttp.NewListenerChain(arrangehttp.CaptureListenAddress(bound))),
		fx.Populate(&handlers, &cache),
	)
	require.NoError(t, app.Err())
	assert.NotNil(handlers)
	assert.NotNil(cache)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, app.Start(ctx))

	// the sweep is running, so a second start is refused
	assert.ErrorIs(cache.Start(ctx), streamcache.ErrSweepNotStopped)

	// only the health server answers on the health path
	var healthy int
	for i := 0; i < 3; i++ {
		addr, ok := arrangehttp.AwaitListenAddress(t.Errorf, bound, time.Second)
		require.True(t, ok)
		resp, err := http.Get("http://" + addr.String() + healthPath)
		require.NoError(t, err)
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			healthy++
		}
	}
	assert.Equal(1, healthy)

	require.NoError(t, app.Stop(ctx))
}

func TestAppInvalidConfig(t *testing.T) {
	diag, err := diaglog.New(diaglog.Config{})
	require.NoError(t, err)

	v := testViper(t)
	v.Set("streams.publicBase", "not a url")
	app := newApp(v, zap.NewNop(), diag)
	assert.Error(t, app.Err())
}

func TestAppStreamClientTimeout(t *testing.T) {
	diag, err := diaglog.New(diaglog.Config{})
	require.NoError(t, err)

	v := testViper(t)
	v.Set("vms.streamClient.timeout", "30s")
	assert.Error(t, newApp(v, zap.NewNop(), diag).Err())
}
