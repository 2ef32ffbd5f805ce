// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package diaglog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestCore(t *testing.T) {
	assert := assert.New(t)
	l := newTestLogger(t, Config{})
	z := zap.New(NewCore(l)).Named("cache")

	z.With(CategoryStream.Field()).Warn("falling back", zap.String("key", "1:hls:0"))
	z.Error("vms call failed", zap.Error(errors.New("boom")), CategoryVMS.Field())
	z.Info("no category")
	z.Debug("bogus category", zap.String(CategoryKey, "kitchen"))

	entries := l.Entries()
	require.Len(t, entries, 4)

	assert.Equal(LevelDebug, entries[0].Level)
	assert.Equal(CategorySystem, entries[0].Category)

	assert.Equal(LevelInfo, entries[1].Level)
	assert.Equal(CategorySystem, entries[1].Category)
	assert.Equal(map[string]interface{}{"logger": "cache"}, entries[1].Details)

	assert.Equal(LevelError, entries[2].Level)
	assert.Equal(CategoryVMS, entries[2].Category)
	assert.Equal("boom", entries[2].Details["error"])

	assert.Equal(LevelWarn, entries[3].Level)
	assert.Equal(CategoryStream, entries[3].Category)
	assert.Equal("falling back", entries[3].Message)
	assert.Equal("1:hls:0", entries[3].Details["key"])
	assert.NotContains(entries[3].Details, CategoryKey)
}

func TestCoreLevel(t *testing.T) {
	assert := assert.New(t)
	l := newTestLogger(t, Config{Level: "ERROR"})
	core := NewCore(l)

	assert.False(core.Enabled(zapcore.WarnLevel))
	assert.True(core.Enabled(zapcore.ErrorLevel))
	assert.True(core.Enabled(zapcore.DPanicLevel))

	z := zap.New(core)
	z.Warn("dropped")
	z.Error("kept")
	assert.Len(l.Entries(), 1)

	l.SetLevel(LevelInfo)
	assert.True(core.Enabled(zapcore.InfoLevel))
	assert.NoError(core.Sync())
}

func TestCoreTee(t *testing.T) {
	l := newTestLogger(t, Config{})
	tee := zap.New(zapcore.NewTee(zap.NewNop().Core(), NewCore(l)))

	tee.Info("mirrored", CategoryHTTP.Field())
	entries := l.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, CategoryHTTP, entries[0].Category)
}
