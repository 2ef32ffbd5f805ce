// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package diaglog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CategoryKey is the zap field read by Core to pick the entry category.
const CategoryKey = "category"

// Field tags a zap log record with c.
func (c Category) Field() zap.Field {
	return zap.String(CategoryKey, string(c))
}

// Core mirrors zap records into a Logger. Tee it with the process core so
// ordinary structured logging shows up in the diagnostics view.
type Core struct {
	logger *Logger
	fields []zapcore.Field
}

var _ zapcore.Core = (*Core)(nil)

// NewCore wraps l as a zapcore.Core.
func NewCore(l *Logger) *Core {
	return &Core{logger: l}
}

func levelOf(z zapcore.Level) Level {
	switch {
	case z <= zapcore.DebugLevel:
		return LevelDebug
	case z == zapcore.InfoLevel:
		return LevelInfo
	case z == zapcore.WarnLevel:
		return LevelWarn
	default:
		return LevelError
	}
}

func (c *Core) Enabled(z zapcore.Level) bool {
	return levelOf(z) >= c.logger.Level()
}

func (c *Core) With(fields []zapcore.Field) zapcore.Core {
	all := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	all = append(all, c.fields...)
	all = append(all, fields...)
	return &Core{logger: c.logger, fields: all}
}

func (c *Core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *Core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	category := CategorySystem
	if v, ok := enc.Fields[CategoryKey].(string); ok {
		if parsed, valid := ParseCategory(v); valid {
			category = parsed
		}
	}
	delete(enc.Fields, CategoryKey)

	var details map[string]interface{}
	if len(enc.Fields) > 0 {
		details = enc.Fields
	}
	if len(ent.LoggerName) > 0 {
		if details == nil {
			details = make(map[string]interface{}, 1)
		}
		details["logger"] = ent.LoggerName
	}

	c.logger.log(Entry{
		Timestamp: ent.Time.UTC(),
		Level:     levelOf(ent.Level),
		Category:  category,
		Message:   ent.Message,
		Details:   details,
	})
	return nil
}

func (c *Core) Sync() error {
	return nil
}
