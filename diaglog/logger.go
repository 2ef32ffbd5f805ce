// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package diaglog keeps the most recent log entries of the service in memory
// so they can be shown on the dashboard's diagnostics view.
package diaglog

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultCapacity = 1000

var ErrUnknownLevel = errors.New("unknown log level")

// Level orders entries by severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel accepts the level names case-insensitively. The empty string is
// DEBUG.
func ParseLevel(s string) (Level, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "":
		return LevelDebug, nil
	case "WARNING":
		return LevelWarn, nil
	}
	for i, name := range levelNames {
		if name == s {
			return Level(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	v, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// Category groups entries by the part of the service that produced them.
type Category string

const (
	CategorySystem       Category = "system"
	CategoryHTTP         Category = "http"
	CategoryVMS          Category = "vms"
	CategoryStream       Category = "stream"
	CategoryArchive      Category = "archive"
	CategoryCamera       Category = "camera"
	CategoryPTZ          Category = "ptz"
	CategoryFace         Category = "face"
	CategoryNotification Category = "notification"
)

// ParseCategory reports whether s names one of the known categories.
func ParseCategory(s string) (Category, bool) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategorySystem, CategoryHTTP, CategoryVMS, CategoryStream, CategoryArchive,
		CategoryCamera, CategoryPTZ, CategoryFace, CategoryNotification:
		return c, true
	}
	return "", false
}

// Entry is a single buffered log record.
type Entry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     Level                  `json:"level"`
	Category  Category               `json:"category"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Listener is called with every entry that passes the level filter.
type Listener func(Entry)

// Config configures the buffer.
type Config struct {
	// Capacity is the number of entries kept.
	// (Optional) Defaults to 1000.
	Capacity int `validate:"gte=0"`

	// Level is the minimum level kept, one of DEBUG, INFO, WARN or ERROR.
	// (Optional) Defaults to DEBUG.
	Level string
}

type registration struct {
	id uint64
	fn Listener
}

// Logger is a bounded in-memory log. It is safe for concurrent use.
type Logger struct {
	lock      sync.Mutex
	entries   []Entry // ring of capacity slots
	next      int     // slot the next entry goes into
	size      int
	capacity  int
	level     Level
	listeners []registration
	nextID    uint64
	now       func() time.Time
}

// New builds a Logger from config.
func New(config Config) (*Logger, error) {
	level, err := ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}
	if config.Capacity <= 0 {
		config.Capacity = defaultCapacity
	}
	return &Logger{
		entries:  make([]Entry, config.Capacity),
		capacity: config.Capacity,
		level:    level,
		now:      time.Now,
	}, nil
}

// Log records an entry stamped with the current time.
func (l *Logger) Log(level Level, category Category, message string, details map[string]interface{}) {
	l.log(Entry{
		Timestamp: l.now().UTC(),
		Level:     level,
		Category:  category,
		Message:   message,
		Details:   details,
	})
}

func (l *Logger) log(e Entry) {
	if len(e.Category) == 0 {
		e.Category = CategorySystem
	}

	l.lock.Lock()
	if e.Level < l.level {
		l.lock.Unlock()
		return
	}
	l.entries[l.next] = e
	l.next = (l.next + 1) % l.capacity
	if l.size < l.capacity {
		l.size++
	}
	listeners := make([]registration, len(l.listeners))
	copy(listeners, l.listeners)
	l.lock.Unlock()

	for _, r := range listeners {
		notify(r.fn, e)
	}
}

func notify(fn Listener, e Entry) {
	defer func() {
		_ = recover()
	}()
	fn(e)
}

// Entries returns a copy of the buffer, newest first.
func (l *Logger) Entries() []Entry {
	l.lock.Lock()
	defer l.lock.Unlock()

	out := make([]Entry, l.size)
	for i := range out {
		out[i] = l.entries[(l.next-1-i+l.capacity)%l.capacity]
	}
	return out
}

// AddListener registers fn. Listeners run synchronously, in registration
// order, after the entry is stored. The returned function removes fn.
func (l *Logger) AddListener(fn Listener) func() {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.nextID++
	id := l.nextID
	l.listeners = append(l.listeners, registration{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			l.lock.Lock()
			defer l.lock.Unlock()
			for i, r := range l.listeners {
				if r.id == id {
					l.listeners = append(l.listeners[:i:i], l.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// SetLevel changes the minimum level. Entries already buffered are kept.
func (l *Logger) SetLevel(level Level) {
	l.lock.Lock()
	l.level = level
	l.lock.Unlock()
}

// Level is the current minimum level.
func (l *Logger) Level() Level {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.level
}

// Clear drops every buffered entry.
func (l *Logger) Clear() {
	l.lock.Lock()
	clear(l.entries)
	l.next, l.size = 0, 0
	l.lock.Unlock()
}
