// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package streamcache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/xmidt-org/panoptes/diaglog"
	"github.com/xmidt-org/panoptes/model"
	"github.com/xmidt-org/panoptes/vms"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNilMeasures     = errors.New("measures cannot be nil")
	ErrNoFetcher       = errors.New("no fetcher provided")
	ErrSweepNotStopped = errors.New("sweep is either running or starting")
	ErrSweepNotRunning = errors.New("sweep is either stopped or stopping")
)

// sweep states
const (
	stopped int32 = iota
	running
	transitioning
)

const (
	defaultTTL           = time.Minute * 5
	defaultCheckInterval = time.Minute
	defaultFetchTimeout  = time.Second * 15
)

// Config tunes the cache.
type Config struct {
	// TTL is the age past which the sweep evicts an entry.
	// (Optional) Defaults to 5 minutes.
	TTL time.Duration

	// CheckInterval is how often the sweep runs once started.
	// (Optional) Defaults to 1 minute.
	CheckInterval time.Duration

	// FetchTimeout bounds a shared resolution. It runs detached from the
	// request that started it, so a caller going away does not fail the
	// others waiting on the same flight.
	// (Optional) Defaults to 15 seconds.
	FetchTimeout time.Duration

	// Logger to be used by the cache.
	// (Optional). By default a no op logger will be used.
	Logger *zap.Logger
}

type entry struct {
	url        string
	insertedAt time.Time
}

// Cache memoises resolved stream URLs. Lookups never check the age of an
// entry; only Sweep evicts by age.
type Cache struct {
	entries     *xsync.Map[string, entry]
	generations *xsync.Map[string, uint64]
	inflight    singleflight.Group
	fetcher  Fetcher
	config   Config
	logger   *zap.Logger
	measures *Measures
	now      func() time.Time

	shutdown chan struct{}
	done     chan struct{}
	state    int32
}

func validateConfig(config *Config) {
	if config.TTL <= 0 {
		config.TTL = defaultTTL
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = defaultCheckInterval
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = defaultFetchTimeout
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
}

// New builds an empty cache. Call Start to run the periodic sweep.
func New(config Config, f Fetcher, measures *Measures) (*Cache, error) {
	if f == nil {
		return nil, ErrNoFetcher
	}
	if measures == nil {
		return nil, ErrNilMeasures
	}
	validateConfig(&config)

	return &Cache{
		entries:     xsync.NewMap[string, entry](),
		generations: xsync.NewMap[string, uint64](),
		fetcher:     f,
		config:      config,
		logger:      config.Logger.With(diaglog.CategoryStream.Field()),
		measures:    measures,
		now:         time.Now,
	}, nil
}

// Resolve returns the cached URL for key, resolving it on a miss. Concurrent
// misses for the same key and credentials share one upstream call, which
// keeps running when the caller that started it gives up. Each caller only
// waits as long as its own ctx allows.
func (c *Cache) Resolve(ctx context.Context, key model.StreamKey, creds vms.Credentials) (string, error) {
	k := key.String()
	if e, ok := c.entries.Load(k); ok {
		c.measures.Lookups.WithLabelValues(HitResult).Inc()
		return e.url, nil
	}
	c.measures.Lookups.WithLabelValues(MissResult).Inc()

	ch := c.inflight.DoChan(flightKey(k, creds), func() (any, error) {
		// a flight that finished after our Load may have stored it already
		if e, ok := c.entries.Load(k); ok {
			return e.url, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.FetchTimeout)
		defer cancel()
		return c.fetch(fctx, key, creds, c.generation(k))
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Invalidate drops the entry for key and resolves it again. It never reuses
// the cached value or a resolution already in flight, and a flight that
// started before the call cannot overwrite what it stores.
func (c *Cache) Invalidate(ctx context.Context, key model.StreamKey, creds vms.Credentials) (string, error) {
	k := key.String()
	gen, _ := c.generations.Compute(k, func(current uint64, _ bool) (uint64, xsync.ComputeOp) {
		return current + 1, xsync.UpdateOp
	})
	c.entries.Delete(k)
	c.inflight.Forget(flightKey(k, creds))
	c.measures.Size.Set(float64(c.entries.Size()))
	c.logger.Debug("stream url invalidated", zap.String("key", k))
	return c.fetch(ctx, key, creds, gen)
}

// ResolveFallback hands out the mock stream for the camera and index of key
// after the requested type failed with cause. Callers opt into this; Resolve
// never switches types on its own.
func (c *Cache) ResolveFallback(ctx context.Context, key model.StreamKey, creds vms.Credentials, cause error) (string, error) {
	c.measures.Fallbacks.WithLabelValues(string(key.Type)).Inc()
	c.logger.Warn("falling back to the mock stream",
		zap.String("key", key.String()), zap.Error(cause))
	return c.Resolve(ctx, model.StreamKey{CameraID: key.CameraID, Type: model.StreamMock, Index: key.Index}, creds)
}

func flightKey(k string, creds vms.Credentials) string {
	return k + "|" + creds.ServerURL + "|" + creds.Authorization
}

func (c *Cache) generation(k string) uint64 {
	gen, _ := c.generations.Load(k)
	return gen
}

// fetch resolves key without looking at the cache. The result is stored only
// if key has not been invalidated since gen was read.
func (c *Cache) fetch(ctx context.Context, key model.StreamKey, creds vms.Credentials, gen uint64) (string, error) {
	u, err := c.fetcher.Fetch(ctx, key, creds)
	if err != nil {
		c.measures.Failures.WithLabelValues(string(key.Type)).Inc()
		if key.Type == model.StreamMock {
			c.measures.Fallbacks.WithLabelValues(string(key.Type)).Inc()
			c.logger.Warn("mock stream route failed, using the built-in mock url",
				zap.String("key", key.String()), zap.Error(err))
			return model.MockStreamURL(key.CameraID, key.Index), nil
		}
		c.logger.Error("failed to resolve stream url", zap.String("key", key.String()), zap.Error(err))
		return "", err
	}

	k := key.String()
	c.entries.Compute(k, func(current entry, _ bool) (entry, xsync.ComputeOp) {
		if c.generation(k) != gen {
			c.logger.Debug("dropping a stream url resolved before invalidation", zap.String("key", k))
			return current, xsync.CancelOp
		}
		return entry{url: u, insertedAt: c.now()}, xsync.UpdateOp
	})
	c.measures.Size.Set(float64(c.entries.Size()))
	return u, nil
}

// Sweep evicts every entry older than the TTL and reports how many went.
func (c *Cache) Sweep() int {
	now := c.now()
	var evicted int
	c.entries.Range(func(k string, e entry) bool {
		if now.Sub(e.insertedAt) <= c.config.TTL {
			return true
		}
		c.entries.Compute(k, func(current entry, loaded bool) (entry, xsync.ComputeOp) {
			if !loaded || now.Sub(current.insertedAt) <= c.config.TTL {
				// stored again since the range saw it
				return current, xsync.CancelOp
			}
			evicted++
			return current, xsync.DeleteOp
		})
		return true
	})

	c.measures.Evictions.Add(float64(evicted))
	c.measures.Size.Set(float64(c.entries.Size()))
	if evicted > 0 {
		c.logger.Debug("evicted stale stream urls", zap.Int("count", evicted))
	}
	return evicted
}

// Len is the number of cached entries.
func (c *Cache) Len() int {
	return c.entries.Size()
}

// Start runs Sweep every CheckInterval until Stop is called. Starting a cache
// that is already running returns an error.
func (c *Cache) Start(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&c.state, stopped, transitioning) {
		c.logger.Error("Start called when the sweep was not in stopped state", zap.Error(ErrSweepNotStopped))
		return ErrSweepNotStopped
	}

	c.shutdown = make(chan struct{})
	c.done = make(chan struct{})
	ticker := time.NewTicker(c.config.CheckInterval)
	go func(shutdown <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-shutdown:
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}(c.shutdown, c.done)

	atomic.SwapInt32(&c.state, running)
	return nil
}

// Stop ends the periodic sweep and waits for it to exit. Stopping a cache that
// is not running returns an error.
func (c *Cache) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&c.state, running, transitioning) {
		c.logger.Error("Stop called when the sweep was not in running state", zap.Error(ErrSweepNotRunning))
		return ErrSweepNotRunning
	}

	close(c.shutdown)
	var err error
	select {
	case <-c.done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	atomic.SwapInt32(&c.state, stopped)
	return err
}
