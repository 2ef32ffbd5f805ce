// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package streamcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/panoptes/model"
	"github.com/xmidt-org/panoptes/vms"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/zap"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, key model.StreamKey, creds vms.Credentials) (string, error) {
	args := m.Called(key, creds)
	return args.String(0), args.Error(1)
}

var testCreds = vms.Credentials{ServerURL: "http://vms.local", Authorization: "Basic abc"}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestCache(t *testing.T, f Fetcher) (*Cache, *testClock) {
	m, err := NewMeasures(touchstone.NewFactory(touchstone.Config{}, zap.NewNop(), prometheus.NewPedanticRegistry()))
	require.NoError(t, err)
	c, err := New(Config{}, f, m)
	require.NoError(t, err)
	clock := &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c.now = clock.Now
	return c, clock
}

func TestNew(t *testing.T) {
	assert := assert.New(t)
	m, err := NewMeasures(touchstone.NewFactory(touchstone.Config{}, zap.NewNop(), prometheus.NewPedanticRegistry()))
	require.NoError(t, err)

	_, err = New(Config{}, nil, m)
	assert.ErrorIs(err, ErrNoFetcher)
	_, err = New(Config{}, new(mockFetcher), nil)
	assert.ErrorIs(err, ErrNilMeasures)

	c, err := New(Config{}, new(mockFetcher), m)
	require.NoError(t, err)
	assert.Equal(defaultTTL, c.config.TTL)
	assert.Equal(defaultCheckInterval, c.config.CheckInterval)
}

func TestResolveHitSkipsNetwork(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)
		f       = new(mockFetcher)
		key     = model.StreamKey{CameraID: "1", Type: model.StreamHLS, Index: 0}
	)
	f.On("Fetch", key, testCreds).Return("http://vms.local/hls/1.m3u8", nil).Once()
	c, clock := newTestCache(t, f)

	u, err := c.Resolve(context.Background(), key, testCreds)
	require.NoError(err)
	assert.Equal("http://vms.local/hls/1.m3u8", u)

	// reads never check age, even long past the TTL
	clock.Advance(time.Hour)
	u, err = c.Resolve(context.Background(), key, testCreds)
	require.NoError(err)
	assert.Equal("http://vms.local/hls/1.m3u8", u)

	f.AssertNumberOfCalls(t, "Fetch", 1)
	assert.Equal(1.0, testutil.ToFloat64(c.measures.Lookups.WithLabelValues(HitResult)))
	assert.Equal(1.0, testutil.ToFloat64(c.measures.Lookups.WithLabelValues(MissResult)))
}

func TestResolveFailures(t *testing.T) {
	upstream := errors.New("nope")
	tcs := []struct {
		Description string
		Key         model.StreamKey
		ExpectedURL string
		ExpectedErr error
	}{
		{
			Description: "Mock falls back to the built-in url",
			Key:         model.StreamKey{CameraID: "5", Type: model.StreamMock, Index: 1},
			ExpectedURL: "/mock-streams/camera-5-stream-1.mp4",
		},
		{
			Description: "HLS surfaces the error",
			Key:         model.StreamKey{CameraID: "5", Type: model.StreamHLS, Index: 1},
			ExpectedErr: upstream,
		},
		{
			Description: "Generic surfaces the error",
			Key:         model.StreamKey{CameraID: "5", Type: model.StreamGeneric},
			ExpectedErr: upstream,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)
			f := new(mockFetcher)
			f.On("Fetch", tc.Key, testCreds).Return("", upstream)
			c, _ := newTestCache(t, f)

			u, err := c.Resolve(context.Background(), tc.Key, testCreds)
			assert.ErrorIs(err, tc.ExpectedErr)
			assert.Equal(tc.ExpectedURL, u)
			// failures are never cached
			assert.Zero(c.Len())
			assert.Equal(1.0, testutil.ToFloat64(c.measures.Failures.WithLabelValues(string(tc.Key.Type))))
		})
	}
}

func TestResolveFallback(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)
		f       = new(mockFetcher)
		key     = model.StreamKey{CameraID: "2", Type: model.StreamWebRTC, Index: 1}
		mockKey = model.StreamKey{CameraID: "2", Type: model.StreamMock, Index: 1}
	)
	f.On("Fetch", mockKey, testCreds).Return("/mock-streams/camera-2-stream-1.mp4", nil)
	c, _ := newTestCache(t, f)

	u, err := c.ResolveFallback(context.Background(), key, testCreds, errors.New("webrtc down"))
	require.NoError(err)
	assert.Equal("/mock-streams/camera-2-stream-1.mp4", u)
	assert.Equal(1.0, testutil.ToFloat64(c.measures.Fallbacks.WithLabelValues(string(model.StreamWebRTC))))
}

func TestInvalidateBypassesCache(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)
		f       = new(mockFetcher)
		key     = model.StreamKey{CameraID: "1", Type: model.StreamGeneric}
	)
	f.On("Fetch", key, testCreds).Return("http://vms.local/a", nil).Once()
	f.On("Fetch", key, testCreds).Return("http://vms.local/b", nil).Once()
	c, _ := newTestCache(t, f)

	u, err := c.Resolve(context.Background(), key, testCreds)
	require.NoError(err)
	assert.Equal("http://vms.local/a", u)

	u, err = c.Invalidate(context.Background(), key, testCreds)
	require.NoError(err)
	assert.Equal("http://vms.local/b", u)

	u, err = c.Resolve(context.Background(), key, testCreds)
	require.NoError(err)
	assert.Equal("http://vms.local/b", u)
	f.AssertExpectations(t)
}

func TestInvalidateFailureLeavesNoEntry(t *testing.T) {
	var (
		f   = new(mockFetcher)
		key = model.StreamKey{CameraID: "1", Type: model.StreamHLS}
	)
	f.On("Fetch", key, testCreds).Return("http://vms.local/a", nil).Once()
	f.On("Fetch", key, testCreds).Return("", vms.ErrUpstreamUnreachable).Once()
	c, _ := newTestCache(t, f)

	_, err := c.Resolve(context.Background(), key, testCreds)
	require.NoError(t, err)
	_, err = c.Invalidate(context.Background(), key, testCreds)
	assert.ErrorIs(t, err, vms.ErrUpstreamUnreachable)
	assert.Zero(t, c.Len())
}

func TestSweep(t *testing.T) {
	var (
		assert = assert.New(t)
		f      = new(mockFetcher)
		old    = model.StreamKey{CameraID: "1", Type: model.StreamHLS}
		fresh  = model.StreamKey{CameraID: "2", Type: model.StreamHLS}
	)
	f.On("Fetch", old, testCreds).Return("http://vms.local/1", nil)
	f.On("Fetch", fresh, testCreds).Return("http://vms.local/2", nil)
	c, clock := newTestCache(t, f)

	_, err := c.Resolve(context.Background(), old, testCreds)
	require.NoError(t, err)
	clock.Advance(3 * time.Minute)
	_, err = c.Resolve(context.Background(), fresh, testCreds)
	require.NoError(t, err)

	// exactly at the TTL nothing is stale yet
	clock.Advance(2 * time.Minute)
	assert.Zero(c.Sweep())
	assert.Equal(2, c.Len())

	clock.Advance(time.Second)
	assert.Equal(1, c.Sweep())
	assert.Equal(1, c.Len())

	clock.Advance(3 * time.Minute)
	assert.Equal(1, c.Sweep())
	assert.Zero(c.Len())
	assert.Equal(2.0, testutil.ToFloat64(c.measures.Evictions))
	assert.Zero(testutil.ToFloat64(c.measures.Size))

	// an evicted key is fetched again
	_, err = c.Resolve(context.Background(), old, testCreds)
	require.NoError(t, err)
	f.AssertNumberOfCalls(t, "Fetch", 3)
}

func TestConcurrentMissesShareOneFetch(t *testing.T) {
	const callers = 16
	var (
		assert  = assert.New(t)
		calls   atomic.Int32
		release = make(chan struct{})
		key     = model.StreamKey{CameraID: "9", Type: model.StreamHLS, Index: 2}
	)
	c, _ := newTestCache(t, FetcherFunc(func(ctx context.Context, k model.StreamKey, _ vms.Credentials) (string, error) {
		calls.Add(1)
		<-release
		return "http://vms.local/9", nil
	}))

	var wg sync.WaitGroup
	urls := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := c.Resolve(context.Background(), key, testCreds)
			assert.NoError(err)
			urls[i] = u
		}(i)
	}

	assert.Eventually(func() bool {
		return testutil.ToFloat64(c.measures.Lookups.WithLabelValues(MissResult)) == callers
	}, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(int32(1), calls.Load())
	for _, u := range urls {
		assert.Equal("http://vms.local/9", u)
	}
}

func TestResolveOutlivesCancelledCaller(t *testing.T) {
	var (
		assert  = assert.New(t)
		calls   atomic.Int32
		release = make(chan struct{})
		key     = model.StreamKey{CameraID: "4", Type: model.StreamHLS}
	)
	c, _ := newTestCache(t, FetcherFunc(func(ctx context.Context, _ model.StreamKey, _ vms.Credentials) (string, error) {
		calls.Add(1)
		select {
		case <-release:
			return "http://vms.local/4", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}))

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.Resolve(ctx, key, testCreds)
		first <- err
	}()
	assert.Eventually(func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan string, 1)
	go func() {
		u, err := c.Resolve(context.Background(), key, testCreds)
		assert.NoError(err)
		second <- u
	}()
	assert.Eventually(func() bool {
		return testutil.ToFloat64(c.measures.Lookups.WithLabelValues(MissResult)) == 2
	}, time.Second, time.Millisecond)

	// the first view closes while the resolve is pending
	cancel()
	assert.ErrorIs(<-first, context.Canceled)

	close(release)
	assert.Equal("http://vms.local/4", <-second)
	assert.Equal(int32(1), calls.Load())
	assert.Equal(1, c.Len())
}

func TestResolveFetchTimeout(t *testing.T) {
	key := model.StreamKey{CameraID: "4", Type: model.StreamWebRTC}
	c, _ := newTestCache(t, FetcherFunc(func(ctx context.Context, _ model.StreamKey, _ vms.Credentials) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}))
	c.config.FetchTimeout = 10 * time.Millisecond

	_, err := c.Resolve(context.Background(), key, testCreds)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, c.Len())
}

func TestResolveSeparatesCredentials(t *testing.T) {
	var (
		assert  = assert.New(t)
		calls   atomic.Int32
		release = make(chan struct{})
		key     = model.StreamKey{CameraID: "6", Type: model.StreamGeneric}
		other   = vms.Credentials{ServerURL: "http://other.local", Authorization: "Basic xyz"}
	)
	c, _ := newTestCache(t, FetcherFunc(func(_ context.Context, _ model.StreamKey, creds vms.Credentials) (string, error) {
		calls.Add(1)
		<-release
		return creds.ServerURL + "/6", nil
	}))

	var wg sync.WaitGroup
	results := make(map[string]string)
	var mu sync.Mutex
	for _, creds := range []vms.Credentials{testCreds, other} {
		wg.Add(1)
		go func(creds vms.Credentials) {
			defer wg.Done()
			u, err := c.Resolve(context.Background(), key, creds)
			assert.NoError(err)
			mu.Lock()
			results[creds.ServerURL] = u
			mu.Unlock()
		}(creds)
	}

	assert.Eventually(func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal("http://vms.local/6", results[testCreds.ServerURL])
	assert.Equal("http://other.local/6", results[other.ServerURL])
}

func TestInvalidateWinsOverOlderFlight(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)
		calls   atomic.Int32
		started = make(chan struct{})
		release = make(chan struct{})
		key     = model.StreamKey{CameraID: "8", Type: model.StreamHLS}
	)
	c, _ := newTestCache(t, FetcherFunc(func(context.Context, model.StreamKey, vms.Credentials) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return "http://vms.local/old", nil
		}
		return "http://vms.local/new", nil
	}))

	older := make(chan string, 1)
	go func() {
		u, err := c.Resolve(context.Background(), key, testCreds)
		assert.NoError(err)
		older <- u
	}()
	<-started

	u, err := c.Invalidate(context.Background(), key, testCreds)
	require.NoError(err)
	assert.Equal("http://vms.local/new", u)

	// the older flight still answers its own caller but does not replace
	// the fresh entry
	close(release)
	assert.Equal("http://vms.local/old", <-older)

	u, err = c.Resolve(context.Background(), key, testCreds)
	require.NoError(err)
	assert.Equal("http://vms.local/new", u)
	assert.Equal(int32(2), calls.Load())
}

func TestStartStop(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)
		ctx     = context.Background()
	)
	c, _ := newTestCache(t, new(mockFetcher))
	c.config.CheckInterval = time.Millisecond

	assert.ErrorIs(c.Stop(ctx), ErrSweepNotRunning)
	require.NoError(c.Start(ctx))
	assert.ErrorIs(c.Start(ctx), ErrSweepNotStopped)
	require.NoError(c.Stop(ctx))
	assert.ErrorIs(c.Stop(ctx), ErrSweepNotRunning)

	// restartable
	require.NoError(c.Start(ctx))
	require.NoError(c.Stop(ctx))
}
