package nsapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"rosterwatch/internal/platform/metrics"
	"rosterwatch/pkg/domain"
	"rosterwatch/pkg/platform/sentinel"
)

// sleepRecorder captures requested sleeps instead of blocking.
type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sleeps = append(r.sleeps, d)
	return ctx.Err()
}

func (r *sleepRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sleeps = nil
}

func (r *sleepRecorder) Recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.sleeps...)
}

type ClientSuite struct {
	suite.Suite
	server   *httptest.Server
	mu       sync.Mutex
	handler  http.HandlerFunc
	requests []*http.Request
	sleeper  *sleepRecorder
	metrics  *metrics.Metrics
	client   *Client
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.requests = nil
	s.setHandler(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderRemaining, "49")
		_, _ = w.Write([]byte(`<REGION id="testregionia"><NATIONS>a:b</NATIONS></REGION>`))
	})
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Clone(context.Background()))
		handler := s.handler
		s.mu.Unlock()
		handler(w, r)
	}))
	s.sleeper = &sleepRecorder{}
	s.metrics = metrics.NewWithRegistry(prometheus.NewRegistry())

	var err error
	s.client, err = New(
		Identity{Product: "Rosterwatch", Version: "1.0", Developer: "devnation", User: "main_nation"},
		WithBaseURL(s.server.URL),
		WithFixedDelay(600*time.Millisecond),
		WithSleep(s.sleeper.Sleep),
		WithMetrics(s.metrics),
	)
	s.Require().NoError(err)
}

func (s *ClientSuite) setHandler(h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

func (s *ClientSuite) recordedRequests() []*http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*http.Request(nil), s.requests...)
}

func (s *ClientSuite) TearDownTest() {
	s.server.Close()
}

func (s *ClientSuite) TestNew() {
	s.Run("missing user is fatal", func() {
		_, err := New(Identity{Product: "Rosterwatch"})
		s.ErrorIs(err, ErrIdentificationMissing)
	})

	s.Run("whitespace user is fatal", func() {
		_, err := New(Identity{User: "   "})
		s.ErrorIs(err, ErrIdentificationMissing)
	})
}

func (s *ClientSuite) TestFetch_RequestShape() {
	result, err := s.client.Fetch(context.Background(), KindRegion, "testregionia", ShardNations, ShardLastUpdate)
	s.Require().NoError(err)
	requests := s.recordedRequests()
	s.Require().Len(requests, 1)

	req := requests[0]
	s.Equal("testregionia", req.URL.Query().Get("region"))
	s.Equal("nations lastupdate", req.URL.Query().Get("q"))
	s.Contains(req.Header.Get("User-Agent"), "in use by nation=main_nation")
	s.Contains(req.Header.Get("User-Agent"), "developed by nation=devnation")

	members, err := result.Identifiers(FieldNations)
	s.Require().NoError(err)
	s.Equal([]domain.Identifier{"a", "b"}, members)
	s.False(result.Throttled)
	s.Empty(s.sleeper.Recorded())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.FetchesTotal.WithLabelValues("region", "ok")))
	s.Equal(49.0, testutil.ToFloat64(s.metrics.QuotaRemaining))
}

func (s *ClientSuite) TestFetch_RetryAfter() {
	s.setHandler(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderRetryAfter, "4")
		w.Header().Set(HeaderRemaining, "40")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	result, err := s.client.Fetch(context.Background(), KindRegion, "testregionia", ShardNations)
	s.Require().NoError(err, "throttling is a warning, not a failure")
	s.True(result.Throttled)
	s.True(result.Empty())
	s.Equal([]time.Duration{4 * time.Second}, s.sleeper.Recorded())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.RetryAfterWaitsTotal))
}

func (s *ClientSuite) TestFetch_Pacing() {
	s.Run("low quota sleeps only the excess over the fixed delay", func() {
		s.sleeper.Reset()
		s.setHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(HeaderRemaining, "5")
			w.Header().Set(HeaderReset, "10")
			_, _ = w.Write([]byte(`<REGION id="r"><NATIONS>a</NATIONS></REGION>`))
		})
		_, err := s.client.Fetch(context.Background(), KindRegion, "r", ShardNations)
		s.Require().NoError(err)
		s.Equal([]time.Duration{1400 * time.Millisecond}, s.sleeper.Recorded())
	})

	s.Run("pace below the fixed delay sleeps nothing", func() {
		s.sleeper.Reset()
		s.setHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(HeaderRemaining, "9")
			w.Header().Set(HeaderReset, "2")
			_, _ = w.Write([]byte(`<REGION id="r"><NATIONS>a</NATIONS></REGION>`))
		})
		_, err := s.client.Fetch(context.Background(), KindRegion, "r", ShardNations)
		s.Require().NoError(err)
		s.Empty(s.sleeper.Recorded())
	})
}

func (s *ClientSuite) TestFetch_Errors() {
	s.Run("not found is not retryable", func() {
		s.setHandler(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		_, err := s.client.Fetch(context.Background(), KindRegion, "nowhere", ShardNations)
		s.Require().Error(err)
		s.Equal(CategoryNotFound, GetCategory(err))
		s.False(IsRetryable(err))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("server error is transient", func() {
		s.setHandler(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := s.client.Fetch(context.Background(), KindRegion, "r", ShardNations)
		s.Require().Error(err)
		s.True(IsRetryable(err))
	})

	s.Run("unexpected status is a bad response", func() {
		s.setHandler(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})
		_, err := s.client.Fetch(context.Background(), KindRegion, "r", ShardNations)
		s.Equal(CategoryBadResponse, GetCategory(err))
	})

	s.Run("malformed body is no data, not an error", func() {
		s.setHandler(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>oops`))
		})
		result, err := s.client.Fetch(context.Background(), KindRegion, "r", ShardNations)
		s.Require().NoError(err)
		s.True(result.Empty())
		_, err = result.Identifiers(FieldNations)
		s.ErrorIs(err, sentinel.ErrNoData)
	})
}

func (s *ClientSuite) TestFetch_PinCaptured() {
	s.setHandler(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderPin, "98765")
		_, _ = w.Write([]byte(`<NATION id="n"><REGION>Home</REGION></NATION>`))
	})
	_, err := s.client.Fetch(context.Background(), KindNation, "n", ShardRegion)
	s.Require().NoError(err)
	s.Equal("98765", s.client.Pin())
}

func TestFetch_TransportFailureIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, err := New(Identity{User: "me"}, WithBaseURL(url), WithTimeout(time.Second))
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), KindRegion, "r", ShardNations)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, CategoryTransient, GetCategory(err))
}

func TestFetch_CancelledDuringRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderRetryAfter, "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := New(Identity{User: "me"}, WithBaseURL(server.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = client.Fetch(ctx, KindRegion, "r", ShardNations)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestIdentityUserAgent(t *testing.T) {
	ua := Identity{Product: "Rosterwatch", Version: "0.3.0", Developer: "dev", User: "user"}.UserAgent()
	assert.Equal(t, "Rosterwatch/0.3.0 (API component); developed by nation=dev; in use by nation=user", ua)

	ua = Identity{User: "user"}.UserAgent()
	assert.Equal(t, "Rosterwatch/dev (API component); in use by nation=user", ua)
}
