package netlife

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDecodesAndAuthenticates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "u", user)
		assert.Equal(t, "p", pass)
		assert.Equal(t, "/api/v1/jobs/j1", r.URL.Path)
		w.Write([]byte(`{"uuid":"j1","name":"Spring Shoot"}`))
	}))
	defer srv.Close()

	c := testClient(t, srv)
	details, err := c.GetJobDetails(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, "j1", details.UUID)
	assert.Equal(t, "Spring Shoot", details.Name)
}

func TestGetReturnsAPIErrorOnClientFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"nope"}`))
	}))
	defer srv.Close()

	c := testClient(t, srv)
	_, err := c.Get(context.Background(), "/jobs/j1", nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 403, apiErr.StatusCode)
	assert.False(t, apiErr.IsRetryable())
}

func TestLimiterBoundsInFlightRequests(t *testing.T) {
	const limit = 2
	var inFlight, peak atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	limiter := NewLimiter(limit)
	// Two portal clients sharing one limiter: the bound applies globally
	c1 := NewClient(Config{PortalName: "a", BaseURL: srv.URL, Timeout: time.Second, Retries: 1}, limiter)
	c2 := NewClient(Config{PortalName: "b", BaseURL: srv.URL, Timeout: time.Second, Retries: 1}, limiter)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		c := c1
		if i%2 == 0 {
			c = c2
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background(), "/jobs/x/subjects", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(limit), "in-flight requests must never exceed the limiter size")
}

func TestListSubjectsFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("filter_has_order"))
		assert.Equal(t, "true", r.URL.Query().Get("include_images"))
		w.Write([]byte(`{"data":[{"uuid":"s1","name":"A"},{"uuid":"s2","name":"B"}]}`))
	}))
	defer srv.Close()

	c := testClient(t, srv)
	buyers := true
	subjects, err := c.ListSubjects(context.Background(), "j1", &buyers)
	require.NoError(t, err)
	require.Len(t, subjects, 2)
	assert.Equal(t, "s1", subjects[0].UUID)
	assert.Equal(t, "s2", subjects[1].UUID)
}

func TestListRegisteredUsersPaginatesAndNormalizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/jobs/j1/users":
			w.Write([]byte(`{"data":[{"subjectUuid":"s1","userUuid":"u1","userUsername":"A@B.c"}],"meta":{"next":"/jobs/j1/users?page=2"}}`))
		default:
			w.Write([]byte(`{"data":[{"subjectUuid":"s2","uuid":"u2","email":"X@Y.z"}]}`))
		}
	}))
	defer srv.Close()

	c := testClient(t, srv)
	users, err := c.ListRegisteredUsers(context.Background(), "j1")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "u1", users["s1"].UserUUID)
	assert.Equal(t, "a@b.c", users["s1"].Email)
	assert.Equal(t, "u2", users["s2"].UserUUID)
	assert.Equal(t, "x@y.z", users["s2"].Email)
}

func TestListActivitiesInStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "webshop (selling)", r.URL.Query().Get("status_id"))
		w.Write([]byte(`[
			{"uuid":"a1","name":"In Webshop","starting":"2026-03-01T10:00:00Z","job":{"uuid":"j1","name":"Spring"}},
			{"uuid":"a2","job":{"uuid":"j2"}},
			{"name":"missing uuid"}
		]`))
	}))
	defer srv.Close()

	c := testClient(t, srv)
	activities, err := c.ListActivitiesInStatus(context.Background(), "webshop (selling)")
	require.NoError(t, err)
	require.Len(t, activities, 2)
	assert.Equal(t, "a1", activities[0].UUID)
	assert.Equal(t, "j1", activities[0].Job.UUID)
	assert.Equal(t, "2026-03-01T10:00:00Z", activities[0].Starting)
}

func TestPortalRoot(t *testing.T) {
	c := NewClient(Config{BaseURL: "https://legacyphoto.shop/api/v1"}, NewLimiter(1))
	assert.Equal(t, "https://legacyphoto.shop", c.PortalRoot())
}
