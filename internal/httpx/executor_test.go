package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// roundTripFunc adapts a function into an http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// timeoutError satisfies net.Error with Timeout() == true.
type timeoutError struct{}

func (timeoutError) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func newTestExecutor(rt http.RoundTripper, maxRetries int) (*Executor, *[]time.Duration) {
	exec := NewExecutor(&http.Client{Transport: rt}, nil, 0, maxRetries)
	var waits []time.Duration
	exec.sleep = func(d time.Duration) { waits = append(waits, d) }
	return exec, &waits
}

func TestDoRetriesTransportFailures(t *testing.T) {
	attempts := 0
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		attempts++
		if attempts < 3 {
			return nil, fmt.Errorf("connection refused")
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       http.NoBody,
			Header:     http.Header{},
		}, nil
	})

	exec, waits := newTestExecutor(rt, 3)
	res := exec.Do(context.Background(), http.MethodGet, "http://example.test/thing", nil, nil)

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.True(t, res.OK())
	require.Equal(t, 3, attempts)
	require.Equal(t, int64(3), exec.Calls())
	// Backoff doubles: 1s after the first failure, 2s after the second.
	require.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, *waits)
}

func TestDoSyntheticTimeoutResult(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return nil, timeoutError{}
	})

	exec, _ := newTestExecutor(rt, 2)
	res := exec.Do(context.Background(), http.MethodGet, "http://example.test/slow", nil, nil)

	require.Equal(t, StatusTimedOut, res.StatusCode)
	require.False(t, res.OK())
	require.Contains(t, res.ErrText, "timed out after 3 attempts")
	require.Equal(t, int64(3), exec.Calls())
}

func TestDoSyntheticTransportErrorResult(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return nil, fmt.Errorf("connection reset by peer")
	})

	exec, _ := newTestExecutor(rt, 1)
	res := exec.Do(context.Background(), http.MethodGet, "http://example.test/down", nil, nil)

	require.Equal(t, StatusTransportError, res.StatusCode)
	require.Contains(t, res.ErrText, "failed after 2 attempts")
	require.Contains(t, res.ErrText, "connection reset")
}

func TestDoDoesNotRetryApplicationErrors(t *testing.T) {
	attempts := 0
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		attempts++
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       http.NoBody,
			Header:     http.Header{},
		}, nil
	})

	exec, waits := newTestExecutor(rt, 3)
	res := exec.Do(context.Background(), http.MethodGet, "http://example.test/missing", nil, nil)

	require.Equal(t, http.StatusNotFound, res.StatusCode)
	require.Empty(t, res.ErrText)
	require.Equal(t, 1, attempts)
	require.Empty(t, *waits)
}

func TestDoStopsRetryingWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		attempts++
		cancel()
		return nil, fmt.Errorf("connection refused")
	})

	exec, _ := newTestExecutor(rt, 5)
	res := exec.Do(ctx, http.MethodGet, "http://example.test/thing", nil, nil)

	require.Equal(t, StatusTransportError, res.StatusCode)
	require.Equal(t, 1, attempts)
}

func TestDoSendsHeadersAndBody(t *testing.T) {
	var got *http.Request
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	exec := NewExecutor(srv.Client(), nil, 5*time.Second, 0)
	header := http.Header{"Authorization": {"token abc"}}
	res := exec.Do(context.Background(), http.MethodPut, srv.URL+"/v1/item", header, []byte(`{"a":1}`))

	require.Equal(t, http.StatusCreated, res.StatusCode)
	require.Equal(t, http.MethodPut, got.Method)
	require.Equal(t, "token abc", got.Header.Get("Authorization"))
	require.JSONEq(t, `{"a":1}`, string(gotBody))
}

func TestResultDecode(t *testing.T) {
	res := Result{StatusCode: 200, Body: []byte(`{"name":"octocat"}`)}

	var payload struct {
		Name string `json:"name"`
	}
	require.NoError(t, res.Decode(&payload))
	require.Equal(t, "octocat", payload.Name)

	res.Body = []byte("not json")
	require.Error(t, res.Decode(&payload))
}

func TestPaginateStopsOnEmptyPage(t *testing.T) {
	pages := map[string]string{
		"1": `[1,2,3]`,
		"2": `[4,5,6]`,
		"3": `[]`,
	}
	var requested []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		requested = append(requested, page)
		require.Equal(t, "100", r.URL.Query().Get("per_page"))
		fmt.Fprint(w, pages[page])
	}))
	defer srv.Close()

	exec := NewExecutor(srv.Client(), nil, 5*time.Second, 0)
	var items []int
	err := exec.Paginate(context.Background(), PageRequest{URL: srv.URL + "/things"}, 100, func(body []byte) (int, error) {
		var page []int
		res := Result{Body: body}
		if err := res.Decode(&page); err != nil {
			return 0, err
		}
		items = append(items, page...)
		return len(page), nil
	})

	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3, 4, 5, 6}, items)
	require.Equal(t, []string{"1", "2", "3"}, requested)
}

func TestPaginateStopsWithoutNextLink(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Link", `<http://example.test/things?page=1>; rel="prev"`)
		fmt.Fprint(w, `[1,2]`)
	}))
	defer srv.Close()

	exec := NewExecutor(srv.Client(), nil, 5*time.Second, 0)
	err := exec.Paginate(context.Background(), PageRequest{URL: srv.URL + "/things"}, 50, func(body []byte) (int, error) {
		return 2, nil
	})

	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestPaginateFollowsNextLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			w.Header().Set("Link", `<http://example.test/things?page=2>; rel="next"`)
		}
		fmt.Fprint(w, `[1]`)
	}))
	defer srv.Close()

	exec := NewExecutor(srv.Client(), nil, 5*time.Second, 0)
	n := 0
	err := exec.Paginate(context.Background(), PageRequest{URL: srv.URL + "/things"}, 10, func(body []byte) (int, error) {
		n++
		if n == 2 {
			return 0, nil
		}
		return 1, nil
	})

	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestPaginateReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			http.Error(w, "rate limited", http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `[1,2]`)
	}))
	defer srv.Close()

	exec := NewExecutor(srv.Client(), nil, 5*time.Second, 0)
	delivered := 0
	err := exec.Paginate(context.Background(), PageRequest{URL: srv.URL + "/things"}, 10, func(body []byte) (int, error) {
		delivered++
		return 2, nil
	})

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	// The first page was already delivered before the failure.
	require.Equal(t, 1, delivered)
}

func TestPaginatePreservesBaseQuery(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	exec := NewExecutor(srv.Client(), nil, 5*time.Second, 0)
	req := PageRequest{
		URL:   srv.URL + "/commits",
		Query: url.Values{"since": {"2025-01-01T00:00:00Z"}, "state": {"all"}},
	}
	err := exec.Paginate(context.Background(), req, 100, func(body []byte) (int, error) {
		return 0, nil
	})

	require.NoError(t, err)
	require.Equal(t, "2025-01-01T00:00:00Z", gotQuery.Get("since"))
	require.Equal(t, "all", gotQuery.Get("state"))
	require.Equal(t, "100", gotQuery.Get("per_page"))
}

func TestStatusErrorMessage(t *testing.T) {
	err := &StatusError{StatusCode: 502, URL: "http://example.test/x", Detail: "bad gateway"}
	require.True(t, strings.Contains(err.Error(), "502"))
	require.True(t, strings.Contains(err.Error(), "bad gateway"))

	bare := &StatusError{StatusCode: 404, URL: "http://example.test/y"}
	require.Equal(t, "request to http://example.test/y failed with status 404", bare.Error())
}
