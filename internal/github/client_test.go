package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/repopulse/repopulse/internal/httpx"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	exec := httpx.NewExecutor(srv.Client(), nil, 5*time.Second, 0)
	return NewClient(exec, srv.URL, "test-token", nil), srv
}

func TestListPullRequestsPagination(t *testing.T) {
	pages := map[string]string{
		"1": `[{"number":3,"title":"c","state":"open"},{"number":2,"title":"b","state":"closed"}]`,
		"2": `[{"number":1,"title":"a","state":"closed"}]`,
		"3": `[]`,
	}
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/widgets/pulls", r.URL.Path)
		require.Equal(t, "token test-token", r.Header.Get("Authorization"))
		require.Equal(t, "all", r.URL.Query().Get("state"))
		require.Equal(t, "created", r.URL.Query().Get("sort"))
		require.Equal(t, "desc", r.URL.Query().Get("direction"))
		fmt.Fprint(w, pages[r.URL.Query().Get("page")])
	}))

	var numbers []int
	err := client.ListPullRequests(context.Background(), "acme/widgets", func(prs []PullRequestPayload) error {
		for _, pr := range prs {
			numbers = append(numbers, pr.Number)
		}
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, []int{3, 2, 1}, numbers)
}

func TestListPullRequestsStopSentinel(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `[{"number":1}]`)
	}))

	err := client.ListPullRequests(context.Background(), "acme/widgets", func(prs []PullRequestPayload) error {
		return ErrStopPagination
	})

	// The sentinel stops listing without surfacing as a failure.
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestListReviewsDegradesOnFailure(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))

	reviews, err := client.ListReviews(context.Background(), "acme/widgets", 42)
	require.NoError(t, err)
	require.Nil(t, reviews)
}

func TestListReviews(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/widgets/pulls/42/reviews", r.URL.Path)
		fmt.Fprint(w, `[{"user":{"login":"bob"},"state":"APPROVED","body":"lgtm","submitted_at":"2025-01-09T10:00:00Z"}]`)
	}))

	reviews, err := client.ListReviews(context.Background(), "acme/widgets", 42)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	require.Equal(t, "bob", reviews[0].User.Login)
	require.Equal(t, "APPROVED", reviews[0].State)
	require.NotNil(t, reviews[0].SubmittedAt)
}

func TestListFilesAccumulates(t *testing.T) {
	pages := map[string]string{
		"1": `[{"filename":"a.go","additions":5,"deletions":1},{"filename":"b.go","additions":2,"deletions":0}]`,
		"2": `[]`,
	}
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pages[r.URL.Query().Get("page")])
	}))

	sum, err := client.ListFiles(context.Background(), "acme/widgets", 42)
	require.NoError(t, err)
	require.Equal(t, 2, sum.FileCount)
	require.Equal(t, []string{"a.go", "b.go"}, sum.FileList)
	require.Equal(t, 7, sum.Additions)
	require.Equal(t, 1, sum.Deletions)
}

func TestListFilesPartialOnHalt(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			http.Error(w, "rate limited", http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `[{"filename":"a.go","additions":5,"deletions":1}]`)
	}))

	sum, err := client.ListFiles(context.Background(), "acme/widgets", 42)
	require.Error(t, err)
	// The first page's files still count.
	require.Equal(t, 1, sum.FileCount)
	require.Equal(t, 5, sum.Additions)
}

func TestCheckRunsClassification(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/widgets/commits/abc123/check-runs", r.URL.Path)
		fmt.Fprint(w, `{"total_count":5,"check_runs":[
			{"conclusion":"success"},
			{"conclusion":"success"},
			{"conclusion":"failure"},
			{"conclusion":"timed_out"},
			{"conclusion":"neutral"}
		]}`)
	}))

	sum := client.CheckRuns(context.Background(), "acme/widgets", "abc123")
	require.Equal(t, 5, sum.Total)
	require.Equal(t, 2, sum.Passed)
	require.Equal(t, 2, sum.Failed)
}

func TestCheckRunsFailureYieldsZero(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))

	sum := client.CheckRuns(context.Background(), "acme/widgets", "abc123")
	require.Zero(t, sum.Total)
}

func TestListRepoCommitsCountsAuthorsAndCommitters(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/widgets/commits", r.URL.Path)
		require.Equal(t, "2025-01-01T00:00:00Z", r.URL.Query().Get("since"))
		require.Equal(t, "2025-01-31T00:00:00Z", r.URL.Query().Get("until"))
		if r.URL.Query().Get("page") != "1" {
			fmt.Fprint(w, `[]`)
			return
		}
		fmt.Fprint(w, `[
			{"sha":"a1","author":{"login":"alice"},"committer":{"login":"alice"}},
			{"sha":"a2","author":{"login":"alice"},"committer":{"login":"web-flow"}},
			{"sha":"a3","author":null,"committer":{"login":"ci-bot"}}
		]`)
	}))

	since := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	counts, err := client.ListRepoCommits(context.Background(), "acme/widgets", since, until)

	require.NoError(t, err)
	require.Equal(t, map[string]int{"alice": 2, "web-flow": 1, "ci-bot": 1}, counts)
}

func TestCallsCounter(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))

	require.Zero(t, client.Calls())
	_, err := client.ListReviews(context.Background(), "acme/widgets", 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), client.Calls())
}
