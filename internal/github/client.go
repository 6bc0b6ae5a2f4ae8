// Package github wraps the GitHub REST and GraphQL APIs behind the resource
// fetchers the collector needs. All REST traffic goes through the shared
// httpx executor so retries, synthetic statuses, and the API-call counter
// apply uniformly.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	gogithub "github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/repopulse/repopulse/internal/httpx"
	"github.com/repopulse/repopulse/internal/models"
)

// DefaultBaseURL is the public GitHub API endpoint.
const DefaultBaseURL = "https://api.github.com"

// ErrStopPagination tells a list operation to stop fetching further pages.
// It is not reported to the caller as a failure.
var ErrStopPagination = errors.New("stop pagination")

// Client issues authenticated requests against the GitHub API.
type Client struct {
	exec    *httpx.Executor
	gh      *gogithub.Client
	baseURL string
	token   string
	logger  *zap.Logger
}

// NewClient creates a client. baseURL may be empty for the public API.
func NewClient(exec *httpx.Executor, baseURL, token string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var tc *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		tc = oauth2.NewClient(context.Background(), ts)
	}
	gh := gogithub.NewClient(tc)

	return &Client{
		exec:    exec,
		gh:      gh,
		baseURL: baseURL,
		token:   token,
		logger:  logger,
	}
}

// header builds the REST request headers with token auth.
func (c *Client) header() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/vnd.github.v3+json")
	if c.token != "" {
		h.Set("Authorization", "token "+c.token)
	}
	return h
}

// ValidateToken verifies the token works and logs the remaining rate limit.
// A failure here is a configuration error: no collection should start.
func (c *Client) ValidateToken(ctx context.Context) error {
	user, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return fmt.Errorf("token validation failed: %w", err)
	}

	limits, _, err := c.gh.RateLimit.Get(ctx)
	if err != nil {
		c.logger.Warn("could not read rate limits", zap.Error(err))
	} else if core := limits.GetCore(); core != nil {
		c.logger.Info("GitHub authentication successful",
			zap.String("login", user.GetLogin()),
			zap.Int("rate_remaining", core.Remaining),
			zap.Int("rate_limit", core.Limit))
	}
	return nil
}

// Calls returns the number of REST attempts issued through the executor.
func (c *Client) Calls() int64 {
	return c.exec.Calls()
}

// ListPullRequests walks the pull request listing for repo (state=all,
// sorted by creation descending) one page at a time. each may return
// ErrStopPagination to cut off remaining pages; any pages already delivered
// stand when a later page fetch fails.
func (c *Client) ListPullRequests(ctx context.Context, repo string, each func(prs []PullRequestPayload) error) error {
	req := httpx.PageRequest{
		URL:    fmt.Sprintf("%s/repos/%s/pulls", c.baseURL, repo),
		Header: c.header(),
		Query: url.Values{
			"state":     {"all"},
			"sort":      {"created"},
			"direction": {"desc"},
		},
	}

	err := c.exec.Paginate(ctx, req, 100, func(body []byte) (int, error) {
		var prs []PullRequestPayload
		if err := (httpx.Result{Body: body}).Decode(&prs); err != nil {
			return 0, err
		}
		if err := each(prs); err != nil {
			return 0, err
		}
		return len(prs), nil
	})
	if errors.Is(err, ErrStopPagination) {
		return nil
	}
	return err
}

// ListReviews fetches the reviews for one pull request. A non-2xx response
// degrades to an empty list, matching the partial-result policy.
func (c *Client) ListReviews(ctx context.Context, repo string, number int) ([]ReviewPayload, error) {
	u := fmt.Sprintf("%s/repos/%s/pulls/%d/reviews", c.baseURL, repo, number)
	res := c.exec.Do(ctx, http.MethodGet, u, c.header(), nil)
	if !res.OK() {
		c.logger.Error("failed to fetch reviews",
			zap.String("repo", repo), zap.Int("pr", number), zap.Int("status", res.StatusCode))
		return nil, nil
	}

	var reviews []ReviewPayload
	if err := res.Decode(&reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// ListFiles fetches the changed-file listing for one pull request,
// accumulating names and line deltas. If a page fetch halts, the summary of
// the pages already read is returned alongside the error.
func (c *Client) ListFiles(ctx context.Context, repo string, number int) (FileSummary, error) {
	var sum FileSummary
	req := httpx.PageRequest{
		URL:    fmt.Sprintf("%s/repos/%s/pulls/%d/files", c.baseURL, repo, number),
		Header: c.header(),
	}

	err := c.exec.Paginate(ctx, req, 100, func(body []byte) (int, error) {
		var files []FilePayload
		if err := (httpx.Result{Body: body}).Decode(&files); err != nil {
			return 0, err
		}
		for _, f := range files {
			sum.FileList = append(sum.FileList, f.Filename)
			sum.Additions += f.Additions
			sum.Deletions += f.Deletions
		}
		return len(files), nil
	})
	sum.FileCount = len(sum.FileList)
	return sum, err
}

// ListPullRequestCommits fetches the commits belonging to one pull request.
func (c *Client) ListPullRequestCommits(ctx context.Context, repo string, number int) ([]CommitPayload, error) {
	var all []CommitPayload
	req := httpx.PageRequest{
		URL:    fmt.Sprintf("%s/repos/%s/pulls/%d/commits", c.baseURL, repo, number),
		Header: c.header(),
	}

	err := c.exec.Paginate(ctx, req, 100, func(body []byte) (int, error) {
		var commits []CommitPayload
		if err := (httpx.Result{Body: body}).Decode(&commits); err != nil {
			return 0, err
		}
		all = append(all, commits...)
		return len(commits), nil
	})
	return all, err
}

// CheckRuns fetches the check-run summary for one commit. Commits without
// check runs, and fetch failures, yield a zero summary rather than an error.
func (c *Client) CheckRuns(ctx context.Context, repo, sha string) models.CheckRunSummary {
	u := fmt.Sprintf("%s/repos/%s/commits/%s/check-runs", c.baseURL, repo, sha)
	res := c.exec.Do(ctx, http.MethodGet, u, c.header(), nil)
	if !res.OK() {
		c.logger.Error("failed to fetch check runs",
			zap.String("repo", repo), zap.String("sha", sha), zap.Int("status", res.StatusCode))
		return models.CheckRunSummary{}
	}

	var payload CheckRunsPayload
	if err := res.Decode(&payload); err != nil {
		c.logger.Error("failed to decode check runs",
			zap.String("repo", repo), zap.String("sha", sha), zap.Error(err))
		return models.CheckRunSummary{}
	}

	sum := models.CheckRunSummary{Total: len(payload.CheckRuns)}
	for _, run := range payload.CheckRuns {
		switch run.Conclusion {
		case "success":
			sum.Passed++
		case "failure", "cancelled", "timed_out":
			sum.Failed++
		}
	}
	return sum
}

// ListRepoCommits scans the repository-level commit listing inside the date
// window and counts commits per author and committer login. The scan is how
// contributors without any pull request still enter the contributor report.
func (c *Client) ListRepoCommits(ctx context.Context, repo string, since, until time.Time) (map[string]int, error) {
	counts := make(map[string]int)
	req := httpx.PageRequest{
		URL:    fmt.Sprintf("%s/repos/%s/commits", c.baseURL, repo),
		Header: c.header(),
		Query: url.Values{
			"since": {since.UTC().Format(time.RFC3339)},
			"until": {until.UTC().Format(time.RFC3339)},
		},
	}

	err := c.exec.Paginate(ctx, req, 100, func(body []byte) (int, error) {
		var commits []CommitPayload
		if err := (httpx.Result{Body: body}).Decode(&commits); err != nil {
			return 0, err
		}
		for _, commit := range commits {
			var author string
			if commit.Author != nil {
				author = commit.Author.Login
				if author != "" {
					counts[author]++
				}
			}
			if commit.Committer != nil && commit.Committer.Login != "" && commit.Committer.Login != author {
				counts[commit.Committer.Login]++
			}
		}
		return len(commits), nil
	})
	return counts, err
}
