// Package collect walks the GitHub resources a metrics run needs: pull
// requests inside a date window, their reviews, file stats, commits, and
// check runs. Failures on a single resource degrade that record and the walk
// continues; only the caller decides whether a whole repository counts as
// failed.
package collect

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/repopulse/repopulse/internal/aggregate"
	"github.com/repopulse/repopulse/internal/github"
	"github.com/repopulse/repopulse/internal/models"
)

// Options tune the health classification thresholds.
type Options struct {
	// PRThresholdDays is the open-duration limit; a PR open strictly longer
	// is flagged.
	PRThresholdDays int
	// MaxLabels is the label-count limit; strictly more labels flags the PR.
	MaxLabels int
	// Now supplies the clock used for open-PR durations. Defaults to
	// time.Now in UTC.
	Now func() time.Time
}

// Fetcher is the slice of the GitHub REST client the collector uses.
type Fetcher interface {
	ListPullRequests(ctx context.Context, repo string, each func(prs []github.PullRequestPayload) error) error
	ListReviews(ctx context.Context, repo string, number int) ([]github.ReviewPayload, error)
	ListFiles(ctx context.Context, repo string, number int) (github.FileSummary, error)
	ListPullRequestCommits(ctx context.Context, repo string, number int) ([]github.CommitPayload, error)
	CheckRuns(ctx context.Context, repo, sha string) models.CheckRunSummary
	ListRepoCommits(ctx context.Context, repo string, since, until time.Time) (map[string]int, error)
}

// ThreadCounter resolves review thread counts; nil disables the sub-fetch.
type ThreadCounter interface {
	ReviewThreadCounts(ctx context.Context, owner, name string, number int) (github.ThreadCounts, error)
}

// Collector fetches and classifies pull request data for one repository at a
// time. Collection is sequential by design; the underlying executor is still
// safe to share if callers ever fan out per repository.
type Collector struct {
	client  Fetcher
	threads ThreadCounter
	logger  *zap.Logger
	opts    Options
}

// New creates a collector. threads may be nil.
func New(client Fetcher, threads ThreadCounter, logger *zap.Logger, opts Options) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Collector{client: client, threads: threads, logger: logger, opts: opts}
}

// CollectRepository gathers every pull request of repo created inside
// [start, end] along with derived metrics, plus the direct-committer scan.
// A halted pagination returns the pages already collected; the metrics are
// then best effort, possibly incomplete.
func (c *Collector) CollectRepository(ctx context.Context, repo string, start, end time.Time) (*models.RepositoryMetrics, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("invalid date window: start %s is not before end %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	metrics := &models.RepositoryMetrics{
		Repository:       repo,
		DirectCommitters: make(map[string]int),
	}

	err := c.client.ListPullRequests(ctx, repo, func(prs []github.PullRequestPayload) error {
		pastWindow := false
		for i := range prs {
			payload := &prs[i]
			created := payload.CreatedAt.UTC()
			if created.After(end) {
				continue
			}
			if created.Before(start) {
				// Listing is sorted by creation descending, so everything
				// from here on is older than the window.
				pastWindow = true
				break
			}
			pr := c.processPullRequest(ctx, repo, payload)
			metrics.PullRequests = append(metrics.PullRequests, pr)
		}
		if pastWindow {
			return github.ErrStopPagination
		}
		return nil
	})
	if err != nil {
		c.logger.Error("pull request listing halted, keeping partial results",
			zap.String("repo", repo),
			zap.Int("collected", len(metrics.PullRequests)),
			zap.Error(err))
	}

	committers, err := c.client.ListRepoCommits(ctx, repo, start, end)
	if err != nil {
		c.logger.Error("direct commit scan halted, keeping partial results",
			zap.String("repo", repo), zap.Error(err))
	}
	for login, n := range committers {
		metrics.DirectCommitters[login] = n
	}

	metrics.Stats = aggregate.ComputeRepoStats(metrics.PullRequests)

	c.logger.Info("collected repository",
		zap.String("repo", repo),
		zap.Int("pull_requests", len(metrics.PullRequests)),
		zap.Int("direct_committers", len(metrics.DirectCommitters)))
	return metrics, nil
}

// processPullRequest builds the full record for one in-window PR, issuing
// the review, file, commit, and check-run sub-fetches. Sub-fetch failures
// leave the corresponding fields empty.
func (c *Collector) processPullRequest(ctx context.Context, repo string, payload *github.PullRequestPayload) *models.PullRequest {
	pr := &models.PullRequest{
		Number:       payload.Number,
		Title:        payload.Title,
		Author:       payload.User.Login,
		State:        payload.State,
		CreatedAt:    payload.CreatedAt.UTC(),
		MergedAt:     payload.MergedAt,
		ClosedAt:     payload.ClosedAt,
		TargetBranch: payload.Base.Ref,
	}
	for _, label := range payload.Labels {
		pr.Labels = append(pr.Labels, label.Name)
	}

	pr.DurationDays = durationDays(pr, c.opts.Now())
	pr.Health, pr.HealthReasons = classifyHealth(pr.DurationDays, len(pr.Labels), c.opts.PRThresholdDays, c.opts.MaxLabels)

	reviews, err := c.client.ListReviews(ctx, repo, pr.Number)
	if err != nil {
		c.logger.Error("failed to decode reviews",
			zap.String("repo", repo), zap.Int("pr", pr.Number), zap.Error(err))
	}
	pr.Reviews = convertReviews(reviews)
	pr.ReviewAnalysis = AnalyzeReviews(pr.Reviews, pr.State == "closed" && pr.Merged())

	files, err := c.client.ListFiles(ctx, repo, pr.Number)
	if err != nil {
		c.logger.Error("file listing halted, keeping partial results",
			zap.String("repo", repo), zap.Int("pr", pr.Number), zap.Error(err))
	}
	pr.FileCount = files.FileCount
	pr.FileList = files.FileList
	pr.Additions = files.Additions
	pr.Deletions = files.Deletions

	commits, err := c.client.ListPullRequestCommits(ctx, repo, pr.Number)
	if err != nil {
		c.logger.Error("commit listing halted, keeping partial results",
			zap.String("repo", repo), zap.Int("pr", pr.Number), zap.Error(err))
	}
	for _, commit := range commits {
		checks := c.client.CheckRuns(ctx, repo, commit.SHA)
		pr.Checks.Total += checks.Total
		pr.Checks.Passed += checks.Passed
		pr.Checks.Failed += checks.Failed

		pr.Commits = append(pr.Commits, models.Commit{
			SHA:          commit.SHA,
			Message:      commit.Commit.Message,
			Author:       commit.Commit.Author.Name,
			AuthoredAt:   commit.Commit.Author.Date.UTC(),
			PassedChecks: checks.Passed,
			FailedChecks: checks.Failed,
		})
	}

	if c.threads != nil {
		owner, name, splitErr := SplitRepository(repo)
		if splitErr == nil {
			counts, threadErr := c.threads.ReviewThreadCounts(ctx, owner, name, pr.Number)
			if threadErr != nil {
				c.logger.Warn("failed to fetch review threads",
					zap.String("repo", repo), zap.Int("pr", pr.Number), zap.Error(threadErr))
			} else {
				pr.ResolvedThreads = counts.Resolved
				pr.UnresolvedThreads = counts.Unresolved
			}
		}
	}

	return pr
}

// durationDays computes whole days open: closed PRs freeze at close time,
// open PRs keep growing against now.
func durationDays(pr *models.PullRequest, now time.Time) int {
	if pr.State == "closed" && pr.ClosedAt != nil {
		return int(pr.ClosedAt.UTC().Sub(pr.CreatedAt).Hours() / 24)
	}
	return int(now.Sub(pr.CreatedAt).Hours() / 24)
}

// classifyHealth applies both thresholds independently and records a reason
// for each one that fires. Equal to the threshold is still healthy.
func classifyHealth(durationDays, labelCount, thresholdDays, maxLabels int) (string, []string) {
	health := models.HealthHealthy
	var reasons []string

	if durationDays > thresholdDays {
		health = models.HealthNeedsAttention
		reasons = append(reasons, fmt.Sprintf("PR open > %d days", thresholdDays))
	}
	if labelCount > maxLabels {
		health = models.HealthNeedsAttention
		reasons = append(reasons, fmt.Sprintf("PR has > %d labels", maxLabels))
	}
	return health, reasons
}

func convertReviews(payloads []github.ReviewPayload) []models.Review {
	var reviews []models.Review
	for _, p := range payloads {
		r := models.Review{
			Reviewer: p.User.Login,
			State:    strings.ToUpper(p.State),
			Body:     p.Body,
		}
		if p.SubmittedAt != nil {
			r.SubmittedAt = p.SubmittedAt.UTC()
		}
		reviews = append(reviews, r)
	}
	return reviews
}

// AnalyzeReviews derives approver and change-request information from a
// PR's reviews. Reviews are taken in API order, which is submission order;
// the first approver becomes the primary one.
func AnalyzeReviews(reviews []models.Review, merged bool) models.ReviewAnalysis {
	analysis := models.ReviewAnalysis{
		ApproverComment: "Approver not added comment",
		ChangeStatus:    models.ChangesNone,
	}

	var lastChangeRequest time.Time
	for _, review := range reviews {
		switch review.State {
		case "APPROVED":
			analysis.Approvers = append(analysis.Approvers, review.Reviewer)
			if len(analysis.Approvers) == 1 && strings.TrimSpace(review.Body) != "" {
				analysis.ApproverComment = strings.TrimSpace(review.Body)
			}
		case "CHANGES_REQUESTED":
			analysis.ChangeRequestCount++
			if review.SubmittedAt.After(lastChangeRequest) {
				lastChangeRequest = review.SubmittedAt
			}
		}
	}

	if analysis.ChangeRequestCount == 0 {
		return analysis
	}

	if merged {
		analysis.ChangeStatus = models.ChangesAllDone
		analysis.ResolvedChanges = analysis.ChangeRequestCount
		return analysis
	}

	for _, review := range reviews {
		if review.State == "APPROVED" && review.SubmittedAt.After(lastChangeRequest) {
			analysis.ChangeStatus = models.ChangesResolved
			analysis.ResolvedChanges = analysis.ChangeRequestCount
			return analysis
		}
	}

	analysis.ChangeStatus = models.ChangesPending
	analysis.PendingChanges = analysis.ChangeRequestCount
	return analysis
}

// SplitRepository parses a repository string in the format "owner/name".
func SplitRepository(repo string) (string, string, error) {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository format, expected 'owner/name', got '%s'", repo)
	}
	return parts[0], parts[1], nil
}
