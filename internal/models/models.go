// Package models defines the typed records built from GitHub API payloads.
// Records are constructed once per collection run; derived sub-resources
// (commits, reviews, checks) are attached as their fetches complete and the
// record is not otherwise mutated.
package models

import (
	"time"
)

// Health classification values for a pull request.
const (
	HealthHealthy        = "Healthy"
	HealthNeedsAttention = "Needs Attention"
)

// Change request resolution states.
const (
	ChangesNone     = "No changes requested"
	ChangesAllDone  = "All changes resolved"
	ChangesResolved = "Changes resolved"
	ChangesPending  = "Changes pending"
)

// Commit is a single commit owned by exactly one pull request.
type Commit struct {
	SHA          string
	Message      string
	Author       string
	AuthoredAt   time.Time
	PassedChecks int
	FailedChecks int
}

// Review is a submitted pull request review.
type Review struct {
	Reviewer    string
	State       string // APPROVED, CHANGES_REQUESTED, COMMENTED
	SubmittedAt time.Time
	Body        string
}

// CheckRunSummary aggregates check runs for one commit SHA.
type CheckRunSummary struct {
	Total  int
	Passed int
	Failed int
}

// ReviewAnalysis is derived from a pull request's review list.
type ReviewAnalysis struct {
	// Approvers holds every APPROVED reviewer in chronological order; the
	// first entry is the primary approver surfaced in reports.
	Approvers          []string
	ApproverComment    string
	ChangeRequestCount int
	PendingChanges     int
	ResolvedChanges    int
	ChangeStatus       string
}

// PrimaryApprover returns the first chronological approver, or "".
func (a ReviewAnalysis) PrimaryApprover() string {
	if len(a.Approvers) == 0 {
		return ""
	}
	return a.Approvers[0]
}

// PullRequest is one pull request with its derived metrics attached.
type PullRequest struct {
	Number       int
	Title        string
	Author       string
	State        string // open or closed
	CreatedAt    time.Time
	MergedAt     *time.Time
	ClosedAt     *time.Time
	TargetBranch string
	Labels       []string

	FileCount int
	FileList  []string
	Additions int
	Deletions int

	DurationDays  int
	Health        string
	HealthReasons []string

	Commits []Commit
	Reviews []Review
	Checks  CheckRunSummary

	ResolvedThreads   int
	UnresolvedThreads int

	ReviewAnalysis ReviewAnalysis
}

// Merged reports whether the pull request was merged.
func (pr *PullRequest) Merged() bool {
	return pr.MergedAt != nil
}

// RepoStats are the per-repository totals recomputed from the PR collection.
type RepoStats struct {
	TotalPRs            int
	MergedPRs           int
	HealthyPRs          int
	UnhealthyPRs        int
	UnhealthyByDuration int
	UnhealthyByLabels   int
	TotalAdditions      int
	TotalDeletions      int
	TotalChangeRequests int
}

// RepositoryMetrics holds everything collected for one repository in a run.
type RepositoryMetrics struct {
	Repository   string // owner/name
	PullRequests []*PullRequest
	Stats        RepoStats
	// DirectCommitters maps login to the number of commits found by the
	// direct commit-listing scan, independent of PR authorship.
	DirectCommitters map[string]int
}

// ContributorStats accumulates per-login totals across all repositories.
type ContributorStats struct {
	Login             string
	Repositories      []string
	TotalCommits      int
	TotalPRs          int
	HealthyPRs        int
	UnhealthyPRs      int
	PassedChecks      int
	FailedChecks      int
	FirstCommit       *time.Time
	LastCommit        *time.Time
	ActiveDays        int
	AvgCommitsPerDay  float64
	ApprovalsGiven    int
	ChangeReqReceived int
}

// Summary is the run-wide rollup across repositories.
type Summary struct {
	TotalRepos          int
	TotalPRs            int
	MergedPRs           int
	HealthyPRs          int
	UnhealthyPRs        int
	TotalAdditions      int
	TotalDeletions      int
	TotalChangeRequests int
	AvgPRDuration       float64
	HealthRatio         float64
	PRsByRepo           map[string]int
	PRsByAuthor         map[string]int
	PRsByDate           map[string]int
	DateRange           string
}
