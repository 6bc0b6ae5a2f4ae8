// Package report flattens aggregated metrics into the row shapes the
// spreadsheet and the dashboard share, and writes the xlsx workbook plus the
// JSON snapshot consumed by the dashboard.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/repopulse/repopulse/internal/models"
)

// ActivityRow is one pull request in the activity report.
type ActivityRow struct {
	Repository      string `json:"repository"`
	Number          int    `json:"pr_number"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	Status          string `json:"status"`
	TargetBranch    string `json:"target_branch"`
	Health          string `json:"pr_health"`
	HealthReasons   string `json:"health_reasons"`
	HealthThreshold string `json:"health_threshold"`
	DaysOpen        int    `json:"days_open"`
	CreatedDate     string `json:"created_date"`
	MergedDate      string `json:"merged_date"`
	Approver        string `json:"approver"`
	AllApprovers    string `json:"all_approvers"`
	ApproverComment string `json:"approver_comment"`
	ChangeRequests  int    `json:"change_requests"`
	ChangesStatus   string `json:"changes_status"`
	PendingChanges  int    `json:"pending_changes"`
	ResolvedChanges int    `json:"resolved_changes"`
	FilesChanged    int    `json:"files_changed"`
	LinesAdded      int    `json:"lines_added"`
	LinesDeleted    int    `json:"lines_deleted"`
	ChangedFiles    string `json:"changed_files"`
	LabelCount      int    `json:"label_count"`
	Labels          string `json:"labels"`
	CommitCount     int    `json:"commit_count"`
	PassedChecks    int    `json:"passed_checks"`
	FailedChecks    int    `json:"failed_checks"`
	ResolvedThreads int    `json:"resolved_conversations"`
	UnresolvedThr   int    `json:"unresolved_conversations"`
}

// ContributorRow is one contributor in the contributor report.
type ContributorRow struct {
	Contributor      string  `json:"contributor"`
	Repositories     string  `json:"repositories"`
	TotalCommits     int     `json:"total_commits"`
	TotalPRs         int     `json:"total_prs"`
	HealthyPRs       int     `json:"healthy_prs"`
	UnhealthyPRs     int     `json:"unhealthy_prs"`
	PassedChecks     int     `json:"passed_checks"`
	FailedChecks     int     `json:"failed_checks"`
	FirstCommitDate  string  `json:"first_commit_date"`
	LastCommitDate   string  `json:"last_commit_date"`
	ActiveDays       int     `json:"active_days"`
	AvgCommitsPerDay float64 `json:"avg_commits_per_day"`
	ApprovalsGiven   int     `json:"approvals_given"`
	ChangeReqRecv    int     `json:"change_requests_received"`
}

// CommitRow is one commit in the commit details report.
type CommitRow struct {
	Repository      string `json:"repository"`
	Number          int    `json:"pr_number"`
	Title           string `json:"pr_title"`
	PRAuthor        string `json:"pr_author"`
	TargetBranch    string `json:"target_branch"`
	DaysOpen        int    `json:"pr_days_open"`
	Health          string `json:"pr_health"`
	HealthThreshold string `json:"health_threshold"`
	SHA             string `json:"commit_sha"`
	Message         string `json:"commit_message"`
	Author          string `json:"author"`
	CommitDate      string `json:"commit_date"`
	PRStatus        string `json:"pr_status"`
	MergedDate      string `json:"merged_date"`
	FilesChanged    int    `json:"files_changed"`
	LinesAdded      int    `json:"lines_added"`
	LinesDeleted    int    `json:"lines_deleted"`
	ChangeRequests  int    `json:"change_requests"`
}

const dateLayout = "2006-01-02"

// healthThreshold renders the combined threshold description shown on every
// health-flagged row.
func healthThreshold(thresholdDays, maxLabels int) string {
	return fmt.Sprintf("> %d days OR > %d labels", thresholdDays, maxLabels)
}

// BuildActivityRows flattens every collected PR into activity rows, in the
// order repositories were processed.
func BuildActivityRows(all []*models.RepositoryMetrics, thresholdDays, maxLabels int) []ActivityRow {
	var rows []ActivityRow
	for _, metrics := range all {
		for _, pr := range metrics.PullRequests {
			rows = append(rows, ActivityRow{
				Repository:      metrics.Repository,
				Number:          pr.Number,
				Title:           pr.Title,
				Author:          pr.Author,
				Status:          capitalize(pr.State),
				TargetBranch:    pr.TargetBranch,
				Health:          pr.Health,
				HealthReasons:   strings.Join(pr.HealthReasons, "; "),
				HealthThreshold: healthThreshold(thresholdDays, maxLabels),
				DaysOpen:        pr.DurationDays,
				CreatedDate:     pr.CreatedAt.Format(dateLayout),
				MergedDate:      formatDate(pr.MergedAt),
				Approver:        pr.ReviewAnalysis.PrimaryApprover(),
				AllApprovers:    strings.Join(pr.ReviewAnalysis.Approvers, ", "),
				ApproverComment: truncate(pr.ReviewAnalysis.ApproverComment, 100),
				ChangeRequests:  pr.ReviewAnalysis.ChangeRequestCount,
				ChangesStatus:   pr.ReviewAnalysis.ChangeStatus,
				PendingChanges:  pr.ReviewAnalysis.PendingChanges,
				ResolvedChanges: pr.ReviewAnalysis.ResolvedChanges,
				FilesChanged:    pr.FileCount,
				LinesAdded:      pr.Additions,
				LinesDeleted:    pr.Deletions,
				ChangedFiles:    previewFiles(pr.FileList, 5),
				LabelCount:      len(pr.Labels),
				Labels:          joinOrNone(pr.Labels),
				CommitCount:     len(pr.Commits),
				PassedChecks:    pr.Checks.Passed,
				FailedChecks:    pr.Checks.Failed,
				ResolvedThreads: pr.ResolvedThreads,
				UnresolvedThr:   pr.UnresolvedThreads,
			})
		}
	}
	return rows
}

// BuildContributorRows flattens aggregated contributor stats.
func BuildContributorRows(contributors []*models.ContributorStats) []ContributorRow {
	var rows []ContributorRow
	for _, c := range contributors {
		rows = append(rows, ContributorRow{
			Contributor:      c.Login,
			Repositories:     strings.Join(c.Repositories, ", "),
			TotalCommits:     c.TotalCommits,
			TotalPRs:         c.TotalPRs,
			HealthyPRs:       c.HealthyPRs,
			UnhealthyPRs:     c.UnhealthyPRs,
			PassedChecks:     c.PassedChecks,
			FailedChecks:     c.FailedChecks,
			FirstCommitDate:  formatDate(c.FirstCommit),
			LastCommitDate:   formatDate(c.LastCommit),
			ActiveDays:       c.ActiveDays,
			AvgCommitsPerDay: c.AvgCommitsPerDay,
			ApprovalsGiven:   c.ApprovalsGiven,
			ChangeReqRecv:    c.ChangeReqReceived,
		})
	}
	return rows
}

// BuildCommitRows flattens every commit of every collected PR.
func BuildCommitRows(all []*models.RepositoryMetrics, thresholdDays, maxLabels int) []CommitRow {
	var rows []CommitRow
	for _, metrics := range all {
		for _, pr := range metrics.PullRequests {
			for _, commit := range pr.Commits {
				rows = append(rows, CommitRow{
					Repository:      metrics.Repository,
					Number:          pr.Number,
					Title:           pr.Title,
					PRAuthor:        pr.Author,
					TargetBranch:    pr.TargetBranch,
					DaysOpen:        pr.DurationDays,
					Health:          pr.Health,
					HealthThreshold: healthThreshold(thresholdDays, maxLabels),
					SHA:             commit.SHA,
					Message:         firstLine(commit.Message),
					Author:          commit.Author,
					CommitDate:      commit.AuthoredAt.Format(dateLayout),
					PRStatus:        capitalize(pr.State),
					MergedDate:      formatDate(pr.MergedAt),
					FilesChanged:    pr.FileCount,
					LinesAdded:      pr.Additions,
					LinesDeleted:    pr.Deletions,
					ChangeRequests:  pr.ReviewAnalysis.ChangeRequestCount,
				})
			}
		}
	}
	return rows
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func previewFiles(files []string, n int) string {
	if len(files) <= n {
		return strings.Join(files, ", ")
	}
	return strings.Join(files[:n], ", ") + "..."
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}
