// Package aggregate folds collected pull requests into repository,
// run-wide, and per-contributor totals. Every function here is a pure fold
// over its input: running one twice on the same collection yields identical
// results, and stats are always recomputed from the PR collection rather
// than mutated alongside it.
package aggregate

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/repopulse/repopulse/internal/models"
)

// ComputeRepoStats recomputes the per-repository totals from scratch.
func ComputeRepoStats(prs []*models.PullRequest) models.RepoStats {
	var stats models.RepoStats
	for _, pr := range prs {
		stats.TotalPRs++
		stats.TotalAdditions += pr.Additions
		stats.TotalDeletions += pr.Deletions
		stats.TotalChangeRequests += pr.ReviewAnalysis.ChangeRequestCount

		if pr.Health == models.HealthHealthy {
			stats.HealthyPRs++
		} else {
			stats.UnhealthyPRs++
		}
		for _, reason := range pr.HealthReasons {
			switch {
			case strings.HasPrefix(reason, "PR open"):
				stats.UnhealthyByDuration++
			case strings.HasPrefix(reason, "PR has"):
				stats.UnhealthyByLabels++
			}
		}
		if pr.Merged() {
			stats.MergedPRs++
		}
	}
	return stats
}

// Summarize rolls all repositories up into the run-wide summary.
func Summarize(all []*models.RepositoryMetrics) models.Summary {
	summary := models.Summary{
		TotalRepos:  len(all),
		PRsByRepo:   make(map[string]int),
		PRsByAuthor: make(map[string]int),
		PRsByDate:   make(map[string]int),
	}

	var durations []int
	for _, metrics := range all {
		summary.PRsByRepo[metrics.Repository] = metrics.Stats.TotalPRs

		summary.TotalPRs += metrics.Stats.TotalPRs
		summary.MergedPRs += metrics.Stats.MergedPRs
		summary.HealthyPRs += metrics.Stats.HealthyPRs
		summary.UnhealthyPRs += metrics.Stats.UnhealthyPRs
		summary.TotalAdditions += metrics.Stats.TotalAdditions
		summary.TotalDeletions += metrics.Stats.TotalDeletions
		summary.TotalChangeRequests += metrics.Stats.TotalChangeRequests

		for _, pr := range metrics.PullRequests {
			summary.PRsByAuthor[pr.Author]++
			durations = append(durations, pr.DurationDays)
			summary.PRsByDate[pr.CreatedAt.Format("2006-01-02")]++
		}
	}

	if len(durations) > 0 {
		total := 0
		for _, d := range durations {
			total += d
		}
		summary.AvgPRDuration = float64(total) / float64(len(durations))
	}
	if summary.TotalPRs > 0 {
		summary.HealthRatio = float64(summary.HealthyPRs) / float64(summary.TotalPRs) * 100
	}

	dates := make([]string, 0, len(summary.PRsByDate))
	for d := range summary.PRsByDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	if len(dates) > 0 {
		summary.DateRange = dates[0] + " to " + dates[len(dates)-1]
	}
	return summary
}

// Contributors folds every PR into per-login stats and then adds the silent
// contributors: logins found by the direct commit scan that authored no PR
// in the window enter with PR fields at zero so headcount reports cover
// everyone who committed. The result is sorted by login.
func Contributors(all []*models.RepositoryMetrics) []*models.ContributorStats {
	byLogin := make(map[string]*models.ContributorStats)
	repos := make(map[string]map[string]bool)

	get := func(login string) *models.ContributorStats {
		stats, ok := byLogin[login]
		if !ok {
			stats = &models.ContributorStats{Login: login}
			byLogin[login] = stats
			repos[login] = make(map[string]bool)
		}
		return stats
	}

	for _, metrics := range all {
		for _, pr := range metrics.PullRequests {
			stats := get(pr.Author)
			repos[pr.Author][metrics.Repository] = true

			stats.TotalPRs++
			stats.TotalCommits += len(pr.Commits)
			stats.PassedChecks += pr.Checks.Passed
			stats.FailedChecks += pr.Checks.Failed
			stats.ChangeReqReceived += pr.ReviewAnalysis.ChangeRequestCount
			if pr.Health == models.HealthHealthy {
				stats.HealthyPRs++
			} else {
				stats.UnhealthyPRs++
			}

			for _, commit := range pr.Commits {
				if commit.AuthoredAt.IsZero() {
					continue
				}
				trackCommitDates(stats, commit.AuthoredAt)
			}

			for _, review := range pr.Reviews {
				if review.State == "APPROVED" && review.Reviewer != "" {
					reviewer := get(review.Reviewer)
					repos[review.Reviewer][metrics.Repository] = true
					reviewer.ApprovalsGiven++
				}
			}
		}

		for login, commits := range metrics.DirectCommitters {
			if _, ok := byLogin[login]; ok {
				continue
			}
			stats := get(login)
			repos[login][metrics.Repository] = true
			stats.TotalCommits = commits
		}
	}

	result := make([]*models.ContributorStats, 0, len(byLogin))
	for login, stats := range byLogin {
		finalizeActivity(stats)
		for repo := range repos[login] {
			stats.Repositories = append(stats.Repositories, repo)
		}
		sort.Strings(stats.Repositories)
		result = append(result, stats)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Login < result[j].Login })
	return result
}

func trackCommitDates(stats *models.ContributorStats, at time.Time) {
	if stats.FirstCommit == nil || at.Before(*stats.FirstCommit) {
		t := at
		stats.FirstCommit = &t
	}
	if stats.LastCommit == nil || at.After(*stats.LastCommit) {
		t := at
		stats.LastCommit = &t
	}
}

// finalizeActivity derives active days and commit frequency once all commits
// are folded in. Active days span first to last commit, minimum one day.
func finalizeActivity(stats *models.ContributorStats) {
	if stats.FirstCommit == nil || stats.LastCommit == nil {
		return
	}
	days := int(stats.LastCommit.Sub(*stats.FirstCommit).Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	stats.ActiveDays = days
	stats.AvgCommitsPerDay = math.Round(float64(stats.TotalCommits)/float64(days)*100) / 100
}
