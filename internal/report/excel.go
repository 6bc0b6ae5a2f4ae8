package report

import (
	"fmt"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/repopulse/repopulse/internal/models"
)

// WorkbookName is the spreadsheet written into the output directory.
const WorkbookName = "github_metrics_report.xlsx"

// Sheet names, one per report type.
const (
	SheetActivity     = "PR Activity"
	SheetContributors = "Contributor Metrics"
	SheetCommits      = "Commit Details"
	SheetSummary      = "Summary"
)

var activityHeaders = []string{
	"Repository", "PR Number", "Title", "Author", "Status", "Target Branch",
	"PR Health", "Health Reasons", "Health Threshold", "Days Open",
	"Created Date", "Merged Date", "Approver", "All Approvers",
	"Approver Comment", "Change Requests", "Changes Status", "Pending Changes",
	"Resolved Changes", "Files Changed", "Lines Added", "Lines Deleted",
	"Changed Files", "Label Count", "Labels", "Commit Count", "Passed Checks",
	"Failed Checks", "Resolved Conversations", "Unresolved Conversations",
}

var contributorHeaders = []string{
	"Contributor", "Repositories", "Total Commits", "Total PRs", "Healthy PRs",
	"Unhealthy PRs", "Passed Checks", "Failed Checks", "First Commit Date",
	"Last Commit Date", "Active Days", "Avg Commits Per Day",
	"Approvals Given", "Change Requests Received",
}

var commitHeaders = []string{
	"Repository", "PR Number", "PR Title", "PR Author", "Target Branch",
	"PR Days Open", "PR Health", "Health Threshold", "Commit SHA",
	"Commit Message", "Author", "Commit Date", "PR Status", "Merged Date",
	"Files Changed", "Lines Added", "Lines Deleted", "Change Requests",
}

func (r ActivityRow) values() []any {
	return []any{
		r.Repository, r.Number, r.Title, r.Author, r.Status, r.TargetBranch,
		r.Health, r.HealthReasons, r.HealthThreshold, r.DaysOpen,
		r.CreatedDate, r.MergedDate, r.Approver, r.AllApprovers,
		r.ApproverComment, r.ChangeRequests, r.ChangesStatus, r.PendingChanges,
		r.ResolvedChanges, r.FilesChanged, r.LinesAdded, r.LinesDeleted,
		r.ChangedFiles, r.LabelCount, r.Labels, r.CommitCount, r.PassedChecks,
		r.FailedChecks, r.ResolvedThreads, r.UnresolvedThr,
	}
}

func (r ContributorRow) values() []any {
	return []any{
		r.Contributor, r.Repositories, r.TotalCommits, r.TotalPRs,
		r.HealthyPRs, r.UnhealthyPRs, r.PassedChecks, r.FailedChecks,
		r.FirstCommitDate, r.LastCommitDate, r.ActiveDays, r.AvgCommitsPerDay,
		r.ApprovalsGiven, r.ChangeReqRecv,
	}
}

func (r CommitRow) values() []any {
	return []any{
		r.Repository, r.Number, r.Title, r.PRAuthor, r.TargetBranch,
		r.DaysOpen, r.Health, r.HealthThreshold, r.SHA, r.Message, r.Author,
		r.CommitDate, r.PRStatus, r.MergedDate, r.FilesChanged, r.LinesAdded,
		r.LinesDeleted, r.ChangeRequests,
	}
}

// WriteWorkbook writes the report workbook into outputDir and returns its
// path. Health and change-status columns get conditional highlighting.
func WriteWorkbook(outputDir string, activity []ActivityRow, contributors []ContributorRow, commits []CommitRow, summary models.Summary) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	styles, err := newSheetStyles(f)
	if err != nil {
		return "", err
	}

	f.SetSheetName(f.GetSheetName(0), SheetActivity)
	activityValues := make([][]any, len(activity))
	for i, row := range activity {
		activityValues[i] = row.values()
	}
	if err := writeSheet(f, SheetActivity, activityHeaders, activityValues, styles, indexOf(activityHeaders, "PR Health")); err != nil {
		return "", err
	}

	if _, err := f.NewSheet(SheetContributors); err != nil {
		return "", err
	}
	contributorValues := make([][]any, len(contributors))
	for i, row := range contributors {
		contributorValues[i] = row.values()
	}
	if err := writeSheet(f, SheetContributors, contributorHeaders, contributorValues, styles, -1); err != nil {
		return "", err
	}

	if _, err := f.NewSheet(SheetCommits); err != nil {
		return "", err
	}
	commitValues := make([][]any, len(commits))
	for i, row := range commits {
		commitValues[i] = row.values()
	}
	if err := writeSheet(f, SheetCommits, commitHeaders, commitValues, styles, indexOf(commitHeaders, "PR Health")); err != nil {
		return "", err
	}

	if err := writeSummarySheet(f, summary, styles); err != nil {
		return "", err
	}

	path := filepath.Join(outputDir, WorkbookName)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}
	return path, nil
}

type sheetStyles struct {
	header    int
	unhealthy int
	healthy   int
}

func newSheetStyles(f *excelize.File) (sheetStyles, error) {
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
	})
	if err != nil {
		return sheetStyles{}, fmt.Errorf("failed to build header style: %w", err)
	}
	unhealthy, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "9C0006"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFC7CE"}},
	})
	if err != nil {
		return sheetStyles{}, fmt.Errorf("failed to build unhealthy style: %w", err)
	}
	healthy, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "006100"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"C6EFCE"}},
	})
	if err != nil {
		return sheetStyles{}, fmt.Errorf("failed to build healthy style: %w", err)
	}
	return sheetStyles{header: header, unhealthy: unhealthy, healthy: healthy}, nil
}

// writeSheet writes a header row plus data rows. healthCol, when >= 0, is
// the zero-based column whose cells get health highlighting.
func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]any, styles sheetStyles, healthCol int) error {
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}
	end, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, "A1", end, styles.header); err != nil {
		return fmt.Errorf("failed to style header row: %w", err)
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
		if healthCol >= 0 && healthCol < len(row) {
			healthCell, _ := excelize.CoordinatesToCellName(healthCol+1, i+2)
			style := styles.healthy
			if v, ok := row[healthCol].(string); ok && v == models.HealthNeedsAttention {
				style = styles.unhealthy
			}
			if err := f.SetCellStyle(sheet, healthCell, healthCell, style); err != nil {
				return fmt.Errorf("failed to style row %d: %w", i+2, err)
			}
		}
	}
	return nil
}

func writeSummarySheet(f *excelize.File, summary models.Summary, styles sheetStyles) error {
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return err
	}

	rows := [][]any{
		{"Total Repositories", summary.TotalRepos},
		{"Total PRs", summary.TotalPRs},
		{"Merged PRs", summary.MergedPRs},
		{"Healthy PRs", summary.HealthyPRs},
		{"Unhealthy PRs", summary.UnhealthyPRs},
		{"Health Ratio", fmt.Sprintf("%.1f%%", summary.HealthRatio)},
		{"Avg PR Duration (days)", fmt.Sprintf("%.1f", summary.AvgPRDuration)},
		{"Total Lines Added", summary.TotalAdditions},
		{"Total Lines Deleted", summary.TotalDeletions},
		{"Total Change Requests", summary.TotalChangeRequests},
		{"Date Range", summary.DateRange},
	}

	headers := []string{"Metric", "Value"}
	if err := f.SetSheetRow(SheetSummary, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write summary header: %w", err)
	}
	if err := f.SetCellStyle(SheetSummary, "A1", "B1", styles.header); err != nil {
		return fmt.Errorf("failed to style summary header: %w", err)
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetSummary, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary row %d: %w", i+2, err)
		}
	}
	return nil
}

func indexOf(headers []string, name string) int {
	for i, h := range headers {
		if h == name {
			return i
		}
	}
	return -1
}
