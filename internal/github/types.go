package github

import "time"

// Wire types for the REST endpoints the collector touches. Only the fields
// the reports need are decoded; everything else in the payload is ignored.

// UserPayload is the nested user object on PRs, reviews, and commits.
type UserPayload struct {
	Login string `json:"login"`
}

// LabelPayload is one label attached to a pull request.
type LabelPayload struct {
	Name string `json:"name"`
}

// PullRequestPayload is an element of GET /repos/{repo}/pulls.
type PullRequestPayload struct {
	Number    int            `json:"number"`
	Title     string         `json:"title"`
	State     string         `json:"state"`
	User      UserPayload    `json:"user"`
	CreatedAt time.Time      `json:"created_at"`
	MergedAt  *time.Time     `json:"merged_at"`
	ClosedAt  *time.Time     `json:"closed_at"`
	Labels    []LabelPayload `json:"labels"`
	Base      struct {
		Ref string `json:"ref"`
	} `json:"base"`
}

// ReviewPayload is an element of GET /repos/{repo}/pulls/{n}/reviews.
type ReviewPayload struct {
	User        UserPayload `json:"user"`
	State       string      `json:"state"`
	SubmittedAt *time.Time  `json:"submitted_at"`
	Body        string      `json:"body"`
}

// FilePayload is an element of GET /repos/{repo}/pulls/{n}/files.
type FilePayload struct {
	Filename  string `json:"filename"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// FileSummary accumulates file pages for one pull request.
type FileSummary struct {
	FileList  []string
	FileCount int
	Additions int
	Deletions int
}

// CommitPayload is an element of GET /repos/{repo}/pulls/{n}/commits and of
// the repository-level commit listing.
type CommitPayload struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name string    `json:"name"`
			Date time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	Author    *UserPayload `json:"author"`
	Committer *UserPayload `json:"committer"`
}

// CheckRunsPayload is the body of GET /repos/{repo}/commits/{sha}/check-runs.
type CheckRunsPayload struct {
	TotalCount int `json:"total_count"`
	CheckRuns  []struct {
		Conclusion string `json:"conclusion"`
	} `json:"check_runs"`
}
