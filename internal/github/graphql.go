package github

import (
	"context"
	"fmt"

	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

// GraphQLClient queries the GitHub GraphQL API for data the REST API does
// not expose, currently review thread resolution.
type GraphQLClient struct {
	client *githubv4.Client
}

// NewGraphQLClient creates a new GraphQL client.
func NewGraphQLClient(token string) *GraphQLClient {
	src := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	httpClient := oauth2.NewClient(context.Background(), src)
	return &GraphQLClient{client: githubv4.NewClient(httpClient)}
}

// ThreadCounts holds resolved and unresolved review thread totals for one
// pull request.
type ThreadCounts struct {
	Resolved   int
	Unresolved int
}

// ReviewThreadCounts counts resolved and unresolved review threads on a
// pull request, following thread pagination to the end.
func (c *GraphQLClient) ReviewThreadCounts(ctx context.Context, owner, name string, number int) (ThreadCounts, error) {
	var counts ThreadCounts
	var cursor *githubv4.String

	for {
		var query struct {
			Repository struct {
				PullRequest struct {
					ReviewThreads struct {
						Nodes []struct {
							IsResolved githubv4.Boolean
						}
						PageInfo struct {
							EndCursor   githubv4.String
							HasNextPage githubv4.Boolean
						}
					} `graphql:"reviewThreads(first: 100, after: $cursor)"`
				} `graphql:"pullRequest(number: $number)"`
			} `graphql:"repository(owner: $owner, name: $name)"`
		}

		variables := map[string]interface{}{
			"owner":  githubv4.String(owner),
			"name":   githubv4.String(name),
			"number": githubv4.Int(number),
			"cursor": cursor,
		}

		if err := c.client.Query(ctx, &query, variables); err != nil {
			return counts, fmt.Errorf("failed to query review threads: %w", err)
		}

		for _, node := range query.Repository.PullRequest.ReviewThreads.Nodes {
			if bool(node.IsResolved) {
				counts.Resolved++
			} else {
				counts.Unresolved++
			}
		}

		if !bool(query.Repository.PullRequest.ReviewThreads.PageInfo.HasNextPage) {
			return counts, nil
		}
		cursor = &query.Repository.PullRequest.ReviewThreads.PageInfo.EndCursor
	}
}
