// Package notify files a GitHub issue when a verification run fails, so a
// CI pipeline gating on entitycheck leaves a visible trail.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v60/github"

	"github.com/cgast/entitycheck/pkg/verify"
)

// GitHubNotifier creates issues in a single repository.
type GitHubNotifier struct {
	issues issueCreator
	owner  string
	repo   string
}

// issueCreator is the slice of the GitHub API the notifier uses.
type issueCreator interface {
	Create(ctx context.Context, owner, repo string, issue *gh.IssueRequest) (*gh.Issue, *gh.Response, error)
}

// NewGitHubNotifier creates a notifier for repo ("owner/name"),
// authenticating with token.
func NewGitHubNotifier(token, repo string) (*GitHubNotifier, error) {
	if token == "" {
		return nil, fmt.Errorf("github token is required")
	}
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("invalid repo %q (expected owner/name)", repo)
	}

	httpClient := &http.Client{
		Transport: &tokenTransport{token: token},
	}
	client := gh.NewClient(httpClient)
	return &GitHubNotifier{issues: client.Issues, owner: owner, repo: name}, nil
}

// tokenTransport adds Bearer token auth to HTTP requests.
type tokenTransport struct {
	token string
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+t.token)
	return http.DefaultTransport.RoundTrip(req)
}

// NotifyFailure files an issue describing the failed run and returns its
// URL. Calling it with a fully passing report is an error.
func (n *GitHubNotifier) NotifyFailure(ctx context.Context, report verify.Report) (string, error) {
	if report.OK() {
		return "", fmt.Errorf("report has no failures")
	}

	title := issueTitle(report)
	body := issueBody(report)
	labels := []string{"verification-failure"}
	issue, _, err := n.issues.Create(ctx, n.owner, n.repo, &gh.IssueRequest{
		Title:  &title,
		Body:   &body,
		Labels: &labels,
	})
	if err != nil {
		return "", fmt.Errorf("create issue: %w", err)
	}
	return issue.GetHTMLURL(), nil
}

func issueTitle(report verify.Report) string {
	return fmt.Sprintf("Verification failed: %s (%d/%d checks)",
		report.Experiment, report.Summary.Failed, report.Summary.Total)
}

func issueBody(report verify.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Experiment `%s` (run `%s`) failed %d of %d checks at %s.\n\n",
		report.Experiment, report.ExperimentID,
		report.Summary.Failed, report.Summary.Total,
		report.Timestamp.Format("2006-01-02 15:04:05 UTC"))
	b.WriteString("| Check | Result | Detail |\n|---|---|---|\n")
	for _, d := range report.Details {
		status := "pass"
		if !d.Passed {
			status = "**fail**"
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", d.Type, status, d.Message)
	}
	return b.String()
}
