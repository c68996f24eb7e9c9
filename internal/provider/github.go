// internal/provider/github.go
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"issue-triage/internal/model"
)

const (
	issuesPerPage = 100

	// maxRateLimitWait caps how long one call sleeps waiting for a quota
	// reset before retrying. Bounds worst-case sync latency.
	maxRateLimitWait = 60 * time.Second
)

// GitHub implements Provider against the GitHub REST API. It is the
// higher-traffic origin and the only adapter that enforces rate-limit
// backoff: a terminal rate-limit response is retried exactly once after
// sleeping until the advertised reset time, capped at maxRateLimitWait.
type GitHub struct {
	logger  *slog.Logger
	baseURL string
}

// NewGitHub creates the GitHub adapter. baseURL is empty for api.github.com.
func NewGitHub(logger *slog.Logger, baseURL string) *GitHub {
	return &GitHub{logger: logger, baseURL: baseURL}
}

// client builds a per-call authenticated client. Tokens are per-user, so the
// adapter cannot hold a single client the way a single-tenant fetcher would.
func (g *GitHub) client(ctx context.Context, token string) (*github.Client, error) {
	var hc *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = oauth2.NewClient(ctx, ts)
	}
	c := github.NewClient(hc)
	if g.baseURL != "" {
		var err error
		c, err = c.WithEnterpriseURLs(g.baseURL, g.baseURL)
		if err != nil {
			return nil, fmt.Errorf("configuring github base url: %w", err)
		}
	}
	return c, nil
}

// FetchIssues implements Provider.
func (g *GitHub) FetchIssues(ctx context.Context, owner, slug, token string, since *time.Time) ([]model.Issue, error) {
	c, err := g.client(ctx, token)
	if err != nil {
		return nil, err
	}

	opts := &github.IssueListByRepoOptions{
		State:     "all",
		Sort:      "updated",
		Direction: "desc",
		ListOptions: github.ListOptions{
			PerPage: issuesPerPage,
		},
	}
	if since != nil {
		opts.Since = *since
	}

	var all []model.Issue
	for {
		var (
			page []*github.Issue
			resp *github.Response
		)
		err := g.withRateRetry(ctx, func() error {
			var err error
			page, resp, err = c.Issues.ListByRepo(ctx, owner, slug, opts)
			return err
		})
		if err != nil {
			if isGitHubTokenRejected(err) {
				return nil, fmt.Errorf("github token rejected for %s/%s: %w", owner, slug, err)
			}
			// Partial result: the next sync catches up from the freshness marker.
			g.logger.Warn("github issue page fetch failed, returning partial result",
				"owner", owner, "repo", slug, "page", opts.Page, "collected", len(all), "error", err)
			return all, nil
		}

		for _, is := range page {
			if is.IsPullRequest() {
				continue
			}
			all = append(all, normalizeGitHubIssue(is))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// UpdateIssue implements Provider. Label, assignee and state facets each map
// to separate REST calls; neither origin offers an atomic multi-facet write,
// so a partially applied change is acceptable and errors are joined.
func (g *GitHub) UpdateIssue(ctx context.Context, owner, slug string, number int, token string, change model.IssueChange) error {
	c, err := g.client(ctx, token)
	if err != nil {
		return err
	}

	var errs []error

	if len(change.AddLabels) > 0 {
		err := g.withRateRetry(ctx, func() error {
			_, _, err := c.Issues.AddLabelsToIssue(ctx, owner, slug, number, change.AddLabels)
			return err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("adding labels: %w", err))
		}
	}
	for _, label := range change.RemoveLabels {
		err := g.withRateRetry(ctx, func() error {
			_, err := c.Issues.RemoveLabelForIssue(ctx, owner, slug, number, label)
			return err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("removing label %q: %w", label, err))
		}
	}
	if len(change.AddAssignees) > 0 {
		err := g.withRateRetry(ctx, func() error {
			_, _, err := c.Issues.AddAssignees(ctx, owner, slug, number, change.AddAssignees)
			return err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("adding assignees: %w", err))
		}
	}
	if len(change.RemoveAssignees) > 0 {
		err := g.withRateRetry(ctx, func() error {
			_, _, err := c.Issues.RemoveAssignees(ctx, owner, slug, number, change.RemoveAssignees)
			return err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("removing assignees: %w", err))
		}
	}
	if change.State != nil {
		state := string(*change.State)
		err := g.withRateRetry(ctx, func() error {
			_, _, err := c.Issues.Edit(ctx, owner, slug, number, &github.IssueRequest{State: &state})
			return err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("setting state: %w", err))
		}
	}

	return errors.Join(errs...)
}

// GetRepoPermission implements Provider. The authenticated caller's
// permission map comes back on the repository resource itself.
func (g *GitHub) GetRepoPermission(ctx context.Context, owner, slug, token string) model.AccessLevel {
	c, err := g.client(ctx, token)
	if err != nil {
		return model.AccessRead
	}
	repo, _, err := c.Repositories.Get(ctx, owner, slug)
	if err != nil {
		g.logger.Warn("github permission resolution failed, defaulting to read",
			"owner", owner, "repo", slug, "error", err)
		return model.AccessRead
	}
	perms := repo.GetPermissions()
	switch {
	case perms["admin"]:
		return model.AccessAdmin
	case perms["push"]:
		return model.AccessWrite
	default:
		return model.AccessRead
	}
}

// FetchLabels implements Provider.
func (g *GitHub) FetchLabels(ctx context.Context, owner, slug, token string) ([]string, error) {
	c, err := g.client(ctx, token)
	if err != nil {
		return nil, err
	}
	opts := &github.ListOptions{PerPage: issuesPerPage}
	var names []string
	for {
		labels, resp, err := c.Issues.ListLabels(ctx, owner, slug, opts)
		if err != nil {
			return nil, err
		}
		for _, l := range labels {
			names = append(names, l.GetName())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return names, nil
}

// FetchCollaborators implements Provider.
func (g *GitHub) FetchCollaborators(ctx context.Context, owner, slug, token string) ([]string, error) {
	c, err := g.client(ctx, token)
	if err != nil {
		return nil, err
	}
	opts := &github.ListCollaboratorsOptions{
		ListOptions: github.ListOptions{PerPage: issuesPerPage},
	}
	var logins []string
	for {
		users, resp, err := c.Repositories.ListCollaborators(ctx, owner, slug, opts)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			logins = append(logins, u.GetLogin())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return logins, nil
}

// withRateRetry runs call once and, if it failed on the primary rate limit,
// sleeps until the advertised reset (capped) and retries exactly once. A
// second rate-limit failure propagates to the caller.
func (g *GitHub) withRateRetry(ctx context.Context, call func() error) error {
	err := call()
	var rle *github.RateLimitError
	if !errors.As(err, &rle) {
		return err
	}

	wait := time.Until(rle.Rate.Reset.Time)
	if wait < 0 {
		wait = 0
	}
	if wait > maxRateLimitWait {
		wait = maxRateLimitWait
	}
	g.logger.Warn("github rate limit hit, backing off", "wait", wait.String())

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	return call()
}

func isGitHubTokenRejected(err error) bool {
	var er *github.ErrorResponse
	return errors.As(err, &er) && er.Response != nil && er.Response.StatusCode == http.StatusUnauthorized
}

func normalizeGitHubIssue(is *github.Issue) model.Issue {
	labels := make([]string, 0, len(is.Labels))
	for _, l := range is.Labels {
		labels = append(labels, l.GetName())
	}
	assignees := make([]string, 0, len(is.Assignees))
	for _, a := range is.Assignees {
		assignees = append(assignees, a.GetLogin())
	}
	return model.Issue{
		OriginID:        strconv.FormatInt(is.GetID(), 10),
		Number:          is.GetNumber(),
		Title:           is.GetTitle(),
		Body:            is.GetBody(),
		AuthorLogin:     is.GetUser().GetLogin(),
		AuthorAvatarURL: is.GetUser().GetAvatarURL(),
		State:           model.IssueState(is.GetState()),
		Labels:          labels,
		Assignees:       assignees,
		HTMLURL:         is.GetHTMLURL(),
		OriginCreatedAt: is.GetCreatedAt().Time,
		OriginUpdatedAt: is.GetUpdatedAt().Time,
	}
}
