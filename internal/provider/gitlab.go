// internal/provider/gitlab.go
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"issue-triage/internal/model"
)

// GitLab implements Provider against the GitLab REST API.
//
// Dialect differences absorbed here: the state vocabulary is
// "opened"/"closed", labels mutate incrementally via add_labels/remove_labels
// on the issue update call, and assignees are addressed by numeric id with
// full-replace semantics, so removes and adds are reconciled against the
// issue's current assignee set before writing.
type GitLab struct {
	logger  *slog.Logger
	baseURL string
}

// NewGitLab creates the GitLab adapter. baseURL is empty for gitlab.com.
func NewGitLab(logger *slog.Logger, baseURL string) *GitLab {
	return &GitLab{logger: logger, baseURL: baseURL}
}

func (g *GitLab) client(token string) (*gitlab.Client, error) {
	var opts []gitlab.ClientOptionFunc
	if g.baseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(g.baseURL))
	}
	return gitlab.NewClient(token, opts...)
}

func projectID(owner, slug string) string {
	return owner + "/" + slug
}

// FetchIssues implements Provider. GitLab's issues endpoint never returns
// merge requests, so no filtering is needed on this side.
func (g *GitLab) FetchIssues(ctx context.Context, owner, slug, token string, since *time.Time) ([]model.Issue, error) {
	c, err := g.client(token)
	if err != nil {
		return nil, err
	}

	opts := &gitlab.ListProjectIssuesOptions{
		OrderBy: gitlab.Ptr("updated_at"),
		Sort:    gitlab.Ptr("desc"),
		ListOptions: gitlab.ListOptions{
			PerPage: issuesPerPage,
			Page:    1,
		},
	}
	if since != nil {
		opts.UpdatedAfter = since
	}

	var all []model.Issue
	for {
		page, resp, err := c.Issues.ListProjectIssues(projectID(owner, slug), opts, gitlab.WithContext(ctx))
		if err != nil {
			if isGitLabTokenRejected(err) {
				return nil, fmt.Errorf("gitlab token rejected for %s/%s: %w", owner, slug, err)
			}
			g.logger.Warn("gitlab issue page fetch failed, returning partial result",
				"owner", owner, "repo", slug, "page", opts.Page, "collected", len(all), "error", err)
			return all, nil
		}

		for _, is := range page {
			all = append(all, normalizeGitLabIssue(is))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// UpdateIssue implements Provider. Facets are applied independently,
// best-effort, errors joined.
func (g *GitLab) UpdateIssue(ctx context.Context, owner, slug string, number int, token string, change model.IssueChange) error {
	c, err := g.client(token)
	if err != nil {
		return err
	}
	pid := projectID(owner, slug)

	var errs []error

	if len(change.AddLabels) > 0 || len(change.RemoveLabels) > 0 {
		opts := &gitlab.UpdateIssueOptions{}
		if len(change.AddLabels) > 0 {
			add := gitlab.LabelOptions(change.AddLabels)
			opts.AddLabels = &add
		}
		if len(change.RemoveLabels) > 0 {
			remove := gitlab.LabelOptions(change.RemoveLabels)
			opts.RemoveLabels = &remove
		}
		if _, _, err := c.Issues.UpdateIssue(pid, number, opts, gitlab.WithContext(ctx)); err != nil {
			errs = append(errs, fmt.Errorf("updating labels: %w", err))
		}
	}

	if len(change.AddAssignees) > 0 || len(change.RemoveAssignees) > 0 {
		if err := g.updateAssignees(ctx, c, pid, number, change); err != nil {
			errs = append(errs, fmt.Errorf("updating assignees: %w", err))
		}
	}

	if change.State != nil {
		event := "reopen"
		if *change.State == model.IssueClosed {
			event = "close"
		}
		opts := &gitlab.UpdateIssueOptions{StateEvent: gitlab.Ptr(event)}
		if _, _, err := c.Issues.UpdateIssue(pid, number, opts, gitlab.WithContext(ctx)); err != nil {
			errs = append(errs, fmt.Errorf("setting state: %w", err))
		}
	}

	return errors.Join(errs...)
}

// updateAssignees reconciles the requested add/remove logins against the
// issue's current assignees, then writes the resulting id set in one call.
func (g *GitLab) updateAssignees(ctx context.Context, c *gitlab.Client, pid string, number int, change model.IssueChange) error {
	current, _, err := c.Issues.GetIssue(pid, number, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("reading current assignees: %w", err)
	}

	ids := make(map[string]int, len(current.Assignees))
	for _, a := range current.Assignees {
		ids[a.Username] = a.ID
	}
	for _, username := range change.RemoveAssignees {
		delete(ids, username)
	}
	for _, username := range change.AddAssignees {
		if _, ok := ids[username]; ok {
			continue
		}
		id, err := g.resolveUserID(ctx, c, username)
		if err != nil {
			g.logger.Warn("gitlab assignee resolution failed, skipping", "username", username, "error", err)
			continue
		}
		ids[username] = id
	}

	assigneeIDs := make([]int, 0, len(ids))
	for _, id := range ids {
		assigneeIDs = append(assigneeIDs, id)
	}

	opts := &gitlab.UpdateIssueOptions{AssigneeIDs: &assigneeIDs}
	_, _, err = c.Issues.UpdateIssue(pid, number, opts, gitlab.WithContext(ctx))
	return err
}

func (g *GitLab) resolveUserID(ctx context.Context, c *gitlab.Client, username string) (int, error) {
	users, _, err := c.Users.ListUsers(&gitlab.ListUsersOptions{Username: gitlab.Ptr(username)}, gitlab.WithContext(ctx))
	if err != nil {
		return 0, err
	}
	if len(users) == 0 {
		return 0, fmt.Errorf("no user named %q", username)
	}
	return users[0].ID, nil
}

// GetRepoPermission implements Provider. GitLab reports numeric access
// levels; 40+ (maintainer/owner) maps to admin, 30 (developer) to write.
func (g *GitLab) GetRepoPermission(ctx context.Context, owner, slug, token string) model.AccessLevel {
	c, err := g.client(token)
	if err != nil {
		return model.AccessRead
	}
	project, _, err := c.Projects.GetProject(projectID(owner, slug), nil, gitlab.WithContext(ctx))
	if err != nil || project.Permissions == nil {
		g.logger.Warn("gitlab permission resolution failed, defaulting to read",
			"owner", owner, "repo", slug, "error", err)
		return model.AccessRead
	}

	var level gitlab.AccessLevelValue
	if pa := project.Permissions.ProjectAccess; pa != nil && pa.AccessLevel > level {
		level = pa.AccessLevel
	}
	if ga := project.Permissions.GroupAccess; ga != nil && ga.AccessLevel > level {
		level = ga.AccessLevel
	}

	switch {
	case level >= gitlab.MaintainerPermissions:
		return model.AccessAdmin
	case level >= gitlab.DeveloperPermissions:
		return model.AccessWrite
	default:
		return model.AccessRead
	}
}

// FetchLabels implements Provider.
func (g *GitLab) FetchLabels(ctx context.Context, owner, slug, token string) ([]string, error) {
	c, err := g.client(token)
	if err != nil {
		return nil, err
	}
	opts := &gitlab.ListLabelsOptions{
		ListOptions: gitlab.ListOptions{PerPage: issuesPerPage, Page: 1},
	}
	var names []string
	for {
		labels, resp, err := c.Labels.ListLabels(projectID(owner, slug), opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		for _, l := range labels {
			names = append(names, l.Name)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return names, nil
}

// FetchCollaborators implements Provider, backed by the project members list.
func (g *GitLab) FetchCollaborators(ctx context.Context, owner, slug, token string) ([]string, error) {
	c, err := g.client(token)
	if err != nil {
		return nil, err
	}
	opts := &gitlab.ListProjectMembersOptions{
		ListOptions: gitlab.ListOptions{PerPage: issuesPerPage, Page: 1},
	}
	var logins []string
	for {
		members, resp, err := c.ProjectMembers.ListAllProjectMembers(projectID(owner, slug), opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			logins = append(logins, m.Username)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return logins, nil
}

func isGitLabTokenRejected(err error) bool {
	var er *gitlab.ErrorResponse
	return errors.As(err, &er) && er.Response != nil && er.Response.StatusCode == http.StatusUnauthorized
}

func normalizeGitLabIssue(is *gitlab.Issue) model.Issue {
	state := model.IssueState(is.State)
	if is.State == "opened" {
		state = model.IssueOpen
	}

	assignees := make([]string, 0, len(is.Assignees))
	for _, a := range is.Assignees {
		assignees = append(assignees, a.Username)
	}

	issue := model.Issue{
		OriginID:  strconv.Itoa(is.ID),
		Number:    is.IID,
		Title:     is.Title,
		Body:      is.Description,
		State:     state,
		Labels:    []string(is.Labels),
		Assignees: assignees,
		HTMLURL:   is.WebURL,
	}
	if is.Author != nil {
		issue.AuthorLogin = is.Author.Username
		issue.AuthorAvatarURL = is.Author.AvatarURL
	}
	if is.CreatedAt != nil {
		issue.OriginCreatedAt = *is.CreatedAt
	}
	if is.UpdatedAt != nil {
		issue.OriginUpdatedAt = *is.UpdatedAt
	}
	return issue
}
