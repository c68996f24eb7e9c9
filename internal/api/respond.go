// internal/api/respond.go
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"issue-triage/internal/model"
)

func respondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, map[string]string{"error": message})
}

type repoResponse struct {
	ID           int64      `json:"id"`
	Origin       string     `json:"origin"`
	Owner        string     `json:"owner"`
	Slug         string     `json:"slug"`
	AccessLevel  string     `json:"accessLevel"`
	SyncMode     string     `json:"syncMode"`
	SyncEnabled  bool       `json:"syncEnabled"`
	LastSyncedAt *time.Time `json:"lastSyncedAt"`
}

func toRepoResponse(r model.TrackedRepository) repoResponse {
	return repoResponse{
		ID:           r.ID,
		Origin:       string(r.Origin),
		Owner:        r.Owner,
		Slug:         r.Slug,
		AccessLevel:  string(r.AccessLevel),
		SyncMode:     string(r.SyncMode),
		SyncEnabled:  r.SyncEnabled,
		LastSyncedAt: r.LastSyncedAt,
	}
}

type triageResponse struct {
	Priority      *int16               `json:"priority"`
	SnoozedUntil  *time.Time           `json:"snoozedUntil"`
	Dismissed     bool                 `json:"dismissed"`
	BatchPending  bool                 `json:"batchPending"`
	PendingChange *model.PendingChange `json:"pendingChange,omitempty"`
}

type issueResponse struct {
	ID              int64           `json:"id"`
	RepositoryID    int64           `json:"repositoryId"`
	Number          int             `json:"number"`
	Title           string          `json:"title"`
	Body            string          `json:"body"`
	AuthorLogin     string          `json:"authorLogin"`
	AuthorAvatarURL string          `json:"authorAvatarUrl"`
	State           string          `json:"state"`
	Labels          []string        `json:"labels"`
	Assignees       []string        `json:"assignees"`
	HTMLURL         string          `json:"htmlUrl"`
	OriginUpdatedAt time.Time       `json:"originUpdatedAt"`
	FetchedAt       time.Time       `json:"fetchedAt"`
	Triage          *triageResponse `json:"triage,omitempty"`
}

func toIssueResponses(issues []model.IssueWithTriage) []issueResponse {
	out := make([]issueResponse, 0, len(issues))
	for _, it := range issues {
		resp := issueResponse{
			ID:              it.Issue.ID,
			RepositoryID:    it.Issue.RepositoryID,
			Number:          it.Issue.Number,
			Title:           it.Issue.Title,
			Body:            it.Issue.Body,
			AuthorLogin:     it.Issue.AuthorLogin,
			AuthorAvatarURL: it.Issue.AuthorAvatarURL,
			State:           string(it.Issue.State),
			Labels:          it.Issue.Labels,
			Assignees:       it.Issue.Assignees,
			HTMLURL:         it.Issue.HTMLURL,
			OriginUpdatedAt: it.Issue.OriginUpdatedAt,
			FetchedAt:       it.Issue.FetchedAt,
		}
		if t := it.Triage; t != nil {
			resp.Triage = &triageResponse{
				Priority:      t.Priority,
				SnoozedUntil:  t.SnoozedUntil,
				Dismissed:     t.Dismissed,
				BatchPending:  t.BatchPending,
				PendingChange: t.PendingChange,
			}
		}
		out = append(out, resp)
	}
	return out
}
