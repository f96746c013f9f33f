package handlers

import (
	"errors"
	"net/http"

	"github.com/doublescoop/punto/api/metrics"
	"github.com/doublescoop/punto/ledger/pkg/review"
	"github.com/doublescoop/punto/ledger/pkg/store"
)

type createSubmissionRequest struct {
	TopicID  string `json:"topic_id"`
	AuthorID string `json:"author_id"`
	Content  string `json:"content"`
}

// handleCreateSubmission files a piece against a topic. The topic's bounty
// is frozen onto the submission at this moment.
func (a *API) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	var req createSubmissionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.log, w, err)
		return
	}

	topicID, err := parseUUIDField(req.TopicID, "topic_id")
	if err != nil {
		writeError(a.log, w, err)
		return
	}
	authorID, err := parseUUIDField(req.AuthorID, "author_id")
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	if _, err := a.store.GetContributor(r.Context(), authorID); err != nil {
		writeError(a.log, w, err)
		return
	}

	sub, err := a.store.CreateSubmission(r.Context(), store.CreateSubmissionParams{
		TopicID:  topicID,
		AuthorID: authorID,
		Content:  req.Content,
	})
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	writeJSON(a.log, w, http.StatusCreated, sub)
}

func (a *API) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "submissionID")
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	sub, err := a.store.GetSubmission(r.Context(), id)
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	writeJSON(a.log, w, http.StatusOK, sub)
}

func (a *API) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	issueID, err := pathUUID(r, "issueID")
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	subs, err := a.store.ListSubmissionsByIssue(r.Context(), issueID)
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	writeJSON(a.log, w, http.StatusOK, subs)
}

type reviewRequest struct {
	Decision   string `json:"decision"`
	ReviewerID string `json:"reviewer_id"`
}

// handleReviewSubmission applies a reviewer's decision. A decision against
// an already-finalized submission comes back 409 with the winning status.
func (a *API) handleReviewSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "submissionID")
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.log, w, err)
		return
	}

	reviewerID, err := parseUUIDField(req.ReviewerID, "reviewer_id")
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	sub, payment, err := a.engine.Review(r.Context(), id, review.Decision(req.Decision), reviewerID)
	var sc *store.StateConflictError
	metrics.RecordReview(req.Decision, err, errors.As(err, &sc))
	if err != nil {
		writeError(a.log, w, err)
		return
	}
	// Counted off the payment the engine actually opened, not the acceptance:
	// a ledger write failure accepts the submission without opening one.
	if payment != nil {
		metrics.PaymentsOpenedTotal.WithLabelValues(string(store.RoleAuthor)).Inc()
	}

	writeJSON(a.log, w, http.StatusOK, sub)
}
