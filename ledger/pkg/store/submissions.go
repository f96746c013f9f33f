package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type CreateSubmissionParams struct {
	TopicID  uuid.UUID
	AuthorID uuid.UUID
	Content  string
}

func (p *CreateSubmissionParams) Validate() error {
	if p.TopicID == uuid.Nil {
		return &ValidationError{Field: "topic_id", Reason: "is required"}
	}
	if p.AuthorID == uuid.Nil {
		return &ValidationError{Field: "author_id", Reason: "is required"}
	}
	if strings.TrimSpace(p.Content) == "" {
		return &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	return nil
}

// CreateSubmission files a piece against a topic. The topic's bounty amount
// is snapshotted onto the row so later topic edits never reprice it.
func (s *Store) CreateSubmission(ctx context.Context, p CreateSubmissionParams) (*Submission, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	topic, err := s.GetTopic(ctx, p.TopicID)
	if err != nil {
		return nil, err
	}

	var sub Submission
	err = s.pool.QueryRow(ctx, `
		INSERT INTO submissions (id, topic_id, issue_id, author_id, content, status, bounty_amount, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, topic_id, issue_id, author_id, content, status, bounty_amount, submitted_at, reviewed_by, accepted_at
	`, uuid.New(), topic.ID, topic.IssueID, p.AuthorID, p.Content, SubmissionSubmitted, topic.BountyAmount, s.clock.Now().UTC()).Scan(
		&sub.ID, &sub.TopicID, &sub.IssueID, &sub.AuthorID, &sub.Content,
		&sub.Status, &sub.BountyAmount, &sub.SubmittedAt, &sub.ReviewedBy, &sub.AcceptedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}
	return &sub, nil
}

func (s *Store) GetSubmission(ctx context.Context, id uuid.UUID) (*Submission, error) {
	var sub Submission
	err := s.pool.QueryRow(ctx, `
		SELECT id, topic_id, issue_id, author_id, content, status, bounty_amount, submitted_at, reviewed_by, accepted_at
		FROM submissions WHERE id = $1
	`, id).Scan(
		&sub.ID, &sub.TopicID, &sub.IssueID, &sub.AuthorID, &sub.Content,
		&sub.Status, &sub.BountyAmount, &sub.SubmittedAt, &sub.ReviewedBy, &sub.AcceptedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &sub, nil
}

func (s *Store) ListSubmissionsByIssue(ctx context.Context, issueID uuid.UUID) ([]Submission, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, topic_id, issue_id, author_id, content, status, bounty_amount, submitted_at, reviewed_by, accepted_at
		FROM submissions WHERE issue_id = $1
		ORDER BY submitted_at ASC, id ASC
	`, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	subs := []Submission{}
	for rows.Next() {
		var sub Submission
		if err := rows.Scan(
			&sub.ID, &sub.TopicID, &sub.IssueID, &sub.AuthorID, &sub.Content,
			&sub.Status, &sub.BountyAmount, &sub.SubmittedAt, &sub.ReviewedBy, &sub.AcceptedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submissions: %w", err)
	}
	return subs, nil
}

// TransitionSubmission moves a submission from one of the expected statuses
// to the target status in a single guarded update. Two reviewers racing on
// the same row each read a prior status but only one update matches; the
// loser gets a StateConflictError carrying the winner's persisted status.
func (s *Store) TransitionSubmission(ctx context.Context, id uuid.UUID, from []SubmissionStatus, to SubmissionStatus, reviewerID uuid.UUID) (*Submission, error) {
	if len(from) == 0 {
		return nil, &ValidationError{Field: "from", Reason: "at least one expected status is required"}
	}

	expected := make([]string, len(from))
	for i, st := range from {
		expected[i] = string(st)
	}

	now := s.clock.Now().UTC()
	var sub Submission
	err := s.pool.QueryRow(ctx, `
		UPDATE submissions
		SET status = $2,
		    reviewed_by = $3,
		    accepted_at = CASE WHEN $2 = 'accepted' THEN $4 ELSE accepted_at END
		WHERE id = $1 AND status = ANY($5)
		RETURNING id, topic_id, issue_id, author_id, content, status, bounty_amount, submitted_at, reviewed_by, accepted_at
	`, id, string(to), reviewerID, now, expected).Scan(
		&sub.ID, &sub.TopicID, &sub.IssueID, &sub.AuthorID, &sub.Content,
		&sub.Status, &sub.BountyAmount, &sub.SubmittedAt, &sub.ReviewedBy, &sub.AcceptedAt,
	)
	if err == nil {
		return &sub, nil
	}
	if !isNoRows(err) {
		return nil, fmt.Errorf("failed to transition submission: %w", err)
	}

	// No row matched: either the submission does not exist or it is not in
	// an expected status anymore. Tell the caller which.
	current, getErr := s.GetSubmission(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, &StateConflictError{Entity: "submission", Current: string(current.Status)}
}

// ListAcceptedWithoutPayment finds accepted submissions that have no payment
// row. These are the gaps left when payment creation failed after a
// successful acceptance; the reconciliation job repairs them.
func (s *Store) ListAcceptedWithoutPayment(ctx context.Context) ([]Submission, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sub.id, sub.topic_id, sub.issue_id, sub.author_id, sub.content, sub.status,
		       sub.bounty_amount, sub.submitted_at, sub.reviewed_by, sub.accepted_at
		FROM submissions sub
		LEFT JOIN payments p ON p.submission_id = sub.id
		WHERE sub.status = 'accepted' AND p.id IS NULL
		ORDER BY sub.accepted_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accepted submissions without payment: %w", err)
	}
	defer rows.Close()

	subs := []Submission{}
	for rows.Next() {
		var sub Submission
		if err := rows.Scan(
			&sub.ID, &sub.TopicID, &sub.IssueID, &sub.AuthorID, &sub.Content,
			&sub.Status, &sub.BountyAmount, &sub.SubmittedAt, &sub.ReviewedBy, &sub.AcceptedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submissions: %w", err)
	}
	return subs, nil
}
