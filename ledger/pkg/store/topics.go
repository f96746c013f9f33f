package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type CreateTopicParams struct {
	IssueID      uuid.UUID
	Title        string
	Brief        string
	Position     int
	BountyAmount int64
	SlotsNeeded  int
}

func (p *CreateTopicParams) Validate() error {
	if p.IssueID == uuid.Nil {
		return &ValidationError{Field: "issue_id", Reason: "is required"}
	}
	if strings.TrimSpace(p.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if p.BountyAmount < 0 {
		return &ValidationError{Field: "bounty_amount", Reason: "must not be negative"}
	}
	if p.SlotsNeeded < 1 {
		return &ValidationError{Field: "slots_needed", Reason: "must be at least 1"}
	}
	return nil
}

func (s *Store) CreateTopic(ctx context.Context, p CreateTopicParams) (*Topic, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var topic Topic
	err := s.pool.QueryRow(ctx, `
		INSERT INTO topics (id, issue_id, title, brief, position, bounty_amount, slots_needed, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'open', $8)
		RETURNING id, issue_id, title, brief, position, bounty_amount, slots_needed, status, created_at
	`, uuid.New(), p.IssueID, p.Title, p.Brief, p.Position, p.BountyAmount, p.SlotsNeeded, s.clock.Now().UTC()).Scan(
		&topic.ID, &topic.IssueID, &topic.Title, &topic.Brief, &topic.Position,
		&topic.BountyAmount, &topic.SlotsNeeded, &topic.Status, &topic.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create topic: %w", err)
	}
	return &topic, nil
}

func (s *Store) GetTopic(ctx context.Context, id uuid.UUID) (*Topic, error) {
	var topic Topic
	err := s.pool.QueryRow(ctx, `
		SELECT id, issue_id, title, brief, position, bounty_amount, slots_needed, status, created_at
		FROM topics WHERE id = $1
	`, id).Scan(
		&topic.ID, &topic.IssueID, &topic.Title, &topic.Brief, &topic.Position,
		&topic.BountyAmount, &topic.SlotsNeeded, &topic.Status, &topic.CreatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get topic: %w", err)
	}
	return &topic, nil
}

func (s *Store) ListTopicsByIssue(ctx context.Context, issueID uuid.UUID) ([]Topic, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, issue_id, title, brief, position, bounty_amount, slots_needed, status, created_at
		FROM topics WHERE issue_id = $1
		ORDER BY position ASC, created_at ASC
	`, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	defer rows.Close()

	topics := []Topic{}
	for rows.Next() {
		var topic Topic
		if err := rows.Scan(
			&topic.ID, &topic.IssueID, &topic.Title, &topic.Brief, &topic.Position,
			&topic.BountyAmount, &topic.SlotsNeeded, &topic.Status, &topic.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan topic: %w", err)
		}
		topics = append(topics, topic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate topics: %w", err)
	}
	return topics, nil
}

// ListTopicFill returns per-topic slot accounting for an issue: how many
// accepted submissions each topic holds against its slots. Computed fresh
// on every call, never cached.
func (s *Store) ListTopicFill(ctx context.Context, issueID uuid.UUID) ([]TopicFill, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.id, t.bounty_amount, t.slots_needed,
		       COUNT(sub.id) FILTER (WHERE sub.status = 'accepted') AS accepted_count
		FROM topics t
		LEFT JOIN submissions sub ON sub.topic_id = t.id
		WHERE t.issue_id = $1
		GROUP BY t.id, t.bounty_amount, t.slots_needed, t.position
		ORDER BY t.position ASC
	`, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query topic fill: %w", err)
	}
	defer rows.Close()

	fills := []TopicFill{}
	for rows.Next() {
		var f TopicFill
		if err := rows.Scan(&f.TopicID, &f.BountyAmount, &f.SlotsNeeded, &f.AcceptedCount); err != nil {
			return nil, fmt.Errorf("failed to scan topic fill: %w", err)
		}
		fills = append(fills, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate topic fill: %w", err)
	}
	return fills, nil
}
