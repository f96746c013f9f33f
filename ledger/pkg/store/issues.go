package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type CreateIssueParams struct {
	Title           string
	Slug            string
	TreasuryAddress string
	Deadline        *time.Time
}

func (p *CreateIssueParams) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if strings.TrimSpace(p.TreasuryAddress) == "" {
		return &ValidationError{Field: "treasury_address", Reason: "must not be empty"}
	}
	if p.Slug == "" {
		p.Slug = slugify(p.Title)
	}
	return nil
}

func (s *Store) CreateIssue(ctx context.Context, p CreateIssueParams) (*Issue, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	var issue Issue
	err := s.pool.QueryRow(ctx, `
		INSERT INTO issues (id, title, slug, treasury_address, deadline, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id, title, slug, treasury_address, current_balance, deadline, status, created_at, updated_at
	`, uuid.New(), p.Title, p.Slug, p.TreasuryAddress, p.Deadline, IssueOpen, now).Scan(
		&issue.ID, &issue.Title, &issue.Slug, &issue.TreasuryAddress, &issue.CurrentBalance,
		&issue.Deadline, &issue.Status, &issue.CreatedAt, &issue.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &ValidationError{Field: "slug", Reason: "already in use"}
		}
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}
	return &issue, nil
}

func (s *Store) GetIssue(ctx context.Context, id uuid.UUID) (*Issue, error) {
	var issue Issue
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, slug, treasury_address, current_balance, deadline, status, created_at, updated_at
		FROM issues WHERE id = $1
	`, id).Scan(
		&issue.ID, &issue.Title, &issue.Slug, &issue.TreasuryAddress, &issue.CurrentBalance,
		&issue.Deadline, &issue.Status, &issue.CreatedAt, &issue.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get issue: %w", err)
	}
	return &issue, nil
}

// UpdateIssueBalance records a chain-observed treasury balance (cents).
func (s *Store) UpdateIssueBalance(ctx context.Context, id uuid.UUID, balance int64) (*Issue, error) {
	if balance < 0 {
		return nil, &ValidationError{Field: "balance", Reason: "must not be negative"}
	}
	var issue Issue
	err := s.pool.QueryRow(ctx, `
		UPDATE issues SET current_balance = $2, updated_at = $3
		WHERE id = $1
		RETURNING id, title, slug, treasury_address, current_balance, deadline, status, created_at, updated_at
	`, id, balance, s.clock.Now().UTC()).Scan(
		&issue.ID, &issue.Title, &issue.Slug, &issue.TreasuryAddress, &issue.CurrentBalance,
		&issue.Deadline, &issue.Status, &issue.CreatedAt, &issue.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update issue balance: %w", err)
	}
	return &issue, nil
}

func slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
