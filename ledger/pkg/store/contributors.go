package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type CreateContributorParams struct {
	DisplayName   string
	WalletAddress string
	Role          string
}

func (p *CreateContributorParams) Validate() error {
	if strings.TrimSpace(p.DisplayName) == "" {
		return &ValidationError{Field: "display_name", Reason: "must not be empty"}
	}
	if strings.TrimSpace(p.WalletAddress) == "" {
		return &ValidationError{Field: "wallet_address", Reason: "must not be empty"}
	}
	return nil
}

func (s *Store) CreateContributor(ctx context.Context, p CreateContributorParams) (*Contributor, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var c Contributor
	err := s.pool.QueryRow(ctx, `
		INSERT INTO contributors (id, display_name, wallet_address, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, display_name, wallet_address, role, created_at
	`, uuid.New(), p.DisplayName, p.WalletAddress, p.Role, s.clock.Now().UTC()).Scan(
		&c.ID, &c.DisplayName, &c.WalletAddress, &c.Role, &c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &ValidationError{Field: "wallet_address", Reason: "already registered"}
		}
		return nil, fmt.Errorf("failed to create contributor: %w", err)
	}
	return &c, nil
}

func (s *Store) GetContributor(ctx context.Context, id uuid.UUID) (*Contributor, error) {
	var c Contributor
	err := s.pool.QueryRow(ctx, `
		SELECT id, display_name, wallet_address, role, created_at
		FROM contributors WHERE id = $1
	`, id).Scan(&c.ID, &c.DisplayName, &c.WalletAddress, &c.Role, &c.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get contributor: %w", err)
	}
	return &c, nil
}

// GetContributorByWallet resolves a wallet address to an identity.
func (s *Store) GetContributorByWallet(ctx context.Context, wallet string) (*Contributor, error) {
	var c Contributor
	err := s.pool.QueryRow(ctx, `
		SELECT id, display_name, wallet_address, role, created_at
		FROM contributors WHERE wallet_address = $1
	`, wallet).Scan(&c.ID, &c.DisplayName, &c.WalletAddress, &c.Role, &c.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get contributor by wallet: %w", err)
	}
	return &c, nil
}
