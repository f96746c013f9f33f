// Package treasury computes issue funding requirements and the publish gate.
// All arithmetic is in integer cents; the 10% safety buffer is computed
// without floating point so the gate is exact at every boundary.
package treasury

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/doublescoop/punto/ledger/pkg/store"
)

// Ledger is the slice of the entity store the calculator reads from.
type Ledger interface {
	GetIssue(ctx context.Context, id uuid.UUID) (*store.Issue, error)
	ListTopicFill(ctx context.Context, issueID uuid.UUID) ([]store.TopicFill, error)
	SumStipends(ctx context.Context, issueID uuid.UUID) (int64, error)
}

type Config struct {
	Logger *slog.Logger
	Ledger Ledger
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Ledger == nil {
		return errors.New("ledger is required")
	}
	return nil
}

type Calculator struct {
	log    *slog.Logger
	ledger Ledger
}

func New(cfg Config) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{log: cfg.Logger, ledger: cfg.Ledger}, nil
}

// FundingStatus is the derived funding picture for an issue. It is computed
// on demand and never stored.
type FundingStatus struct {
	IssueID        uuid.UUID `json:"issue_id"`
	Required       int64     `json:"required"`
	CurrentBalance int64     `json:"current_balance"`
	Shortfall      int64     `json:"shortfall"`
	TopicsFilled   bool      `json:"topics_filled"`
	CanPublish     bool      `json:"can_publish"`
}

// Funding computes what an issue owes and whether it is ready to publish.
//
// Required is the sum of every topic's bounty times its slot count, plus all
// stipends on the issue's ledger. CanPublish demands both that every topic's
// slots are held by accepted submissions and that the balance covers the
// requirement plus a 10% buffer. Shortfall is the top-up that would satisfy
// the balance side of the gate, zero when it already passes.
func (c *Calculator) Funding(ctx context.Context, issueID uuid.UUID) (*FundingStatus, error) {
	issue, err := c.ledger.GetIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}

	fills, err := c.ledger.ListTopicFill(ctx, issueID)
	if err != nil {
		return nil, err
	}

	var required int64
	filled := true
	for _, f := range fills {
		required += f.BountyAmount * int64(f.SlotsNeeded)
		if !f.Filled() {
			filled = false
		}
	}

	stipends, err := c.ledger.SumStipends(ctx, issueID)
	if err != nil {
		return nil, err
	}
	required += stipends

	status := &FundingStatus{
		IssueID:        issue.ID,
		Required:       required,
		CurrentBalance: issue.CurrentBalance,
		Shortfall:      shortfall(issue.CurrentBalance, required),
		TopicsFilled:   filled,
		CanPublish:     filled && meetsBuffer(issue.CurrentBalance, required),
	}

	c.log.Debug("computed funding status",
		"issue_id", issue.ID,
		"required", status.Required,
		"balance", status.CurrentBalance,
		"shortfall", status.Shortfall,
		"topics_filled", status.TopicsFilled,
		"can_publish", status.CanPublish,
	)
	return status, nil
}

// meetsBuffer reports whether balance covers required plus a 10% buffer.
// balance >= required*1.1 rewritten as balance*10 >= required*11 to stay in
// integers.
func meetsBuffer(balance, required int64) bool {
	return balance*10 >= required*11
}

// shortfall is the smallest top-up in cents that makes meetsBuffer pass.
// ceil(required*1.1) - balance, floored at zero.
func shortfall(balance, required int64) int64 {
	need := (required*11 + 9) / 10
	if balance >= need {
		return 0
	}
	return need - balance
}
