package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const paymentColumns = `id, issue_id, recipient_id, submission_id, amount, currency, role, status,
	transaction_hash, block_number, paid_at, failed_at, failure_reason, created_at`

// CreatePaymentForSubmission opens a pending payment owed to the author of
// an accepted submission. The amount is the submission's frozen bounty. A
// partial unique index on submission_id makes a second call for the same
// submission fail with ErrDuplicatePayment regardless of caller races.
func (s *Store) CreatePaymentForSubmission(ctx context.Context, sub *Submission) (*Payment, error) {
	if sub == nil {
		return nil, &ValidationError{Field: "submission", Reason: "is required"}
	}
	if sub.Status != SubmissionAccepted {
		return nil, &ValidationError{Field: "submission", Reason: "must be accepted before payment is owed"}
	}

	var p Payment
	err := s.pool.QueryRow(ctx, `
		INSERT INTO payments (id, issue_id, recipient_id, submission_id, amount, currency, role, status, created_at)
		VALUES ($1, $2, $3, $4, $5, 'USDC', $6, $7, $8)
		RETURNING `+paymentColumns+`
	`, uuid.New(), sub.IssueID, sub.AuthorID, sub.ID, sub.BountyAmount, RoleAuthor, PaymentPending, s.clock.Now().UTC()).Scan(
		&p.ID, &p.IssueID, &p.RecipientID, &p.SubmissionID, &p.Amount, &p.Currency,
		&p.Role, &p.Status, &p.TransactionHash, &p.BlockNumber,
		&p.PaidAt, &p.FailedAt, &p.FailureReason, &p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicatePayment
		}
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	return &p, nil
}

type CreateStipendParams struct {
	IssueID     uuid.UUID
	RecipientID uuid.UUID
	Amount      int64
	Role        PaymentRole
}

func (p *CreateStipendParams) Validate() error {
	if p.IssueID == uuid.Nil {
		return &ValidationError{Field: "issue_id", Reason: "is required"}
	}
	if p.RecipientID == uuid.Nil {
		return &ValidationError{Field: "recipient_id", Reason: "is required"}
	}
	if p.Amount <= 0 {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	switch p.Role {
	case RoleEditor, RoleFounder:
	default:
		return &ValidationError{Field: "role", Reason: "must be editor or founder"}
	}
	return nil
}

// CreateStipend opens a pending role payment with no submission attached.
func (s *Store) CreateStipend(ctx context.Context, params CreateStipendParams) (*Payment, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	var p Payment
	err := s.pool.QueryRow(ctx, `
		INSERT INTO payments (id, issue_id, recipient_id, submission_id, amount, currency, role, status, created_at)
		VALUES ($1, $2, $3, NULL, $4, 'USDC', $5, $6, $7)
		RETURNING `+paymentColumns+`
	`, uuid.New(), params.IssueID, params.RecipientID, params.Amount, params.Role, PaymentPending, s.clock.Now().UTC()).Scan(
		&p.ID, &p.IssueID, &p.RecipientID, &p.SubmissionID, &p.Amount, &p.Currency,
		&p.Role, &p.Status, &p.TransactionHash, &p.BlockNumber,
		&p.PaidAt, &p.FailedAt, &p.FailureReason, &p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stipend: %w", err)
	}
	return &p, nil
}

func (s *Store) GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	var p Payment
	err := s.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id).Scan(
		&p.ID, &p.IssueID, &p.RecipientID, &p.SubmissionID, &p.Amount, &p.Currency,
		&p.Role, &p.Status, &p.TransactionHash, &p.BlockNumber,
		&p.PaidAt, &p.FailedAt, &p.FailureReason, &p.CreatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &p, nil
}

// GetPaymentBySubmission returns the payment owed for a submission, if any.
func (s *Store) GetPaymentBySubmission(ctx context.Context, submissionID uuid.UUID) (*Payment, error) {
	var p Payment
	err := s.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE submission_id = $1`, submissionID).Scan(
		&p.ID, &p.IssueID, &p.RecipientID, &p.SubmissionID, &p.Amount, &p.Currency,
		&p.Role, &p.Status, &p.TransactionHash, &p.BlockNumber,
		&p.PaidAt, &p.FailedAt, &p.FailureReason, &p.CreatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payment by submission: %w", err)
	}
	return &p, nil
}

// ListPendingPayments returns an issue's open payments oldest first: first
// accepted, first paid, and a stable "next payment" pointer for the payout
// session. The recipient wallet is joined in so the payout loop does not
// need a second lookup.
func (s *Store) ListPendingPayments(ctx context.Context, issueID uuid.UUID) ([]Payment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.issue_id, p.recipient_id, p.submission_id, p.amount, p.currency, p.role, p.status,
		       p.transaction_hash, p.block_number, p.paid_at, p.failed_at, p.failure_reason, p.created_at,
		       c.wallet_address
		FROM payments p
		JOIN contributors c ON c.id = p.recipient_id
		WHERE p.issue_id = $1 AND p.status = 'pending'
		ORDER BY p.created_at ASC, p.id ASC
	`, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending payments: %w", err)
	}
	defer rows.Close()

	payments := []Payment{}
	for rows.Next() {
		var p Payment
		if err := rows.Scan(
			&p.ID, &p.IssueID, &p.RecipientID, &p.SubmissionID, &p.Amount, &p.Currency,
			&p.Role, &p.Status, &p.TransactionHash, &p.BlockNumber,
			&p.PaidAt, &p.FailedAt, &p.FailureReason, &p.CreatedAt,
			&p.RecipientWallet,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}
	return payments, nil
}

// SumStipends totals an issue's role payments (all statuses) in cents.
func (s *Store) SumStipends(ctx context.Context, issueID uuid.UUID) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payments
		WHERE issue_id = $1 AND submission_id IS NULL
	`, issueID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum stipends: %w", err)
	}
	return total, nil
}

// MarkPaymentPaid settles a payment: pending → paid, recording the on-chain
// receipt. The guard is the status itself, so a replayed call cannot touch
// the stored transaction hash or block number.
func (s *Store) MarkPaymentPaid(ctx context.Context, id uuid.UUID, txHash string, blockNumber int64) (*Payment, error) {
	if strings.TrimSpace(txHash) == "" {
		return nil, &ValidationError{Field: "transaction_hash", Reason: "must not be empty"}
	}
	if blockNumber < 0 {
		return nil, &ValidationError{Field: "block_number", Reason: "must not be negative"}
	}

	var p Payment
	err := s.pool.QueryRow(ctx, `
		UPDATE payments
		SET status = 'paid', transaction_hash = $2, block_number = $3, paid_at = $4
		WHERE id = $1 AND status = 'pending'
		RETURNING `+paymentColumns+`
	`, id, txHash, blockNumber, s.clock.Now().UTC()).Scan(
		&p.ID, &p.IssueID, &p.RecipientID, &p.SubmissionID, &p.Amount, &p.Currency,
		&p.Role, &p.Status, &p.TransactionHash, &p.BlockNumber,
		&p.PaidAt, &p.FailedAt, &p.FailureReason, &p.CreatedAt,
	)
	if err == nil {
		return &p, nil
	}
	if !isNoRows(err) {
		return nil, fmt.Errorf("failed to mark payment paid: %w", err)
	}

	current, getErr := s.GetPayment(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, &StateConflictError{Entity: "payment", Current: string(current.Status)}
}

// MarkPaymentFailed closes a payment as failed. Terminal: an ambiguous
// on-chain failure is resolved by a human opening a fresh payment, never by
// resubmitting this one.
func (s *Store) MarkPaymentFailed(ctx context.Context, id uuid.UUID, reason string) (*Payment, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, &ValidationError{Field: "reason", Reason: "must not be empty"}
	}

	var p Payment
	err := s.pool.QueryRow(ctx, `
		UPDATE payments
		SET status = 'failed', failure_reason = $2, failed_at = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING `+paymentColumns+`
	`, id, reason, s.clock.Now().UTC()).Scan(
		&p.ID, &p.IssueID, &p.RecipientID, &p.SubmissionID, &p.Amount, &p.Currency,
		&p.Role, &p.Status, &p.TransactionHash, &p.BlockNumber,
		&p.PaidAt, &p.FailedAt, &p.FailureReason, &p.CreatedAt,
	)
	if err == nil {
		return &p, nil
	}
	if !isNoRows(err) {
		return nil, fmt.Errorf("failed to mark payment failed: %w", err)
	}

	current, getErr := s.GetPayment(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, &StateConflictError{Entity: "payment", Current: string(current.Status)}
}
