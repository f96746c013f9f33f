// Package review is the submission state machine. It decides which status
// transitions are legal, performs them through the store's guarded
// compare-and-set, and opens the payment owed when a submission is accepted.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/doublescoop/punto/ledger/pkg/store"
)

// Decision is a reviewer's verdict on a submission.
type Decision string

const (
	DecisionAccept Decision = "accepted"
	DecisionReject Decision = "rejected"
	// DecisionDefer parks a submission under review without finalizing it.
	DecisionDefer Decision = "under_review"
	// DecisionReopen returns a deferred submission to the open pile.
	DecisionReopen Decision = "submitted"
)

// SubmissionStore is the slice of the entity store the state machine uses.
type SubmissionStore interface {
	TransitionSubmission(ctx context.Context, id uuid.UUID, from []store.SubmissionStatus, to store.SubmissionStatus, reviewerID uuid.UUID) (*store.Submission, error)
}

// PaymentCreator opens the pending payment owed for an accepted submission.
type PaymentCreator interface {
	CreatePaymentForSubmission(ctx context.Context, sub *store.Submission) (*store.Payment, error)
}

type Config struct {
	Logger      *slog.Logger
	Submissions SubmissionStore
	Payments    PaymentCreator
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Submissions == nil {
		return errors.New("submission store is required")
	}
	if cfg.Payments == nil {
		return errors.New("payment creator is required")
	}
	return nil
}

type Engine struct {
	log         *slog.Logger
	submissions SubmissionStore
	payments    PaymentCreator
}

func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		log:         cfg.Logger,
		submissions: cfg.Submissions,
		payments:    cfg.Payments,
	}, nil
}

// transitions maps each decision to the statuses it may be applied from.
// Terminal statuses appear in no entry, so any decision against a finalized
// submission fails the compare-and-set and surfaces as a state conflict.
var transitions = map[Decision][]store.SubmissionStatus{
	DecisionAccept: {store.SubmissionSubmitted, store.SubmissionUnderReview},
	DecisionReject: {store.SubmissionSubmitted, store.SubmissionUnderReview},
	DecisionDefer:  {store.SubmissionSubmitted},
	DecisionReopen: {store.SubmissionUnderReview},
}

// Review applies a reviewer's decision to a submission. The returned payment
// is the one opened by this call's acceptance, nil otherwise.
//
// Acceptance triggers payment creation as a best-effort side effect: if the
// ledger write fails after the acceptance has been persisted, the decision
// is kept and the gap is logged for the reconciliation job. A review must
// not be lost over bookkeeping.
func (e *Engine) Review(ctx context.Context, submissionID uuid.UUID, decision Decision, reviewerID uuid.UUID) (*store.Submission, *store.Payment, error) {
	from, ok := transitions[decision]
	if !ok {
		return nil, nil, &store.ValidationError{Field: "decision", Reason: fmt.Sprintf("unknown decision %q", decision)}
	}
	if reviewerID == uuid.Nil {
		return nil, nil, &store.ValidationError{Field: "reviewer_id", Reason: "is required"}
	}

	sub, err := e.submissions.TransitionSubmission(ctx, submissionID, from, store.SubmissionStatus(decision), reviewerID)
	if err != nil {
		return nil, nil, err
	}

	e.log.Info("submission reviewed",
		"submission_id", sub.ID,
		"decision", decision,
		"reviewer_id", reviewerID,
	)

	if sub.Status != store.SubmissionAccepted {
		return sub, nil, nil
	}

	payment, err := e.payments.CreatePaymentForSubmission(ctx, sub)
	if err != nil {
		if errors.Is(err, store.ErrDuplicatePayment) {
			// A payment already exists, likely from a prior reconciliation
			// run. The 1:1 invariant holds; nothing to repair.
			e.log.Warn("payment already exists for accepted submission",
				"submission_id", sub.ID,
			)
			return sub, nil, nil
		}
		// The acceptance stands. Flag the gap loudly; the reconcile-payments
		// admin job recreates missing payment rows from accepted submissions.
		e.log.Error("payment creation failed after acceptance; needs reconciliation",
			"submission_id", sub.ID,
			"issue_id", sub.IssueID,
			"author_id", sub.AuthorID,
			"error", err,
		)
		return sub, nil, nil
	}

	e.log.Info("payment opened for accepted submission",
		"submission_id", sub.ID,
		"payment_id", payment.ID,
		"amount", payment.Amount,
	)
	return sub, payment, nil
}
