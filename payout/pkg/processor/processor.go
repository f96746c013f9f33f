// Package processor drains an issue's payout queue, one transfer at a time.
//
// The loop is strictly sequential on purpose: a transfer is broadcast,
// confirmed on chain, and recorded on the ledger before the next payment is
// even looked at. The queue head is re-queried from the database at every
// step, so a payment settled out of band (or a freshly accepted submission)
// is picked up without any in-memory cursor to go stale.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/doublescoop/punto/ledger/pkg/store"
	"github.com/doublescoop/punto/payout/pkg/usdc"
)

// ErrNoPending means the issue's payout queue is empty.
var ErrNoPending = errors.New("no pending payments")

// AmbiguityError means a transfer was broadcast but its fate is unknown: the
// confirmation wait failed without a definitive revert. The payment is left
// pending and the signature is surfaced so an operator can inspect the chain
// before anything else happens on this queue.
type AmbiguityError struct {
	PaymentID uuid.UUID
	Signature string
	Err       error
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("payment %s broadcast as %s but not confirmed: %v", e.PaymentID, e.Signature, e.Err)
}

func (e *AmbiguityError) Unwrap() error { return e.Err }

// Ledger is the slice of the payment store the processor drives.
type Ledger interface {
	ListPendingPayments(ctx context.Context, issueID uuid.UUID) ([]store.Payment, error)
	MarkPaymentPaid(ctx context.Context, id uuid.UUID, txHash string, blockNumber int64) (*store.Payment, error)
}

// Wallet sends one transfer and watches it. usdc.Client is the production
// implementation.
type Wallet interface {
	Submit(ctx context.Context, recipient string, baseUnits uint64) (string, error)
	AwaitConfirmation(ctx context.Context, signature string) (*usdc.Receipt, error)
}

type Config struct {
	Logger  *slog.Logger
	Clock   clockwork.Clock
	Ledger  Ledger
	Wallet  Wallet
	IssueID uuid.UUID
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Ledger == nil {
		return errors.New("ledger is required")
	}
	if cfg.Wallet == nil {
		return errors.New("wallet is required")
	}
	if cfg.IssueID == uuid.Nil {
		return errors.New("issue id is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

type Processor struct {
	log    *slog.Logger
	clock  clockwork.Clock
	ledger Ledger
	wallet Wallet
	issue  uuid.UUID
}

func New(cfg Config) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Processor{
		log:    cfg.Logger,
		clock:  cfg.Clock,
		ledger: cfg.Ledger,
		wallet: cfg.Wallet,
		issue:  cfg.IssueID,
	}, nil
}

// Step settles the oldest pending payment: submit, confirm, record. Returns
// the settled payment, ErrNoPending on an empty queue, a usdc.RejectionError
// when the chain refused the transfer (payment stays pending), or an
// AmbiguityError when the transfer's fate is unknown.
//
// Cancellation is honored up to the moment of broadcast. Once the transfer
// is on the wire the step runs to a verdict; aborting mid-wait is what
// creates ambiguous money movement.
func (p *Processor) Step(ctx context.Context) (*store.Payment, error) {
	pending, err := p.ledger.ListPendingPayments(ctx, p.issue)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending payments: %w", err)
	}
	if len(pending) == 0 {
		return nil, ErrNoPending
	}
	head := pending[0]

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	started := p.clock.Now()
	p.log.Info("paying",
		"payment_id", head.ID,
		"recipient", head.RecipientWallet,
		"amount", head.Amount,
		"role", head.Role,
	)

	sig, err := p.wallet.Submit(ctx, head.RecipientWallet, usdc.BaseUnits(head.Amount))
	if err != nil {
		if usdc.IsRejection(err) {
			transfersRejected.Inc()
			p.log.Error("transfer rejected before broadcast; payment left pending",
				"payment_id", head.ID,
				"error", err,
			)
		}
		return nil, err
	}
	transfersSubmitted.Inc()

	// Once broadcast, the step runs to a verdict: neither the confirmation
	// wait nor the paid-record write may be cut short by cancellation, or a
	// confirmed transfer would be left against a pending row.
	detached := context.WithoutCancel(ctx)

	receipt, err := p.wallet.AwaitConfirmation(detached, sig)
	if err != nil {
		if usdc.IsRejection(err) {
			transfersRejected.Inc()
			p.log.Error("transfer reverted on chain; payment left pending for operator review",
				"payment_id", head.ID,
				"signature", sig,
				"error", err,
			)
			return nil, err
		}
		return nil, &AmbiguityError{PaymentID: head.ID, Signature: sig, Err: err}
	}

	paid, err := p.ledger.MarkPaymentPaid(detached, head.ID, receipt.Signature, int64(receipt.Slot))
	if err != nil {
		// The transfer confirmed but the ledger write failed. Do not keep
		// going; a second run would pay this row twice.
		return nil, &AmbiguityError{PaymentID: head.ID, Signature: sig, Err: err}
	}
	transfersConfirmed.Inc()
	stepDuration.Observe(p.clock.Since(started).Seconds())

	p.log.Info("payment settled",
		"payment_id", paid.ID,
		"signature", receipt.Signature,
		"slot", receipt.Slot,
	)
	return paid, nil
}

// Run steps through the queue until it is empty or a step fails. Returns how
// many payments were settled.
func (p *Processor) Run(ctx context.Context) (int, error) {
	settled := 0
	for {
		if _, err := p.Step(ctx); err != nil {
			if errors.Is(err, ErrNoPending) {
				p.log.Info("payout queue drained", "issue_id", p.issue, "settled", settled)
				return settled, nil
			}
			return settled, err
		}
		settled++
	}
}
