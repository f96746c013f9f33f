package store

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus is the lifecycle state of a submission. Transitions move
// monotonically toward a terminal state; accepted and rejected are final.
type SubmissionStatus string

const (
	SubmissionSubmitted   SubmissionStatus = "submitted"
	SubmissionUnderReview SubmissionStatus = "under_review"
	SubmissionAccepted    SubmissionStatus = "accepted"
	SubmissionRejected    SubmissionStatus = "rejected"
)

// Terminal reports whether the status admits no further transitions.
func (s SubmissionStatus) Terminal() bool {
	return s == SubmissionAccepted || s == SubmissionRejected
}

// PaymentStatus is the settlement state of a payment. failed is terminal on
// purpose: an ambiguous on-chain failure must not be silently resubmitted.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// PaymentRole records what a payment compensates.
type PaymentRole string

const (
	RoleAuthor  PaymentRole = "author"
	RoleEditor  PaymentRole = "editor"
	RoleFounder PaymentRole = "founder"
)

type IssueStatus string

const (
	IssueOpen      IssueStatus = "open"
	IssuePublished IssueStatus = "published"
	IssueArchived  IssueStatus = "archived"
)

// Issue is one edition of a zine with its own treasury wallet.
// CurrentBalance is the last chain-observed USDC balance in cents; derived
// funding figures (shortfall, publish gate) are never stored.
type Issue struct {
	ID              uuid.UUID   `json:"id"`
	Title           string      `json:"title"`
	Slug            string      `json:"slug"`
	TreasuryAddress string      `json:"treasury_address"`
	CurrentBalance  int64       `json:"current_balance"`
	Deadline        *time.Time  `json:"deadline,omitempty"`
	Status          IssueStatus `json:"status"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Topic is a commissioned slot group within an issue. BountyAmount is in
// integer cents; submissions snapshot it at creation so later topic edits
// never reprice work already in flight.
type Topic struct {
	ID           uuid.UUID `json:"id"`
	IssueID      uuid.UUID `json:"issue_id"`
	Title        string    `json:"title"`
	Brief        string    `json:"brief,omitempty"`
	Position     int       `json:"position"`
	BountyAmount int64     `json:"bounty_amount"`
	SlotsNeeded  int       `json:"slots_needed"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// Contributor maps a wallet address to a person.
type Contributor struct {
	ID            uuid.UUID `json:"id"`
	DisplayName   string    `json:"display_name"`
	WalletAddress string    `json:"wallet_address"`
	Role          string    `json:"role,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Submission is a contributor's piece against a topic.
type Submission struct {
	ID           uuid.UUID        `json:"id"`
	TopicID      uuid.UUID        `json:"topic_id"`
	IssueID      uuid.UUID        `json:"issue_id"`
	AuthorID     uuid.UUID        `json:"author_id"`
	Content      string           `json:"content"`
	Status       SubmissionStatus `json:"status"`
	BountyAmount int64            `json:"bounty_amount"`
	SubmittedAt  time.Time        `json:"submitted_at"`
	ReviewedBy   *uuid.UUID       `json:"reviewed_by,omitempty"`
	AcceptedAt   *time.Time       `json:"accepted_at,omitempty"`
}

// Payment is a ledger row for money owed or paid. SubmissionID is nil for
// stipends. status = paid implies TransactionHash and BlockNumber are set.
type Payment struct {
	ID              uuid.UUID     `json:"id"`
	IssueID         uuid.UUID     `json:"issue_id"`
	RecipientID     uuid.UUID     `json:"recipient_id"`
	SubmissionID    *uuid.UUID    `json:"submission_id,omitempty"`
	Amount          int64         `json:"amount"`
	Currency        string        `json:"currency"`
	Role            PaymentRole   `json:"role"`
	Status          PaymentStatus `json:"status"`
	TransactionHash *string       `json:"transaction_hash,omitempty"`
	BlockNumber     *int64        `json:"block_number,omitempty"`
	PaidAt          *time.Time    `json:"paid_at,omitempty"`
	FailedAt        *time.Time    `json:"failed_at,omitempty"`
	FailureReason   *string       `json:"failure_reason,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`

	// RecipientWallet is joined from contributors on list reads so the
	// payout session does not need a second lookup per payment.
	RecipientWallet string `json:"recipient_wallet,omitempty"`
}

// TopicFill is the per-topic slot accounting used by the funding gate.
type TopicFill struct {
	TopicID       uuid.UUID
	BountyAmount  int64
	SlotsNeeded   int
	AcceptedCount int
}

// Filled reports whether every slot is held by an accepted submission.
func (f TopicFill) Filled() bool {
	return f.AcceptedCount >= f.SlotsNeeded
}
