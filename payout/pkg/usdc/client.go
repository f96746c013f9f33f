// Package usdc sends SPL token transfers on Solana and waits for them to
// confirm. It is the only package that talks to the chain for payouts; the
// processor above it sees signatures and receipts, never transactions.
package usdc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/token"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/jonboulle/clockwork"

	"github.com/doublescoop/punto/utils/pkg/retry"
)

// MainnetMint is the canonical USDC mint on Solana mainnet-beta.
const MainnetMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

// RejectionError means the chain definitively refused the transfer: the
// transaction reverted or preflight rejected it. The payment should be
// marked failed, not retried.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("transfer rejected: %s", e.Reason)
}

// IsRejection reports whether err is a definitive on-chain refusal.
func IsRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}

// Receipt is the confirmation record for a settled transfer.
type Receipt struct {
	Signature string
	Slot      uint64
}

// RPC wraps the solana-go client methods the wallet uses.
type RPC interface {
	GetLatestBlockhash(ctx context.Context, commitment solanarpc.CommitmentType) (*solanarpc.GetLatestBlockhashResult, error)
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*solanarpc.GetAccountInfoResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts solanarpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*solanarpc.GetSignatureStatusesResult, error)
}

type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	RPC    RPC
	// Signer holds the treasury authority key. Its associated token account
	// is the source of every transfer.
	Signer solana.PrivateKey
	Mint   solana.PublicKey

	// ConfirmTimeout bounds how long AwaitConfirmation polls before giving
	// up with an ambiguity error. PollInterval is the gap between polls.
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.RPC == nil {
		return errors.New("rpc client is required")
	}
	if cfg.Signer == nil {
		return errors.New("signer key is required")
	}
	if cfg.Mint.IsZero() {
		return errors.New("mint is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 90 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return nil
}

type Client struct {
	log   *slog.Logger
	cfg   Config
	owner solana.PublicKey
}

func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		log:   cfg.Logger,
		cfg:   cfg,
		owner: cfg.Signer.PublicKey(),
	}, nil
}

// Submit broadcasts a USDC transfer of baseUnits to the recipient wallet and
// returns the transaction signature. It does NOT wait for confirmation; the
// caller decides how long to watch the signature.
//
// The recipient's associated token account is created in the same
// transaction when it does not exist yet, paid for by the treasury key.
func (c *Client) Submit(ctx context.Context, recipient string, baseUnits uint64) (string, error) {
	if baseUnits == 0 {
		return "", &RejectionError{Reason: "zero amount"}
	}

	dest, err := solana.PublicKeyFromBase58(recipient)
	if err != nil {
		return "", &RejectionError{Reason: fmt.Sprintf("invalid recipient wallet %q: %v", recipient, err)}
	}

	sourceATA, _, err := solana.FindAssociatedTokenAddress(c.owner, c.cfg.Mint)
	if err != nil {
		return "", fmt.Errorf("failed to derive source token account: %w", err)
	}
	destATA, _, err := solana.FindAssociatedTokenAddress(dest, c.cfg.Mint)
	if err != nil {
		return "", fmt.Errorf("failed to derive recipient token account: %w", err)
	}

	instructions := []solana.Instruction{}

	needsATA, err := c.missingAccount(ctx, destATA)
	if err != nil {
		return "", err
	}
	if needsATA {
		c.log.Info("recipient token account missing; creating it in the transfer",
			"recipient", recipient,
		)
		createInst, err := associatedtokenaccount.NewCreateInstruction(c.owner, dest, c.cfg.Mint).ValidateAndBuild()
		if err != nil {
			return "", fmt.Errorf("failed to build token account creation: %w", err)
		}
		instructions = append(instructions, createInst)
	}

	transferInst, err := token.NewTransferCheckedInstruction(
		baseUnits,
		Decimals,
		sourceATA,
		c.cfg.Mint,
		destATA,
		c.owner,
		nil,
	).ValidateAndBuild()
	if err != nil {
		return "", fmt.Errorf("failed to build transfer instruction: %w", err)
	}
	instructions = append(instructions, transferInst)

	// The blockhash fetch is a pure read, safe to retry freely.
	var blockhash *solanarpc.GetLatestBlockhashResult
	err = retry.Do(ctx, retry.DefaultConfig(), func() error {
		var err error
		blockhash, err = c.cfg.RPC.GetLatestBlockhash(ctx, solanarpc.CommitmentFinalized)
		if err != nil {
			return fmt.Errorf("failed to fetch blockhash: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	tx, err := solana.NewTransaction(
		instructions,
		blockhash.Value.Blockhash,
		solana.TransactionPayer(c.owner),
	)
	if err != nil {
		return "", fmt.Errorf("failed to build transaction: %w", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(c.owner) {
			return &c.cfg.Signer
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}
	sig := tx.Signatures[0]

	// The transaction is built and signed exactly once. A transport error on
	// send is ambiguous (the node may already hold the transaction), so every
	// retry rebroadcasts the identical bytes: the cluster dedupes on the
	// signature and the transfer cannot execute twice.
	err = retry.Do(ctx, retry.DefaultConfig(), func() error {
		if _, err := c.cfg.RPC.SendTransactionWithOpts(ctx, tx, solanarpc.TransactionOpts{
			PreflightCommitment: solanarpc.CommitmentConfirmed,
		}); err != nil {
			return fmt.Errorf("failed to send transaction %s: %w", sig, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	c.log.Info("transfer submitted",
		"signature", sig.String(),
		"recipient", recipient,
		"base_units", baseUnits,
	)
	return sig.String(), nil
}

// AwaitConfirmation polls a signature until the cluster confirms it, the
// transaction reverts, or the timeout elapses. A revert comes back as
// RejectionError; a timeout is an ordinary error because the transfer may
// still land — the caller must treat the payment as ambiguous, not failed.
func (c *Client) AwaitConfirmation(ctx context.Context, signature string) (*Receipt, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signature %q: %w", signature, err)
	}

	deadline := c.cfg.Clock.Now().Add(c.cfg.ConfirmTimeout)
	for {
		statuses, err := c.cfg.RPC.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			c.log.Warn("signature status poll failed", "signature", signature, "error", err)
		} else if len(statuses.Value) > 0 && statuses.Value[0] != nil {
			st := statuses.Value[0]
			if st.Err != nil {
				return nil, &RejectionError{Reason: fmt.Sprintf("transaction reverted: %v", st.Err)}
			}
			switch st.ConfirmationStatus {
			case solanarpc.ConfirmationStatusConfirmed, solanarpc.ConfirmationStatusFinalized:
				return &Receipt{Signature: signature, Slot: st.Slot}, nil
			}
		}

		if c.cfg.Clock.Now().After(deadline) {
			return nil, fmt.Errorf("transfer %s not confirmed within %s", signature, c.cfg.ConfirmTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.cfg.Clock.After(c.cfg.PollInterval):
		}
	}
}

// missingAccount reports whether the account does not exist on chain.
func (c *Client) missingAccount(ctx context.Context, account solana.PublicKey) (bool, error) {
	info, err := c.cfg.RPC.GetAccountInfo(ctx, account)
	if err != nil {
		if errors.Is(err, solanarpc.ErrNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("failed to look up account %s: %w", account, err)
	}
	return info == nil || info.Value == nil, nil
}
