// Command payout drains an issue's payment queue by sending USDC transfers
// from the treasury wallet, strictly one at a time. It is run by an operator
// after an issue's funding check passes, and it stops dead on anything
// ambiguous so no transfer is ever sent twice.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/doublescoop/punto/api/config"
	"github.com/doublescoop/punto/ledger/pkg/store"
	"github.com/doublescoop/punto/payout/pkg/processor"
	"github.com/doublescoop/punto/payout/pkg/usdc"
	"github.com/doublescoop/punto/utils/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "Enable verbose (debug) logging")
	issueFlag := flag.String("issue-id", "", "UUID of the issue whose pending payments should be settled (required)")
	keypairFlag := flag.String("keypair", "", "Path to the treasury authority keypair, solana-keygen format (or set PAYOUT_KEYPAIR env var)")
	rpcURLFlag := flag.String("rpc-url", solanarpc.MainNetBeta_RPC, "Solana RPC endpoint (or set SOLANA_RPC_URL env var)")
	mintFlag := flag.String("usdc-mint", usdc.MainnetMint, "USDC mint address (or set USDC_MINT env var)")
	confirmTimeoutFlag := flag.Duration("confirm-timeout", 90*time.Second, "How long to wait for each transfer to confirm")
	onceFlag := flag.Bool("once", false, "Settle at most one payment and exit")
	flag.Parse()

	_ = godotenv.Load()

	if env := os.Getenv("PAYOUT_KEYPAIR"); env != "" && *keypairFlag == "" {
		*keypairFlag = env
	}
	if env := os.Getenv("SOLANA_RPC_URL"); env != "" {
		*rpcURLFlag = env
	}
	if env := os.Getenv("USDC_MINT"); env != "" {
		*mintFlag = env
	}

	log := logger.New(*verboseFlag)

	if *issueFlag == "" {
		return errors.New("--issue-id is required")
	}
	issueID, err := uuid.Parse(*issueFlag)
	if err != nil {
		return fmt.Errorf("invalid --issue-id %q: %w", *issueFlag, err)
	}
	if *keypairFlag == "" {
		return errors.New("--keypair is required (or PAYOUT_KEYPAIR)")
	}

	signer, err := solana.PrivateKeyFromSolanaKeygenFile(*keypairFlag)
	if err != nil {
		return fmt.Errorf("failed to load treasury keypair: %w", err)
	}
	mint, err := solana.PublicKeyFromBase58(*mintFlag)
	if err != nil {
		return fmt.Errorf("invalid USDC mint %q: %w", *mintFlag, err)
	}

	if err := config.LoadPostgres(); err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer config.ClosePostgres()

	st, err := store.New(store.Config{Logger: log, Pool: config.PgPool})
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	wallet, err := usdc.New(usdc.Config{
		Logger:         log,
		RPC:            solanarpc.New(*rpcURLFlag),
		Signer:         signer,
		Mint:           mint,
		ConfirmTimeout: *confirmTimeoutFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create usdc wallet: %w", err)
	}

	proc, err := processor.New(processor.Config{
		Logger:  log,
		Ledger:  st,
		Wallet:  wallet,
		IssueID: issueID,
	})
	if err != nil {
		return fmt.Errorf("failed to create payout processor: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("starting payout run",
		"issue_id", issueID,
		"treasury", signer.PublicKey(),
		"mint", mint,
		"rpc_url", *rpcURLFlag,
	)

	if *onceFlag {
		paid, err := proc.Step(ctx)
		if err != nil {
			if errors.Is(err, processor.ErrNoPending) {
				log.Info("payout queue is empty", "issue_id", issueID)
				return nil
			}
			return describeFailure(err)
		}
		sig := ""
		if paid.TransactionHash != nil {
			sig = *paid.TransactionHash
		}
		log.Info("settled one payment", "payment_id", paid.ID, "signature", sig)
		return nil
	}

	settled, err := proc.Run(ctx)
	if err != nil {
		log.Info("payout run stopped early", "settled", settled)
		return describeFailure(err)
	}
	log.Info("payout run complete", "settled", settled)
	return nil
}

// describeFailure turns processor errors into operator guidance. An ambiguous
// transfer in particular must be resolved by hand before the next run.
func describeFailure(err error) error {
	var amb *processor.AmbiguityError
	if errors.As(err, &amb) {
		return fmt.Errorf(
			"payment %s is in an ambiguous state: transaction %s was broadcast but its fate is unknown (%v). "+
				"Inspect the signature on a Solana explorer; if it landed, record it with POST /api/payments/%s/paid, "+
				"if it did not, the payment is still pending and the next run will retry it",
			amb.PaymentID, amb.Signature, amb.Err, amb.PaymentID,
		)
	}
	if usdc.IsRejection(err) {
		return fmt.Errorf("transfer rejected by the chain, payment left pending: %w", err)
	}
	return err
}
