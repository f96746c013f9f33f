package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/doublescoop/punto/ledger/pkg/store"
)

// ReconcilePayments opens payments for accepted submissions that have none.
// This repairs the gap left when a review acceptance committed but the
// payment insert failed afterwards. The operation is idempotent: a
// concurrent or earlier repair is treated as already done.
func ReconcilePayments(ctx context.Context, log *slog.Logger, st *store.Store, dryRun bool) (int, error) {
	orphans, err := st.ListAcceptedWithoutPayment(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list accepted submissions without payments: %w", err)
	}

	if len(orphans) == 0 {
		log.Info("no accepted submissions are missing payments")
		return 0, nil
	}

	opened := 0
	for _, sub := range orphans {
		if dryRun {
			log.Info("[DRY RUN] would open payment",
				"submission_id", sub.ID,
				"author_id", sub.AuthorID,
				"amount", sub.BountyAmount,
			)
			continue
		}

		payment, err := st.CreatePaymentForSubmission(ctx, &sub)
		if err != nil {
			if errors.Is(err, store.ErrDuplicatePayment) {
				log.Info("payment already exists, skipping", "submission_id", sub.ID)
				continue
			}
			return opened, fmt.Errorf("failed to open payment for submission %s: %w", sub.ID, err)
		}

		log.Info("opened payment",
			"payment_id", payment.ID,
			"submission_id", sub.ID,
			"amount", payment.Amount,
		)
		opened++
	}

	if dryRun {
		log.Info("dry run complete", "missing", len(orphans))
	} else {
		log.Info("reconciliation complete", "opened", opened)
	}
	return opened, nil
}
