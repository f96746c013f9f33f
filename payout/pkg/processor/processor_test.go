package processor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doublescoop/punto/ledger/pkg/store"
	"github.com/doublescoop/punto/payout/pkg/usdc"
	puntotesting "github.com/doublescoop/punto/utils/pkg/testing"
)

// fakeLedger keeps pending payments in order and records settlements, so the
// tests can assert the processor never advances past an unsettled head.
type fakeLedger struct {
	pending []store.Payment
	paid    []store.Payment
	markErr error
}

func (l *fakeLedger) ListPendingPayments(_ context.Context, _ uuid.UUID) ([]store.Payment, error) {
	out := make([]store.Payment, len(l.pending))
	copy(out, l.pending)
	return out, nil
}

func (l *fakeLedger) MarkPaymentPaid(ctx context.Context, id uuid.UUID, txHash string, blockNumber int64) (*store.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.markErr != nil {
		return nil, l.markErr
	}
	for i, p := range l.pending {
		if p.ID == id {
			p.Status = store.PaymentPaid
			p.TransactionHash = &txHash
			p.BlockNumber = &blockNumber
			l.paid = append(l.paid, p)
			l.pending = append(l.pending[:i], l.pending[i+1:]...)
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

type fakeWallet struct {
	submitErr        error
	confirmErr       error
	cancelDuringWait context.CancelFunc // fired while "confirming", if set
	submitted        []string           // recipients in broadcast order
	amounts          []uint64
	nextSlot         uint64
}

func (w *fakeWallet) Submit(_ context.Context, recipient string, baseUnits uint64) (string, error) {
	if w.submitErr != nil {
		return "", w.submitErr
	}
	w.submitted = append(w.submitted, recipient)
	w.amounts = append(w.amounts, baseUnits)
	return fmt.Sprintf("sig-%d", len(w.submitted)), nil
}

func (w *fakeWallet) AwaitConfirmation(_ context.Context, signature string) (*usdc.Receipt, error) {
	if w.cancelDuringWait != nil {
		w.cancelDuringWait()
	}
	if w.confirmErr != nil {
		return nil, w.confirmErr
	}
	w.nextSlot++
	return &usdc.Receipt{Signature: signature, Slot: w.nextSlot}, nil
}

func pendingPayment(wallet string, amount int64) store.Payment {
	return store.Payment{
		ID:              uuid.New(),
		Status:          store.PaymentPending,
		Amount:          amount,
		RecipientWallet: wallet,
	}
}

func newTestProcessor(t *testing.T, ledger Ledger, wallet Wallet) *Processor {
	t.Helper()
	p, err := New(Config{
		Logger:  puntotesting.NewLogger(),
		Ledger:  ledger,
		Wallet:  wallet,
		IssueID: uuid.New(),
	})
	require.NoError(t, err)
	return p
}

func TestPunto_Processor_EmptyQueue(t *testing.T) {
	t.Parallel()

	p := newTestProcessor(t, &fakeLedger{}, &fakeWallet{})

	_, err := p.Step(context.Background())
	assert.ErrorIs(t, err, ErrNoPending)
}

func TestPunto_Processor_StepSettlesHead(t *testing.T) {
	t.Parallel()

	ledger := &fakeLedger{pending: []store.Payment{
		pendingPayment("walletA", 5000),
		pendingPayment("walletB", 7500),
	}}
	wallet := &fakeWallet{}
	p := newTestProcessor(t, ledger, wallet)

	paid, err := p.Step(context.Background())
	require.NoError(t, err)

	assert.Equal(t, store.PaymentPaid, paid.Status)
	require.NotNil(t, paid.TransactionHash)
	assert.Equal(t, "sig-1", *paid.TransactionHash)
	assert.Equal(t, []string{"walletA"}, wallet.submitted)
	assert.Equal(t, []uint64{50_000_000}, wallet.amounts)
	assert.Len(t, ledger.pending, 1)
}

func TestPunto_Processor_RunDrainsInOrder(t *testing.T) {
	t.Parallel()

	ledger := &fakeLedger{pending: []store.Payment{
		pendingPayment("walletA", 5000),
		pendingPayment("walletB", 5000),
		pendingPayment("walletC", 2500),
	}}
	wallet := &fakeWallet{}
	p := newTestProcessor(t, ledger, wallet)

	settled, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, settled)
	assert.Equal(t, []string{"walletA", "walletB", "walletC"}, wallet.submitted)
	assert.Empty(t, ledger.pending)
	assert.Len(t, ledger.paid, 3)
}

func TestPunto_Processor_RejectionLeavesPaymentPending(t *testing.T) {
	t.Parallel()

	ledger := &fakeLedger{pending: []store.Payment{pendingPayment("walletA", 5000)}}
	wallet := &fakeWallet{submitErr: &usdc.RejectionError{Reason: "signer declined"}}
	p := newTestProcessor(t, ledger, wallet)

	settled, err := p.Run(context.Background())
	assert.Equal(t, 0, settled)
	assert.True(t, usdc.IsRejection(err))

	// The payment is untouched; the operator decides what happens next.
	assert.Len(t, ledger.pending, 1)
	assert.Equal(t, store.PaymentPending, ledger.pending[0].Status)
}

func TestPunto_Processor_RevertStopsTheRun(t *testing.T) {
	t.Parallel()

	ledger := &fakeLedger{pending: []store.Payment{
		pendingPayment("walletA", 5000),
		pendingPayment("walletB", 5000),
	}}
	wallet := &fakeWallet{confirmErr: &usdc.RejectionError{Reason: "transaction reverted: insufficient funds"}}
	p := newTestProcessor(t, ledger, wallet)

	settled, err := p.Run(context.Background())
	assert.Equal(t, 0, settled)
	assert.True(t, usdc.IsRejection(err))
	assert.Len(t, ledger.pending, 2)
}

func TestPunto_Processor_AmbiguousConfirmationSurfacesSignature(t *testing.T) {
	t.Parallel()

	ledger := &fakeLedger{pending: []store.Payment{pendingPayment("walletA", 5000)}}
	wallet := &fakeWallet{confirmErr: errors.New("transfer sig-1 not confirmed within 90s")}
	p := newTestProcessor(t, ledger, wallet)

	_, err := p.Step(context.Background())

	var amb *AmbiguityError
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, "sig-1", amb.Signature)
	assert.Equal(t, ledger.pending[0].ID, amb.PaymentID)
	// No corrective action: still pending, nothing marked failed.
	assert.Len(t, ledger.pending, 1)
}

func TestPunto_Processor_LedgerWriteFailureIsAmbiguous(t *testing.T) {
	t.Parallel()

	// The transfer confirmed but the paid record could not be written. The
	// run must stop: advancing would pay the same row again next session.
	ledger := &fakeLedger{
		pending: []store.Payment{pendingPayment("walletA", 5000)},
		markErr: errors.New("connection refused"),
	}
	p := newTestProcessor(t, ledger, &fakeWallet{})

	settled, err := p.Run(context.Background())
	assert.Equal(t, 0, settled)

	var amb *AmbiguityError
	assert.ErrorAs(t, err, &amb)
}

func TestPunto_Processor_CancelledBeforeBroadcast(t *testing.T) {
	t.Parallel()

	ledger := &fakeLedger{pending: []store.Payment{pendingPayment("walletA", 5000)}}
	wallet := &fakeWallet{}
	p := newTestProcessor(t, ledger, wallet)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Step(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, wallet.submitted)
	assert.Len(t, ledger.pending, 1)
}

func TestPunto_Processor_InterruptDuringWaitStillRecordsPayment(t *testing.T) {
	t.Parallel()

	// An operator interrupt lands while the transfer is confirming. The
	// broadcast already happened, so the step must still write the paid
	// record; abandoning it would leave a confirmed transfer against a
	// pending row.
	ledger := &fakeLedger{pending: []store.Payment{pendingPayment("walletA", 5000)}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wallet := &fakeWallet{cancelDuringWait: cancel}
	p := newTestProcessor(t, ledger, wallet)

	paid, err := p.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.PaymentPaid, paid.Status)
	assert.Len(t, ledger.paid, 1)
	assert.Empty(t, ledger.pending)
}

func TestPunto_Processor_ExternalSettlementSkipsRow(t *testing.T) {
	t.Parallel()

	// A payment settled out of band disappears from ListPending between
	// steps; the processor just sees the new head.
	first := pendingPayment("walletA", 5000)
	second := pendingPayment("walletB", 2500)
	ledger := &fakeLedger{pending: []store.Payment{first, second}}
	wallet := &fakeWallet{}
	p := newTestProcessor(t, ledger, wallet)

	// Out-of-band: an operator records the first payout by hand.
	_, err := ledger.MarkPaymentPaid(context.Background(), first.ID, "0xabc", 100)
	require.NoError(t, err)

	paid, err := p.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, second.ID, paid.ID)
	assert.Equal(t, []string{"walletB"}, wallet.submitted)
}

func TestPunto_Processor_ConfigValidation(t *testing.T) {
	t.Parallel()

	log := puntotesting.NewLogger()
	ledger := &fakeLedger{}
	wallet := &fakeWallet{}

	_, err := New(Config{Ledger: ledger, Wallet: wallet, IssueID: uuid.New()})
	assert.Error(t, err)

	_, err = New(Config{Logger: log, Wallet: wallet, IssueID: uuid.New()})
	assert.Error(t, err)

	_, err = New(Config{Logger: log, Ledger: ledger, IssueID: uuid.New()})
	assert.Error(t, err)

	_, err = New(Config{Logger: log, Ledger: ledger, Wallet: wallet})
	assert.Error(t, err)

	p, err := New(Config{Logger: log, Ledger: ledger, Wallet: wallet, IssueID: uuid.New()})
	require.NoError(t, err)
	assert.NotNil(t, p)
}
