package handlers

import (
	"net/http"

	"github.com/doublescoop/punto/api/metrics"
)

func (a *API) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "paymentID")
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	payment, err := a.store.GetPayment(r.Context(), id)
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	writeJSON(a.log, w, http.StatusOK, payment)
}

// handleListPendingPayments returns an issue's payout queue oldest first,
// each row carrying the recipient's wallet address.
func (a *API) handleListPendingPayments(w http.ResponseWriter, r *http.Request) {
	issueID, err := pathUUID(r, "issueID")
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	payments, err := a.store.ListPendingPayments(r.Context(), issueID)
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	writeJSON(a.log, w, http.StatusOK, payments)
}

type markPaidRequest struct {
	TransactionHash string `json:"transaction_hash"`
	BlockNumber     int64  `json:"block_number"`
}

// handleMarkPaymentPaid records an on-chain settlement. Replaying the call
// is a 409; the stored receipt is never overwritten.
func (a *API) handleMarkPaymentPaid(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "paymentID")
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	var req markPaidRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.log, w, err)
		return
	}

	payment, err := a.store.MarkPaymentPaid(r.Context(), id, req.TransactionHash, req.BlockNumber)
	if err != nil {
		writeError(a.log, w, err)
		return
	}
	metrics.PayoutsRecordedTotal.WithLabelValues("paid").Inc()

	writeJSON(a.log, w, http.StatusOK, payment)
}

type markFailedRequest struct {
	Reason string `json:"reason"`
}

func (a *API) handleMarkPaymentFailed(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "paymentID")
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	var req markFailedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.log, w, err)
		return
	}

	payment, err := a.store.MarkPaymentFailed(r.Context(), id, req.Reason)
	if err != nil {
		writeError(a.log, w, err)
		return
	}
	metrics.PayoutsRecordedTotal.WithLabelValues("failed").Inc()

	writeJSON(a.log, w, http.StatusOK, payment)
}
