package handlers

import (
	"net/http"
	"time"

	"github.com/doublescoop/punto/api/metrics"
	"github.com/doublescoop/punto/ledger/pkg/store"
)

type createIssueRequest struct {
	Title           string     `json:"title"`
	Slug            string     `json:"slug,omitempty"`
	TreasuryAddress string     `json:"treasury_address"`
	Deadline        *time.Time `json:"deadline,omitempty"`
}

func (a *API) handleCreateIssue(w http.ResponseWriter, r *http.Request) {
	var req createIssueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.log, w, err)
		return
	}

	if err := validateWallet(req.TreasuryAddress); err != nil {
		writeError(a.log, w, err)
		return
	}

	issue, err := a.store.CreateIssue(r.Context(), store.CreateIssueParams{
		Title:           req.Title,
		Slug:            req.Slug,
		TreasuryAddress: req.TreasuryAddress,
		Deadline:        req.Deadline,
	})
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	writeJSON(a.log, w, http.StatusCreated, issue)
}

func (a *API) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "issueID")
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	issue, err := a.store.GetIssue(r.Context(), id)
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	writeJSON(a.log, w, http.StatusOK, issue)
}

type createTopicRequest struct {
	Title        string `json:"title"`
	Brief        string `json:"brief,omitempty"`
	Position     int    `json:"position,omitempty"`
	BountyAmount int64  `json:"bounty_amount"`
	SlotsNeeded  int    `json:"slots_needed"`
}

func (a *API) handleCreateTopic(w http.ResponseWriter, r *http.Request) {
	issueID, err := pathUUID(r, "issueID")
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	var req createTopicRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.log, w, err)
		return
	}

	// The issue must exist; topics never dangle.
	if _, err := a.store.GetIssue(r.Context(), issueID); err != nil {
		writeError(a.log, w, err)
		return
	}

	topic, err := a.store.CreateTopic(r.Context(), store.CreateTopicParams{
		IssueID:      issueID,
		Title:        req.Title,
		Brief:        req.Brief,
		Position:     req.Position,
		BountyAmount: req.BountyAmount,
		SlotsNeeded:  req.SlotsNeeded,
	})
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	writeJSON(a.log, w, http.StatusCreated, topic)
}

func (a *API) handleListTopics(w http.ResponseWriter, r *http.Request) {
	issueID, err := pathUUID(r, "issueID")
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	topics, err := a.store.ListTopicsByIssue(r.Context(), issueID)
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	writeJSON(a.log, w, http.StatusOK, topics)
}

type createStipendRequest struct {
	RecipientID string `json:"recipient_id"`
	Amount      int64  `json:"amount"`
	Role        string `json:"role"`
}

// handleCreateStipend opens a pending role payment (editor or founder) with
// no submission behind it.
func (a *API) handleCreateStipend(w http.ResponseWriter, r *http.Request) {
	issueID, err := pathUUID(r, "issueID")
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	var req createStipendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.log, w, err)
		return
	}

	recipientID, err := parseUUIDField(req.RecipientID, "recipient_id")
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	if _, err := a.store.GetIssue(r.Context(), issueID); err != nil {
		writeError(a.log, w, err)
		return
	}
	if _, err := a.store.GetContributor(r.Context(), recipientID); err != nil {
		writeError(a.log, w, err)
		return
	}

	payment, err := a.store.CreateStipend(r.Context(), store.CreateStipendParams{
		IssueID:     issueID,
		RecipientID: recipientID,
		Amount:      req.Amount,
		Role:        store.PaymentRole(req.Role),
	})
	if err != nil {
		writeError(a.log, w, err)
		return
	}
	metrics.PaymentsOpenedTotal.WithLabelValues(string(payment.Role)).Inc()

	writeJSON(a.log, w, http.StatusCreated, payment)
}

func (a *API) handleGetFunding(w http.ResponseWriter, r *http.Request) {
	issueID, err := pathUUID(r, "issueID")
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	status, err := a.treasury.Funding(r.Context(), issueID)
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	writeJSON(a.log, w, http.StatusOK, status)
}

// handleRefreshFunding reads the treasury's USDC balance from the chain,
// stores it on the issue, and returns the recomputed funding status.
func (a *API) handleRefreshFunding(w http.ResponseWriter, r *http.Request) {
	issueID, err := pathUUID(r, "issueID")
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	issue, err := a.store.GetIssue(r.Context(), issueID)
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	started := time.Now()
	balance, err := a.balances(r.Context(), issue.TreasuryAddress)
	metrics.RecordBalanceRefresh(time.Since(started), err)
	if err != nil {
		a.log.Error("failed to read treasury balance",
			"issue_id", issue.ID,
			"treasury", issue.TreasuryAddress,
			"error", err,
		)
		writeJSON(a.log, w, http.StatusBadGateway, ErrorResponse{
			Error:   "chain_unavailable",
			Message: "failed to read treasury balance",
		})
		return
	}

	if _, err := a.store.UpdateIssueBalance(r.Context(), issue.ID, balance); err != nil {
		writeError(a.log, w, err)
		return
	}

	status, err := a.treasury.Funding(r.Context(), issueID)
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	writeJSON(a.log, w, http.StatusOK, status)
}
