package handlers

import (
	"fmt"
	"net/http"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/doublescoop/punto/ledger/pkg/store"
)

type createContributorRequest struct {
	DisplayName   string `json:"display_name"`
	WalletAddress string `json:"wallet_address"`
	Role          string `json:"role,omitempty"`
}

// handleCreateContributor registers a contributor. The wallet address must
// be a valid base58 Solana public key; everything downstream (payments, the
// payout session) trusts it.
func (a *API) handleCreateContributor(w http.ResponseWriter, r *http.Request) {
	var req createContributorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.log, w, err)
		return
	}

	if err := validateWallet(req.WalletAddress); err != nil {
		writeError(a.log, w, err)
		return
	}

	contributor, err := a.store.CreateContributor(r.Context(), store.CreateContributorParams{
		DisplayName:   req.DisplayName,
		WalletAddress: req.WalletAddress,
		Role:          req.Role,
	})
	if err != nil {
		writeError(a.log, w, err)
		return
	}

	writeJSON(a.log, w, http.StatusCreated, contributor)
}

// validateWallet checks that the address parses as a 32-byte base58 Solana
// public key.
func validateWallet(address string) error {
	if address == "" {
		return &store.ValidationError{Field: "wallet_address", Reason: "must not be empty"}
	}
	if _, err := solanago.PublicKeyFromBase58(address); err != nil {
		return &store.ValidationError{Field: "wallet_address", Reason: fmt.Sprintf("not a valid Solana address: %v", err)}
	}
	return nil
}
