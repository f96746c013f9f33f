// Package solana reads treasury balances over Solana JSON-RPC. The API only
// ever reads the chain; transfers live in the payout deployable.
package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/doublescoop/punto/utils/pkg/retry"
)

// DefaultRPCURL is the default Solana RPC endpoint
const DefaultRPCURL = "https://api.mainnet-beta.solana.com"

// USDCMint is the canonical USDC mint on Solana mainnet-beta.
const USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

// GetRPCURL returns the configured Solana RPC URL
func GetRPCURL() string {
	url := os.Getenv("SOLANA_RPC_URL")
	if url == "" {
		return DefaultRPCURL
	}
	return url
}

// GetUSDCMint returns the configured USDC mint address, defaulting to the
// mainnet mint. Overridden in devnet deployments.
func GetUSDCMint() string {
	mint := os.Getenv("USDC_MINT")
	if mint == "" {
		return USDCMint
	}
	return mint
}

// rpcRequest represents a JSON-RPC 2.0 request
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// rpcResponse represents a JSON-RPC 2.0 response
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// tokenAccountsResult is the result shape of getTokenAccountsByOwner with
// jsonParsed encoding, pared down to the token amount.
type tokenAccountsResult struct {
	Value []struct {
		Account struct {
			Data struct {
				Parsed struct {
					Info struct {
						TokenAmount struct {
							Amount   string `json:"amount"`
							Decimals int    `json:"decimals"`
						} `json:"tokenAmount"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"account"`
	} `json:"value"`
}

// GetUSDCBalance fetches the USDC balance of a treasury wallet in integer
// cents. Accounts are summed in case the owner holds more than one token
// account for the mint; sub-cent dust truncates. The read is side-effect
// free, so transient RPC failures are retried with backoff.
func GetUSDCBalance(ctx context.Context, owner string) (int64, error) {
	var cents int64
	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
		v, err := fetchUSDCBalance(ctx, owner)
		if err != nil {
			return err
		}
		cents = v
		return nil
	})
	if err != nil {
		return 0, err
	}
	return cents, nil
}

func fetchUSDCBalance(ctx context.Context, owner string) (int64, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getTokenAccountsByOwner",
		Params: []any{
			owner,
			map[string]string{"mint": GetUSDCMint()},
			map[string]string{"encoding": "jsonParsed"},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", GetRPCURL(), bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	if rpcResp.Error != nil {
		return 0, fmt.Errorf("RPC error: %s (code %d)", rpcResp.Error.Message, rpcResp.Error.Code)
	}

	var result tokenAccountsResult
	if err := json.Unmarshal(rpcResp.Result, &result); err != nil {
		return 0, fmt.Errorf("failed to unmarshal token accounts result: %w", err)
	}

	var baseUnits int64
	for _, acct := range result.Value {
		amount := acct.Account.Data.Parsed.Info.TokenAmount
		v, err := strconv.ParseInt(amount.Amount, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse token amount %q: %w", amount.Amount, err)
		}
		baseUnits += v
	}

	return BaseUnitsToCents(baseUnits), nil
}

// BaseUnitsToCents converts USDC base units (6 decimals) to integer cents.
func BaseUnitsToCents(baseUnits int64) int64 {
	return baseUnits / 10_000
}

// CentsToBaseUnits converts integer cents to USDC base units.
func CentsToBaseUnits(cents int64) int64 {
	return cents * 10_000
}
