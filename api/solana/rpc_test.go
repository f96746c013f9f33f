package solana

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPunto_Solana_UnitConversions(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(5000), BaseUnitsToCents(50_000_000)) // $50.00
	assert.Equal(t, int64(1), BaseUnitsToCents(19_999))        // dust truncates
	assert.Equal(t, int64(10_000), CentsToBaseUnits(1))
}

func TestPunto_Solana_GetUSDCBalanceSumsAccounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"jsonrpc": "2.0", "id": 1,
			"result": {"value": [
				{"account": {"data": {"parsed": {"info": {"tokenAmount": {"amount": "50000000", "decimals": 6}}}}}},
				{"account": {"data": {"parsed": {"info": {"tokenAmount": {"amount": "25000000", "decimals": 6}}}}}}
			]}
		}`))
	}))
	defer srv.Close()
	t.Setenv("SOLANA_RPC_URL", srv.URL)

	cents, err := GetUSDCBalance(t.Context(), "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
	require.NoError(t, err)
	assert.Equal(t, int64(7500), cents)
}

func TestPunto_Solana_GetUSDCBalanceRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"jsonrpc": "2.0", "id": 1,
			"result": {"value": [
				{"account": {"data": {"parsed": {"info": {"tokenAmount": {"amount": "10000", "decimals": 6}}}}}}
			]}
		}`))
	}))
	defer srv.Close()
	t.Setenv("SOLANA_RPC_URL", srv.URL)

	cents, err := GetUSDCBalance(t.Context(), "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
	require.NoError(t, err)
	assert.Equal(t, int64(1), cents)
	assert.Equal(t, int64(2), calls.Load())
}

func TestPunto_Solana_GetUSDCBalanceRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc": "2.0", "id": 1, "error": {"code": -32602, "message": "Invalid param"}}`))
	}))
	defer srv.Close()
	t.Setenv("SOLANA_RPC_URL", srv.URL)

	_, err := GetUSDCBalance(t.Context(), "not-a-wallet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid param")
}
