package blockchain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referral-points-system/internal/config"
)

// newSolanaRPC 返回一个对每个请求都回复同一 result 或 error 的 JSON-RPC 节点
func newSolanaRPC(t *testing.T, result, rpcErr interface{}) *SolanaClient {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID json.RawMessage `json:"id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)

	return NewSolanaClient(&config.SolanaConfig{RPCURL: server.URL})
}

func TestSolanaTokenBalance(t *testing.T) {
	client := newSolanaRPC(t, map[string]interface{}{
		"context": map[string]interface{}{"slot": 1},
		"value": map[string]interface{}{
			"amount":         "1500000",
			"decimals":       6,
			"uiAmountString": "1.5",
		},
	}, nil)

	balance, err := client.TokenBalance(context.Background(), solHolder, solMint)
	require.NoError(t, err)
	assert.EqualValues(t, 1_500_000, balance.Int64())
}

func TestSolanaMissingTokenAccountIsZero(t *testing.T) {
	client := newSolanaRPC(t, nil, map[string]interface{}{
		"code":    -32602,
		"message": "Invalid param: could not find account",
	})

	balance, err := client.TokenBalance(context.Background(), solHolder, solMint)
	require.NoError(t, err)
	assert.Zero(t, balance.Sign())
}

func TestSolanaRPCFailureIsError(t *testing.T) {
	client := newSolanaRPC(t, nil, map[string]interface{}{
		"code":    -32005,
		"message": "Node is behind by 42 slots",
	})

	_, err := client.TokenBalance(context.Background(), solHolder, solMint)
	assert.Error(t, err)
}
