package solana

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/rs/zerolog"
)

const (
	testOwner    = "Vote111111111111111111111111111111111111111"
	testMint     = "So11111111111111111111111111111111111111112"
	testAccountA = "SysvarC1ock11111111111111111111111111111111"
	testAccountB = "SysvarRent111111111111111111111111111111111"
)

var testSignature = sol.Signature{9, 8, 7}.String()

type rpcCall struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

// rpcServer answers each JSON-RPC method with a fixed result body. A key of
// the form "method:param" matches on the first string parameter.
func rpcServer(t *testing.T, results map[string]string) (*httptest.Server, func() []string) {
	t.Helper()
	var (
		mu      sync.Mutex
		methods []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcCall
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
			return
		}
		mu.Lock()
		methods = append(methods, req.Method)
		mu.Unlock()

		id := string(req.ID)
		if id == "" {
			id = "1"
		}
		body, ok := "", false
		if len(req.Params) > 0 {
			var first string
			if json.Unmarshal(req.Params[0], &first) == nil {
				body, ok = results[req.Method+":"+first]
			}
		}
		if !ok {
			body, ok = results[req.Method]
		}
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.Write([]byte(`{"jsonrpc":"2.0","id":` + id + `,"error":{"code":-32601,"message":"Method not found"}}`))
			return
		}
		w.Write([]byte(`{"jsonrpc":"2.0","id":` + id + `,"result":` + body + `}`))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), methods...)
	}
}

func tokenAccount(pubkey string) string {
	return `{"pubkey":"` + pubkey + `","account":{"data":["","base64"],"executable":false,"lamports":2039280,` +
		`"owner":"TokenkegQfeZyiNwAJbNbGqPD7pzxDv9NHd4dx8GEn5","rentEpoch":0}}`
}

func tokenAmount(amount string) string {
	return `{"context":{"slot":1},"value":{"amount":"` + amount + `","decimals":6,"uiAmount":null,"uiAmountString":""}}`
}

func TestGetTokenBalanceSumsAccounts(t *testing.T) {
	srv, _ := rpcServer(t, map[string]string{
		"getTokenAccountsByOwner": `{"context":{"slot":1},"value":[` +
			tokenAccount(testAccountA) + `,` + tokenAccount(testAccountB) + `]}`,
		"getTokenAccountBalance:" + testAccountA: tokenAmount("1500000"),
		"getTokenAccountBalance:" + testAccountB: tokenAmount("500000"),
	})
	c := NewRPCClient(srv.URL, zerolog.Nop())

	bal, err := c.GetTokenBalance(context.Background(), testOwner, testMint)
	if err != nil {
		t.Fatalf("GetTokenBalance failed: %v", err)
	}
	if bal.Amount != 2000000 {
		t.Errorf("Expected 2000000 base units, got %d", bal.Amount)
	}
	if bal.UIAmount() != 2 {
		t.Errorf("Expected 2 whole tokens, got %v", bal.UIAmount())
	}
}

func TestGetTokenBalanceNoAccounts(t *testing.T) {
	srv, calls := rpcServer(t, map[string]string{"getTokenAccountsByOwner": `{"context":{"slot":1},"value":[]}`})
	c := NewRPCClient(srv.URL, zerolog.Nop())

	bal, err := c.GetTokenBalance(context.Background(), testOwner, testMint)
	if err != nil {
		t.Fatalf("GetTokenBalance failed: %v", err)
	}
	if bal.Amount != 0 {
		t.Errorf("Expected zero balance, got %d", bal.Amount)
	}
	if got := calls(); len(got) != 1 {
		t.Errorf("Expected a single call, got %v", got)
	}
}

func TestGetTokenBalanceRejectsBadAddress(t *testing.T) {
	srv, calls := rpcServer(t, nil)
	c := NewRPCClient(srv.URL, zerolog.Nop())

	if _, err := c.GetTokenBalance(context.Background(), "not-an-address", testMint); err == nil {
		t.Error("Expected error for invalid owner")
	}
	if got := calls(); len(got) != 0 {
		t.Errorf("Expected no RPC calls, got %v", got)
	}
}

func TestSendTransaction(t *testing.T) {
	srv, _ := rpcServer(t, map[string]string{"sendTransaction": `"` + testSignature + `"`})
	c := NewRPCClient(srv.URL, zerolog.Nop())

	sig, err := c.SendTransaction(context.Background(), "dHg=")
	if err != nil {
		t.Fatalf("SendTransaction failed: %v", err)
	}
	if sig != testSignature {
		t.Errorf("Expected %s, got %s", testSignature, sig)
	}
}

func TestRPCErrorIsReturned(t *testing.T) {
	srv, _ := rpcServer(t, nil)
	c := NewRPCClient(srv.URL, zerolog.Nop())

	_, err := c.SendTransaction(context.Background(), "dHg=")
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("Expected RPCError, got %v", err)
	}
	if rpcErr.Code != -32601 {
		t.Errorf("Expected code -32601, got %d", rpcErr.Code)
	}
}

func TestConfirmTransaction(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		wantErr error
	}{
		{"confirmed", `{"context":{"slot":1},"value":[{"slot":1,"confirmations":null,"err":null,"confirmationStatus":"confirmed"}]}`, nil},
		{"finalized", `{"context":{"slot":1},"value":[{"slot":1,"confirmations":null,"err":null,"confirmationStatus":"finalized"}]}`, nil},
		{"failed on chain", `{"context":{"slot":1},"value":[{"slot":1,"err":{"InstructionError":[0,"Custom"]},"confirmationStatus":"confirmed"}]}`, ErrTransactionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := rpcServer(t, map[string]string{"getSignatureStatuses": tt.status})
			c := NewRPCClient(srv.URL, zerolog.Nop())

			err := c.ConfirmTransaction(context.Background(), testSignature)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfirmTransactionTimesOut(t *testing.T) {
	srv, _ := rpcServer(t, map[string]string{"getSignatureStatuses": `{"context":{"slot":1},"value":[null]}`})
	c := NewRPCClient(srv.URL, zerolog.Nop())
	c.pollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.ConfirmTransaction(ctx, testSignature); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestJitoSendTransaction(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.String()
		var req rpcCall
		json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":"` + testSignature + `"}`))
	}))
	defer srv.Close()

	j := NewJitoClient(srv.URL+"/", zerolog.Nop())
	sig, err := j.SendTransaction(context.Background(), "dHg=")
	if err != nil {
		t.Fatalf("SendTransaction failed: %v", err)
	}
	if sig != testSignature {
		t.Errorf("Expected signature %s, got %s", testSignature, sig)
	}
	if !strings.HasPrefix(path, "/api/v1/transactions") || !strings.Contains(path, "bundleOnly=true") {
		t.Errorf("Unexpected block engine path %s", path)
	}
}

func TestGetHealthAndBalance(t *testing.T) {
	srv, calls := rpcServer(t, map[string]string{
		"getHealth":  `"ok"`,
		"getBalance": `{"context":{"slot":1},"value":1500000000}`,
	})
	c := NewRPCClient(srv.URL, zerolog.Nop())

	if err := c.GetHealth(context.Background()); err != nil {
		t.Errorf("Expected healthy node, got %v", err)
	}
	lamports, err := c.GetBalance(context.Background(), testOwner)
	if err != nil || lamports != 1500000000 {
		t.Errorf("Expected 1500000000 lamports, got %d (%v)", lamports, err)
	}
	if got := calls(); len(got) != 2 {
		t.Errorf("Expected 2 calls, got %v", got)
	}
}
