// Package solana wraps the RPC calls the copy trader makes: submit a signed
// transaction, wait for confirmation, and read SPL token balances.
package solana

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
)

// ErrTransactionFailed is returned when a confirmed transaction carries an error
var ErrTransactionFailed = errors.New("transaction failed on-chain")

// RPCClient talks to a Solana JSON-RPC endpoint
type RPCClient struct {
	client       *rpc.Client
	maxRetries   uint
	pollInterval time.Duration
	logger       zerolog.Logger
}

// NewRPCClient creates a JSON-RPC client
func NewRPCClient(endpoint string, logger zerolog.Logger) *RPCClient {
	return &RPCClient{
		client:       rpc.New(endpoint),
		maxRetries:   3,
		pollInterval: 2 * time.Second,
		logger:       logger.With().Str("component", "solana-rpc").Logger(),
	}
}

// SendTransaction submits a base64 signed transaction and returns its signature
func (c *RPCClient) SendTransaction(ctx context.Context, signedTxBase64 string) (string, error) {
	sig, err := c.client.SendEncodedTransactionWithOpts(ctx, signedTxBase64, rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: rpc.CommitmentConfirmed,
		MaxRetries:          &c.maxRetries,
	})
	if err != nil {
		return "", fmt.Errorf("sendTransaction: %w", err)
	}
	return sig.String(), nil
}

// GetSignatureStatus returns the status of one signature, nil when unknown
func (c *RPCClient) GetSignatureStatus(ctx context.Context, signature string) (*rpc.SignatureStatusesResult, error) {
	sig, err := sol.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", signature, err)
	}
	out, err := c.client.GetSignatureStatuses(ctx, false, sig)
	if err != nil {
		return nil, fmt.Errorf("getSignatureStatuses: %w", err)
	}
	if out == nil || len(out.Value) == 0 {
		return nil, nil
	}
	return out.Value[0], nil
}

// ConfirmTransaction polls until the signature reaches confirmed or
// finalized, the transaction fails, or ctx ends.
func (c *RPCClient) ConfirmTransaction(ctx context.Context, signature string) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		status, err := c.GetSignatureStatus(ctx, signature)
		if err != nil {
			c.logger.Debug().Err(err).Str("signature", signature).Msg("Status poll failed")
		} else if status != nil {
			if status.Err != nil {
				return fmt.Errorf("%w: %v", ErrTransactionFailed, status.Err)
			}
			switch status.ConfirmationStatus {
			case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("confirmation of %s: %w", signature, ctx.Err())
		case <-ticker.C:
		}
	}
}

// TokenBalance is an SPL token balance summed across the owner's accounts
type TokenBalance struct {
	Amount   uint64 // base units
	Decimals int
}

// UIAmount returns the balance in whole tokens
func (b TokenBalance) UIAmount() float64 {
	f := float64(b.Amount)
	for i := 0; i < b.Decimals; i++ {
		f /= 10
	}
	return f
}

// GetTokenBalance sums the owner's balance of mint across token accounts
func (c *RPCClient) GetTokenBalance(ctx context.Context, owner, mint string) (TokenBalance, error) {
	ownerKey, err := sol.PublicKeyFromBase58(owner)
	if err != nil {
		return TokenBalance{}, fmt.Errorf("invalid owner %q: %w", owner, err)
	}
	mintKey, err := sol.PublicKeyFromBase58(mint)
	if err != nil {
		return TokenBalance{}, fmt.Errorf("invalid mint %q: %w", mint, err)
	}

	accounts, err := c.client.GetTokenAccountsByOwner(ctx, ownerKey,
		&rpc.GetTokenAccountsConfig{Mint: &mintKey},
		&rpc.GetTokenAccountsOpts{Commitment: rpc.CommitmentConfirmed, Encoding: sol.EncodingBase64},
	)
	if err != nil {
		return TokenBalance{}, fmt.Errorf("getTokenAccountsByOwner: %w", err)
	}

	var bal TokenBalance
	for _, acc := range accounts.Value {
		res, err := c.client.GetTokenAccountBalance(ctx, acc.Pubkey, rpc.CommitmentConfirmed)
		if err != nil {
			return TokenBalance{}, fmt.Errorf("getTokenAccountBalance %s: %w", acc.Pubkey, err)
		}
		if res.Value == nil {
			continue
		}
		amt, err := strconv.ParseUint(res.Value.Amount, 10, 64)
		if err != nil {
			return TokenBalance{}, fmt.Errorf("invalid token amount %q: %w", res.Value.Amount, err)
		}
		bal.Amount += amt
		bal.Decimals = int(res.Value.Decimals)
	}
	return bal, nil
}

// GetBalance returns the owner's SOL balance in lamports
func (c *RPCClient) GetBalance(ctx context.Context, owner string) (uint64, error) {
	key, err := sol.PublicKeyFromBase58(owner)
	if err != nil {
		return 0, fmt.Errorf("invalid owner %q: %w", owner, err)
	}
	out, err := c.client.GetBalance(ctx, key, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("getBalance: %w", err)
	}
	return out.Value, nil
}

// GetHealth returns nil when the node reports ok
func (c *RPCClient) GetHealth(ctx context.Context) error {
	result, err := c.client.GetHealth(ctx)
	if err != nil {
		return fmt.Errorf("getHealth: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("node unhealthy: %s", result)
	}
	return nil
}
