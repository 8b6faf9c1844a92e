// Package wallet signs Solana transactions with a local keypair. Only the
// take-profit monitor binary uses it; the API server never holds keys.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var (
	// ErrSignerNotFound is returned when the wallet is not a required signer
	ErrSignerNotFound = errors.New("wallet is not a required signer of the transaction")
	// ErrMalformedTransaction is returned for undecodable transaction bytes
	ErrMalformedTransaction = errors.New("malformed transaction")
)

// Wallet signs serialized transactions for one public key
type Wallet interface {
	PublicKey() string
	Ready() bool
	SignTransaction(ctx context.Context, tx []byte) ([]byte, error)
}

// KeypairWallet holds an ed25519 keypair in memory
type KeypairWallet struct {
	key solana.PrivateKey
}

// NewKeypairWallet wraps a 64-byte secret key
func NewKeypairWallet(key solana.PrivateKey) (*KeypairWallet, error) {
	if len(key) != 64 {
		return nil, fmt.Errorf("private key must be 64 bytes, got %d", len(key))
	}
	return &KeypairWallet{key: key}, nil
}

// LoadKeypairFile reads a keypair in solana-keygen JSON format (an array of
// 64 bytes) or as a base58 string.
func LoadKeypairFile(path string) (*KeypairWallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keypair: %w", err)
	}
	s := strings.TrimSpace(string(data))
	if strings.HasPrefix(s, "[") {
		key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
		if err != nil {
			return nil, fmt.Errorf("invalid keypair file: %w", err)
		}
		return NewKeypairWallet(key)
	}
	return ParseKeypair(s)
}

// ParseKeypair decodes a JSON byte array or base58 secret key
func ParseKeypair(s string) (*KeypairWallet, error) {
	if strings.HasPrefix(s, "[") {
		var raw []byte
		if err := json.Unmarshal([]byte(s), &raw); err != nil {
			return nil, fmt.Errorf("invalid keypair JSON: %w", err)
		}
		return NewKeypairWallet(solana.PrivateKey(raw))
	}

	key, err := solana.PrivateKeyFromBase58(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base58 keypair: %w", err)
	}
	return NewKeypairWallet(key)
}

// PublicKey returns the base58 address
func (w *KeypairWallet) PublicKey() string {
	return w.key.PublicKey().String()
}

// Ready reports whether the wallet can sign
func (w *KeypairWallet) Ready() bool {
	return w != nil && len(w.key) == 64
}

// SignTransaction signs a serialized legacy or v0 transaction and returns
// the updated bytes. The wallet must be the transaction's only signer, which
// holds for aggregator swap transactions.
func (w *KeypairWallet) SignTransaction(_ context.Context, raw []byte) ([]byte, error) {
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
	}

	pub := w.key.PublicKey()
	if !tx.IsSigner(pub) {
		return nil, ErrSignerNotFound
	}

	tx.Signatures = nil
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(pub) {
			return &w.key
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	out, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize signed transaction: %w", err)
	}
	return out, nil
}
