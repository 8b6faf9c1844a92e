package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

func testKey(t *testing.T) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("NewRandomPrivateKey failed: %v", err)
	}
	return key
}

// unsignedTransfer serializes a transfer paid by from with an empty signature
func unsignedTransfer(t *testing.T, from, to solana.PublicKey) []byte {
	t.Helper()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(1000, from, to).Build()},
		solana.Hash{1, 2, 3},
		solana.TransactionPayer(from),
	)
	if err != nil {
		t.Fatalf("NewTransaction failed: %v", err)
	}
	tx.Signatures = []solana.Signature{{}}
	raw, err := tx.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}
	return raw
}

func TestSignTransaction(t *testing.T) {
	w, err := NewKeypairWallet(testKey(t))
	if err != nil {
		t.Fatalf("NewKeypairWallet failed: %v", err)
	}
	pub := w.key.PublicKey()
	raw := unsignedTransfer(t, pub, testKey(t).PublicKey())
	before := append([]byte(nil), raw...)

	signed, err := w.SignTransaction(context.Background(), raw)
	if err != nil {
		t.Fatalf("SignTransaction failed: %v", err)
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(signed))
	if err != nil {
		t.Fatalf("Failed to decode signed transaction: %v", err)
	}
	if len(tx.Signatures) != 1 {
		t.Fatalf("Expected one signature, got %d", len(tx.Signatures))
	}
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		t.Fatalf("Failed to serialize message: %v", err)
	}
	if !ed25519.Verify(pub[:], message, tx.Signatures[0][:]) {
		t.Error("Expected valid signature over the message")
	}
	if string(raw) != string(before) {
		t.Error("Expected input slice not to be mutated")
	}
}

func TestSignTransactionRejectsForeignTx(t *testing.T) {
	w, _ := NewKeypairWallet(testKey(t))
	other := testKey(t).PublicKey()

	_, err := w.SignTransaction(context.Background(), unsignedTransfer(t, other, other))
	if !errors.Is(err, ErrSignerNotFound) {
		t.Errorf("Expected ErrSignerNotFound, got %v", err)
	}

	if _, err := w.SignTransaction(context.Background(), []byte{5, 1, 2}); !errors.Is(err, ErrMalformedTransaction) {
		t.Errorf("Expected ErrMalformedTransaction, got %v", err)
	}
}

func TestParseKeypairFormats(t *testing.T) {
	key := testKey(t)
	want := key.PublicKey().String()

	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	asJSON, _ := json.Marshal(ints)

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "id.json")
	if err := os.WriteFile(jsonPath, asJSON, 0600); err != nil {
		t.Fatal(err)
	}
	b58Path := filepath.Join(dir, "id.txt")
	if err := os.WriteFile(b58Path, []byte(key.String()+"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		load func() (*KeypairWallet, error)
	}{
		{"keygen file", func() (*KeypairWallet, error) { return LoadKeypairFile(jsonPath) }},
		{"base58 file", func() (*KeypairWallet, error) { return LoadKeypairFile(b58Path) }},
		{"json string", func() (*KeypairWallet, error) { return ParseKeypair(string(asJSON)) }},
		{"base58 string", func() (*KeypairWallet, error) { return ParseKeypair(key.String()) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := tt.load()
			if err != nil {
				t.Fatalf("load failed: %v", err)
			}
			if w.PublicKey() != want {
				t.Errorf("Expected %s, got %s", want, w.PublicKey())
			}
			if !w.Ready() {
				t.Error("Expected wallet to be ready")
			}
		})
	}

	if _, err := ParseKeypair("[1,2,3]"); err == nil {
		t.Error("Expected error for short key")
	}
}
