package solana

import (
	"context"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
)

// JitoClient submits transactions through a Jito block engine so they land
// as bundles and skip the public mempool. The transaction must already carry
// a tip transfer.
type JitoClient struct {
	client *rpc.Client
	logger zerolog.Logger
}

// NewJitoClient creates a block-engine client
func NewJitoClient(baseURL string, logger zerolog.Logger) *JitoClient {
	endpoint := strings.TrimRight(baseURL, "/") + "/api/v1/transactions?bundleOnly=true"
	return &JitoClient{
		client: rpc.New(endpoint),
		logger: logger.With().Str("component", "jito").Logger(),
	}
}

// SendTransaction submits a signed base64 transaction in bundle-only mode
func (j *JitoClient) SendTransaction(ctx context.Context, signedTxBase64 string) (string, error) {
	sig, err := j.client.SendEncodedTransactionWithOpts(ctx, signedTxBase64, rpc.TransactionOpts{
		SkipPreflight: true,
	})
	if err != nil {
		return "", fmt.Errorf("block engine sendTransaction: %w", err)
	}
	j.logger.Debug().Str("signature", sig.String()).Msg("Submitted via block engine")
	return sig.String(), nil
}
