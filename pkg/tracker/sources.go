package tracker

import (
	"context"
	"errors"
	"fmt"

	"walletunity/pkg/attestation"
	"walletunity/pkg/cctp"
	"walletunity/pkg/chains"
	"walletunity/pkg/explorer"
	"walletunity/pkg/models"
	"walletunity/pkg/rpc"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

var ErrNoAttestations = errors.New("no attestation service configured")

// StatusSource reports the current state of a transaction. It returns the
// updated record even when err is non-nil.
type StatusSource interface {
	Status(ctx context.Context, tx models.Transaction) (models.Transaction, error)
}

type ReceiptFetcher interface {
	Receipt(ctx context.Context, chain chains.Chain, txHash string) (*types.Receipt, error)
}

type AttestationFetcher interface {
	Fetch(ctx context.Context, messageHash string) (attestation.Attestation, error)
}

// RPCReceipts fetches receipts over JSON-RPC. Chains without configured URLs
// fall back to the registry defaults.
type RPCReceipts map[chains.Chain][]string

func (r RPCReceipts) Receipt(ctx context.Context, chain chains.Chain, txHash string) (*types.Receipt, error) {
	urls := r[chain]
	if len(urls) == 0 {
		info, err := chains.Info(chain)
		if err != nil {
			return nil, err
		}
		urls = info.RPCURLs
	}
	receipt, _, err := rpc.FetchReceipt(ctx, urls, txHash)
	return receipt, err
}

// ReceiptSource follows a transaction through its on-chain receipt. Sends are
// CCTP burns: once mined, the MessageSent payload is extracted and the
// attestation service is polled until it has signed the message.
type ReceiptSource struct {
	receipts     ReceiptFetcher
	attestations AttestationFetcher
}

func NewReceiptSource(receipts ReceiptFetcher, attestations AttestationFetcher) *ReceiptSource {
	return &ReceiptSource{receipts: receipts, attestations: attestations}
}

func (s *ReceiptSource) Status(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	if tx.MessageHash == "" {
		receipt, err := s.receipts.Receipt(ctx, tx.Chain, tx.Hash)
		if err != nil {
			return tx, fmt.Errorf("receipt %s: %w", tx.Hash, err)
		}
		if receipt == nil {
			return tx, nil
		}
		if receipt.Status != types.ReceiptStatusSuccessful {
			tx.Status = models.TxFailed
			return tx, nil
		}
		if tx.Type != models.TxSend {
			tx.Status = models.TxComplete
			return tx, nil
		}

		message, hash, err := cctp.MessageFromReceipt(tx.Chain, receipt)
		if err != nil {
			tx.Status = models.TxFailed
			return tx, err
		}
		tx.Message = hexutil.Encode(message)
		tx.MessageHash = hash.Hex()
	}

	if s.attestations == nil {
		return tx, ErrNoAttestations
	}
	att, err := s.attestations.Fetch(ctx, tx.MessageHash)
	if err != nil {
		return tx, err
	}
	if att.Complete() {
		tx.Signature = att.Signature
		tx.Status = models.TxComplete
	}
	return tx, nil
}

type ReceiptStatusFetcher interface {
	TxReceiptStatus(ctx context.Context, chain chains.Chain, txHash string) (explorer.ReceiptStatus, error)
}

// ExplorerSource reads the execution status reported by the block explorer.
type ExplorerSource struct {
	client ReceiptStatusFetcher
}

func NewExplorerSource(client ReceiptStatusFetcher) *ExplorerSource {
	return &ExplorerSource{client: client}
}

func (s *ExplorerSource) Status(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	status, err := s.client.TxReceiptStatus(ctx, tx.Chain, tx.Hash)
	if err != nil {
		return tx, err
	}
	switch status {
	case explorer.ReceiptSuccess:
		tx.Status = models.TxComplete
	case explorer.ReceiptFailed:
		tx.Status = models.TxFailed
	}
	return tx, nil
}
