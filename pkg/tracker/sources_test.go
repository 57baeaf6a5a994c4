package tracker

import (
	"context"
	"errors"
	"testing"

	"walletunity/pkg/attestation"
	"walletunity/pkg/cctp"
	"walletunity/pkg/chains"
	"walletunity/pkg/explorer"
	"walletunity/pkg/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockReceipts struct {
	mock.Mock
}

func (m *MockReceipts) Receipt(ctx context.Context, chain chains.Chain, txHash string) (*types.Receipt, error) {
	args := m.Called(ctx, chain, txHash)
	receipt, _ := args.Get(0).(*types.Receipt)
	return receipt, args.Error(1)
}

type MockAttestations struct {
	mock.Mock
}

func (m *MockAttestations) Fetch(ctx context.Context, messageHash string) (attestation.Attestation, error) {
	args := m.Called(ctx, messageHash)
	return args.Get(0).(attestation.Attestation), args.Error(1)
}

type MockExplorer struct {
	mock.Mock
}

func (m *MockExplorer) TxReceiptStatus(ctx context.Context, chain chains.Chain, txHash string) (explorer.ReceiptStatus, error) {
	args := m.Called(ctx, chain, txHash)
	return args.Get(0).(explorer.ReceiptStatus), args.Error(1)
}

func burnReceipt(t *testing.T, message []byte) *types.Receipt {
	t.Helper()
	data, err := cctp.EncodeMessageSent(message)
	require.NoError(t, err)
	info, err := chains.Info(chains.Ethereum)
	require.NoError(t, err)
	return &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		Logs:   []*types.Log{{Address: info.MessageTransmitter, Topics: []common.Hash{cctp.MessageSentTopic}, Data: data}},
	}
}

func TestReceiptSource_SendLifecycle(t *testing.T) {
	message := []byte("burn message")
	messageHash := crypto.Keccak256Hash(message).Hex()

	receipts := new(MockReceipts)
	receipts.On("Receipt", mock.Anything, chains.Ethereum, sendHash).Return(nil, nil).Once()
	receipts.On("Receipt", mock.Anything, chains.Ethereum, sendHash).Return(burnReceipt(t, message), nil).Once()

	atts := new(MockAttestations)
	atts.On("Fetch", mock.Anything, messageHash).Return(attestation.Attestation{Status: attestation.StatusPendingConfirmations}, nil).Once()
	atts.On("Fetch", mock.Anything, messageHash).Return(attestation.Attestation{Status: attestation.StatusComplete, Signature: "0xsig"}, nil).Once()

	source := NewReceiptSource(receipts, atts)
	ctx := context.Background()

	// not mined
	tx, err := source.Status(ctx, pendingSend())
	require.NoError(t, err)
	assert.Equal(t, models.TxPending, tx.Status)
	assert.Empty(t, tx.MessageHash)

	// mined, waiting for attestation
	tx, err = source.Status(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, models.TxPending, tx.Status)
	assert.Equal(t, messageHash, tx.MessageHash)
	assert.Equal(t, hexutil.Encode(message), tx.Message)

	// attested; the receipt is not fetched again
	tx, err = source.Status(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, models.TxComplete, tx.Status)
	assert.Equal(t, "0xsig", tx.Signature)
	assert.True(t, tx.HasSignature())

	receipts.AssertExpectations(t)
	atts.AssertExpectations(t)
}

func TestReceiptSource_Reverted(t *testing.T) {
	receipts := new(MockReceipts)
	receipts.On("Receipt", mock.Anything, chains.Ethereum, sendHash).Return(&types.Receipt{Status: types.ReceiptStatusFailed}, nil)

	tx, err := NewReceiptSource(receipts, nil).Status(context.Background(), pendingSend())
	require.NoError(t, err)
	assert.Equal(t, models.TxFailed, tx.Status)
}

func TestReceiptSource_NotABurn(t *testing.T) {
	receipts := new(MockReceipts)
	receipts.On("Receipt", mock.Anything, chains.Ethereum, sendHash).Return(&types.Receipt{Status: types.ReceiptStatusSuccessful}, nil)

	tx, err := NewReceiptSource(receipts, new(MockAttestations)).Status(context.Background(), pendingSend())
	assert.ErrorIs(t, err, cctp.ErrNoMessage)
	assert.Equal(t, models.TxFailed, tx.Status)
}

func TestReceiptSource_Redeem(t *testing.T) {
	receipts := new(MockReceipts)
	receipts.On("Receipt", mock.Anything, chains.Avalanche, sendHash).Return(&types.Receipt{Status: types.ReceiptStatusSuccessful}, nil)

	tx := models.Transaction{Hash: sendHash, Chain: chains.Avalanche, Type: models.TxRedeem, Status: models.TxPending}
	tx, err := NewReceiptSource(receipts, nil).Status(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, models.TxComplete, tx.Status)
}

func TestReceiptSource_RPCError(t *testing.T) {
	receipts := new(MockReceipts)
	receipts.On("Receipt", mock.Anything, chains.Ethereum, sendHash).Return(nil, errors.New("all rpcs down"))

	tx, err := NewReceiptSource(receipts, nil).Status(context.Background(), pendingSend())
	assert.Error(t, err)
	assert.Equal(t, models.TxPending, tx.Status)
}

func TestExplorerSource(t *testing.T) {
	tests := []struct {
		name   string
		status explorer.ReceiptStatus
		err    error
		want   models.TxStatus
	}{
		{"success", explorer.ReceiptSuccess, nil, models.TxComplete},
		{"failed", explorer.ReceiptFailed, nil, models.TxFailed},
		{"pending", explorer.ReceiptPending, nil, models.TxPending},
		{"error", explorer.ReceiptPending, explorer.ErrNotOK, models.TxPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(MockExplorer)
			client.On("TxReceiptStatus", mock.Anything, chains.Ethereum, sendHash).Return(tt.status, tt.err)

			tx, err := NewExplorerSource(client).Status(context.Background(), pendingSend())
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.want, tx.Status)
		})
	}
}
