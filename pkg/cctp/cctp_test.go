package cctp

import (
	"math/big"
	"testing"

	"walletunity/pkg/chains"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recipient = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"

func TestPlan(t *testing.T) {
	plan, err := Plan(TransferRequest{
		Source:      chains.Ethereum,
		Destination: chains.Avalanche,
		Amount:      "12.5",
		Recipient:   recipient,
	})
	require.NoError(t, err)

	assert.Equal(t, uint32(1), plan.DestinationDomain)
	assert.Equal(t, big.NewInt(12500000), plan.Amount)

	usdc, _ := chains.USDCAddress(chains.Ethereum)
	eth, _ := chains.Info(chains.Ethereum)
	assert.Equal(t, usdc, plan.Approve.To)
	assert.Equal(t, eth.TokenMessenger, plan.DepositForBurn.To)

	// approve(address,uint256)
	assert.Equal(t, []byte{0x09, 0x5e, 0xa7, 0xb3}, []byte(plan.Approve.Data[:4]))

	method, err := tokenMessenger.MethodById(plan.DepositForBurn.Data[:4])
	require.NoError(t, err)
	assert.Equal(t, "depositForBurn", method.Name)

	args, err := method.Inputs.Unpack(plan.DepositForBurn.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(12500000), args[0])
	assert.Equal(t, uint32(1), args[1])
	assert.Equal(t, AddressToBytes32(common.HexToAddress(recipient)), args[2])
	assert.Equal(t, usdc, args[3])
}

func TestPlanValidation(t *testing.T) {
	tests := []struct {
		name string
		req  TransferRequest
		err  error
	}{
		{"same chain", TransferRequest{Source: chains.Optimism, Destination: chains.Optimism, Amount: "1", Recipient: recipient}, ErrSameChain},
		{"zero amount", TransferRequest{Source: chains.Optimism, Destination: chains.Arbitrum, Amount: "0", Recipient: recipient}, ErrInvalidAmount},
		{"bad amount", TransferRequest{Source: chains.Optimism, Destination: chains.Arbitrum, Amount: "lots", Recipient: recipient}, ErrInvalidAmount},
		{"bad recipient", TransferRequest{Source: chains.Optimism, Destination: chains.Arbitrum, Amount: "1", Recipient: "0x12"}, ErrInvalidRecipient},
		{"unknown chain", TransferRequest{Source: "SOL", Destination: chains.Arbitrum, Amount: "1", Recipient: recipient}, chains.ErrUnknownChain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Plan(tt.req)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestMessageFromReceipt(t *testing.T) {
	message := []byte("cctp message body with nonce and burn data")
	data, err := EncodeMessageSent(message)
	require.NoError(t, err)

	info, err := chains.Info(chains.Ethereum)
	require.NoError(t, err)

	receipt := &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		Logs: []*types.Log{
			{Address: info.MessageTransmitter, Topics: []common.Hash{crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))}},
			{Address: info.MessageTransmitter, Topics: []common.Hash{MessageSentTopic}, Data: data},
		},
	}

	got, hash, err := MessageFromReceipt(chains.Ethereum, receipt)
	require.NoError(t, err)
	assert.Equal(t, message, got)
	assert.Equal(t, crypto.Keccak256Hash(message), hash)

	_, _, err = MessageFromReceipt(chains.Ethereum, &types.Receipt{})
	assert.ErrorIs(t, err, ErrNoMessage)
	_, _, err = MessageFromReceipt(chains.Ethereum, nil)
	assert.ErrorIs(t, err, ErrNoMessage)
	_, _, err = MessageFromReceipt("SOL", receipt)
	assert.ErrorIs(t, err, chains.ErrUnknownChain)
}

func TestMessageFromReceipt_ForeignEmitter(t *testing.T) {
	data, err := EncodeMessageSent([]byte("forged"))
	require.NoError(t, err)
	avax, err := chains.Info(chains.Avalanche)
	require.NoError(t, err)

	for _, emitter := range []common.Address{
		common.HexToAddress("0x00000000000000000000000000000000deadbeef"),
		avax.MessageTransmitter, // right contract, wrong chain
	} {
		receipt := &types.Receipt{
			Status: types.ReceiptStatusSuccessful,
			Logs:   []*types.Log{{Address: emitter, Topics: []common.Hash{MessageSentTopic}, Data: data}},
		}
		_, _, err = MessageFromReceipt(chains.Ethereum, receipt)
		assert.ErrorIs(t, err, ErrNoMessage, emitter.Hex())
	}
}

func TestReceiveMessage(t *testing.T) {
	call, err := ReceiveMessage(chains.Arbitrum, []byte{1, 2, 3}, []byte{4, 5})
	require.NoError(t, err)

	arb, _ := chains.Info(chains.Arbitrum)
	assert.Equal(t, arb.MessageTransmitter, call.To)

	method, err := transmitter.MethodById(call.Data[:4])
	require.NoError(t, err)
	assert.Equal(t, "receiveMessage", method.Name)

	_, err = ReceiveMessage("SOL", nil, nil)
	assert.ErrorIs(t, err, chains.ErrUnknownChain)
}
