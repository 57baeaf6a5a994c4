// Package cctp builds the contract calls of a Cross-Chain Transfer Protocol
// USDC bridge: approve + depositForBurn on the source chain and receiveMessage
// on the destination chain. Signing and sending are left to the wallet.
package cctp

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"walletunity/pkg/chains"
	"walletunity/pkg/utils"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrSameChain        = errors.New("source and destination chain are the same")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrInvalidRecipient = errors.New("invalid recipient address")
	ErrNoMessage        = errors.New("no MessageSent event in receipt")
)

const erc20ABI = `[{"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}]`

const tokenMessengerABI = `[{"inputs":[{"name":"amount","type":"uint256"},{"name":"destinationDomain","type":"uint32"},{"name":"mintRecipient","type":"bytes32"},{"name":"burnToken","type":"address"}],"name":"depositForBurn","outputs":[{"name":"_nonce","type":"uint64"}],"stateMutability":"nonpayable","type":"function"}]`

const messageTransmitterABI = `[
{"inputs":[{"name":"message","type":"bytes"},{"name":"attestation","type":"bytes"}],"name":"receiveMessage","outputs":[{"name":"success","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
{"anonymous":false,"inputs":[{"indexed":false,"name":"message","type":"bytes"}],"name":"MessageSent","type":"event"}
]`

var (
	erc20            = mustParse(erc20ABI)
	tokenMessenger   = mustParse(tokenMessengerABI)
	transmitter      = mustParse(messageTransmitterABI)
	MessageSentTopic = crypto.Keccak256Hash([]byte("MessageSent(bytes)"))
)

func mustParse(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Call is an unsigned contract call.
type Call struct {
	To          common.Address `json:"to"`
	Data        hexutil.Bytes  `json:"data"`
	Description string         `json:"description"`
}

// TransferRequest is what the bridge form collects.
type TransferRequest struct {
	Source      chains.Chain `json:"source"`
	Destination chains.Chain `json:"destination"`
	Amount      string       `json:"amount"`
	Recipient   string       `json:"recipient"`
}

// BridgePlan holds the source-chain calls of a transfer.
type BridgePlan struct {
	Source            chains.Chain   `json:"source"`
	Destination       chains.Chain   `json:"destination"`
	DestinationDomain uint32         `json:"destination_domain"`
	Amount            *big.Int       `json:"amount"`
	Recipient         common.Address `json:"recipient"`
	Approve           Call           `json:"approve"`
	DepositForBurn    Call           `json:"deposit_for_burn"`
}

// Validate checks the request without building calls.
func (r TransferRequest) Validate() error {
	if _, err := chains.Info(r.Source); err != nil {
		return err
	}
	if _, err := chains.Info(r.Destination); err != nil {
		return err
	}
	if r.Source == r.Destination {
		return ErrSameChain
	}
	if !common.IsHexAddress(r.Recipient) {
		return fmt.Errorf("%w: %q", ErrInvalidRecipient, r.Recipient)
	}
	amount, err := utils.ToBaseUnits(r.Amount, chains.USDC.Decimals())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Plan builds approve + depositForBurn for r.
func Plan(r TransferRequest) (BridgePlan, error) {
	if err := r.Validate(); err != nil {
		return BridgePlan{}, err
	}
	src, _ := chains.Info(r.Source)
	dst, _ := chains.Info(r.Destination)
	usdc, err := chains.USDCAddress(r.Source)
	if err != nil {
		return BridgePlan{}, err
	}
	amount, _ := utils.ToBaseUnits(r.Amount, chains.USDC.Decimals())
	recipient := common.HexToAddress(r.Recipient)

	approveData, err := erc20.Pack("approve", src.TokenMessenger, amount)
	if err != nil {
		return BridgePlan{}, fmt.Errorf("pack approve: %w", err)
	}
	burnData, err := tokenMessenger.Pack("depositForBurn", amount, dst.Domain, AddressToBytes32(recipient), usdc)
	if err != nil {
		return BridgePlan{}, fmt.Errorf("pack depositForBurn: %w", err)
	}

	return BridgePlan{
		Source:            r.Source,
		Destination:       r.Destination,
		DestinationDomain: dst.Domain,
		Amount:            amount,
		Recipient:         recipient,
		Approve: Call{
			To:          usdc,
			Data:        approveData,
			Description: fmt.Sprintf("approve %s USDC for TokenMessenger on %s", r.Amount, src.Name),
		},
		DepositForBurn: Call{
			To:          src.TokenMessenger,
			Data:        burnData,
			Description: fmt.Sprintf("burn %s USDC on %s for %s", r.Amount, src.Name, dst.Name),
		},
	}, nil
}

// ReceiveMessage builds the destination-chain call that mints the bridged USDC.
func ReceiveMessage(dest chains.Chain, message []byte, attestationSig []byte) (Call, error) {
	info, err := chains.Info(dest)
	if err != nil {
		return Call{}, err
	}
	data, err := transmitter.Pack("receiveMessage", message, attestationSig)
	if err != nil {
		return Call{}, fmt.Errorf("pack receiveMessage: %w", err)
	}
	return Call{
		To:          info.MessageTransmitter,
		Data:        data,
		Description: fmt.Sprintf("receive USDC on %s", info.Name),
	}, nil
}

// MessageFromReceipt extracts the CCTP message emitted by the source-chain
// MessageTransmitter and its keccak256 hash, the key of the attestation API.
// MessageSent logs from any other contract are ignored.
func MessageFromReceipt(source chains.Chain, receipt *types.Receipt) ([]byte, common.Hash, error) {
	info, err := chains.Info(source)
	if err != nil {
		return nil, common.Hash{}, err
	}
	if receipt == nil {
		return nil, common.Hash{}, ErrNoMessage
	}
	for _, l := range receipt.Logs {
		if l.Address != info.MessageTransmitter || len(l.Topics) == 0 || l.Topics[0] != MessageSentTopic {
			continue
		}
		out, err := transmitter.Unpack("MessageSent", l.Data)
		if err != nil {
			return nil, common.Hash{}, fmt.Errorf("unpack MessageSent: %w", err)
		}
		msg, ok := out[0].([]byte)
		if !ok {
			return nil, common.Hash{}, ErrNoMessage
		}
		return msg, crypto.Keccak256Hash(msg), nil
	}
	return nil, common.Hash{}, ErrNoMessage
}

// EncodeMessageSent is the inverse of the log decoding in MessageFromReceipt.
func EncodeMessageSent(message []byte) ([]byte, error) {
	return transmitter.Events["MessageSent"].Inputs.Pack(message)
}

// AddressToBytes32 left-pads an address to the bytes32 mintRecipient format.
func AddressToBytes32(a common.Address) [32]byte {
	var out [32]byte
	copy(out[12:], a.Bytes())
	return out
}
