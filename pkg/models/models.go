package models

import (
	"time"

	"walletunity/pkg/chains"

	"github.com/shopspring/decimal"
)

// Action is the operation offered for a token row.
type Action int

const (
	ActionNone Action = iota
	ActionBridge
	ActionSwap
)

func (a Action) String() string {
	switch a {
	case ActionBridge:
		return "bridge"
	case ActionSwap:
		return "swap"
	default:
		return "none"
	}
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// TokenRow is one token balance on one chain.
type TokenRow struct {
	Key           string          `json:"key"`
	Chain         chains.Chain    `json:"chain"`
	Token         chains.Token    `json:"token"`
	Price         decimal.Decimal `json:"price"`
	Amount        decimal.Decimal `json:"amount"`
	USD           decimal.Decimal `json:"usd"`
	Action        Action          `json:"action"`
	ActionEnabled bool            `json:"action_enabled"`
	Error         string          `json:"error,omitempty"`
}

// ChainRow groups the token rows of a chain with their USD subtotal.
type ChainRow struct {
	Key    string          `json:"key"`
	Chain  chains.Chain    `json:"chain"`
	Name   string          `json:"name"`
	USD    decimal.Decimal `json:"usd"`
	Action Action          `json:"action"`
	Tokens []TokenRow      `json:"tokens"`
}

// Portfolio is the aggregated view of an address across chains.
type Portfolio struct {
	Address   string          `json:"address"`
	Chains    []ChainRow      `json:"chains"`
	Total     decimal.Decimal `json:"total"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TxType is the kind of tracked transaction.
type TxType string

const (
	TxSend   TxType = "send"
	TxRedeem TxType = "redeem"
)

// TxStatus is the lifecycle state of a tracked transaction.
type TxStatus string

const (
	TxPending  TxStatus = "pending"
	TxComplete TxStatus = "complete"
	TxFailed   TxStatus = "failed"
)

// Terminal reports whether no further status change is expected.
func (s TxStatus) Terminal() bool {
	return s == TxComplete || s == TxFailed
}

// Transaction is a tracked bridge transaction.
type Transaction struct {
	Hash        string       `json:"hash"`
	Chain       chains.Chain `json:"chain"`
	Type        TxType       `json:"type"`
	Status      TxStatus     `json:"status"`
	Message     string       `json:"message,omitempty"`
	MessageHash string       `json:"message_hash,omitempty"`
	Signature   string       `json:"signature,omitempty"`
	Polls       int64        `json:"polls"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (t Transaction) HasSignature() bool {
	return t.Signature != ""
}

// RPCLatencyData contains the result of a latency check.
type RPCLatencyData struct {
	RPCURL  string
	Latency time.Duration
	Err     error
}

// ChainResult holds test results for a specific chain.
type ChainResult struct {
	Name            string      `json:"name"`
	Chain           string      `json:"chain"`
	ExpectedChainID int64       `json:"expected_chain_id"`
	RPCs            []RPCResult `json:"rpcs"`
	Inconsistent    bool        `json:"inconsistent"`
	ObservedChainID int64       `json:"observed_chain_id,omitempty"`
	APIKeySet       bool        `json:"api_key_set"`
}

// RPCResult holds test results for a specific RPC URL.
type RPCResult struct {
	URL       string `json:"url"`
	Status    string `json:"status"` // "ok" or "error"
	ChainID   int64  `json:"chain_id,omitempty"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}

// TestReport holds the results of the configuration test.
type TestReport struct {
	ConfigPath         string        `json:"config_path"`
	ValidStructure     bool          `json:"valid_structure"`
	StructureErrors    []string      `json:"structure_errors,omitempty"`
	AddressCount       int           `json:"address_count"`
	ChainCount         int           `json:"chain_count"`
	Chains             []ChainResult `json:"chains,omitempty"`
	InconsistentChains []string      `json:"inconsistent_chains,omitempty"`
}
