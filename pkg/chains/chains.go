package chains

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrUnknownChain = errors.New("unknown chain")
	ErrUnknownToken = errors.New("unknown token")
)

// Chain identifies one of the supported test networks.
type Chain string

const (
	Ethereum  Chain = "ETH"
	Optimism  Chain = "OP"
	Avalanche Chain = "AVAX"
	Arbitrum  Chain = "ARB"
)

// Token identifies a token tracked on the supported networks.
type Token string

const (
	USDC Token = "USDC"
	ETH  Token = "ETH"
	AVAX Token = "AVAX"
	USDT Token = "USDT"
	UNI  Token = "UNI"
)

// Sentinel values in the address table.
const (
	NativeAddress = "NATIVE"
	EmptyAddress  = "EMPTY"
)

// ChainInfo holds the static attributes of a chain.
type ChainInfo struct {
	Chain              Chain          `json:"chain"`
	ChainID            int64          `json:"chain_id"`
	Name               string         `json:"name"`
	NativeToken        Token          `json:"native_token"`
	ExplorerAPI        string         `json:"explorer_api"`
	ExplorerURL        string         `json:"explorer_url"`
	RPCURLs            []string       `json:"rpc_urls"`
	Domain             uint32         `json:"domain"`
	TokenMessenger     common.Address `json:"token_messenger"`
	MessageTransmitter common.Address `json:"message_transmitter"`
	// SwapSupported is false where the swap widget has no deployment.
	SwapSupported bool `json:"swap_supported"`
}

// TokenInfo holds the static attributes of a token.
type TokenInfo struct {
	Token        Token  `json:"token"`
	Decimals     int    `json:"decimals"`
	PriceAssetID string `json:"price_asset_id"`
	LogoURI      string `json:"logo_uri"`
}

var chainTable = []ChainInfo{
	{
		Chain:              Ethereum,
		ChainID:            5,
		Name:               "Ethereum",
		NativeToken:        ETH,
		ExplorerAPI:        "https://api-goerli.etherscan.io/api",
		ExplorerURL:        "https://goerli.etherscan.io",
		RPCURLs:            []string{"https://rpc.ankr.com/eth_goerli", "https://ethereum-goerli.publicnode.com"},
		Domain:             0,
		TokenMessenger:     common.HexToAddress("0xd0c3da58f55358142b8d3e06c1c30c5c6114efe8"),
		MessageTransmitter: common.HexToAddress("0x26413e8157cd32011e726065a5462e97dd4d03d9"),
		SwapSupported:      true,
	},
	{
		Chain:              Optimism,
		ChainID:            420,
		Name:               "Optimism",
		NativeToken:        ETH,
		ExplorerAPI:        "https://api-goerli-optimism.etherscan.io/api",
		ExplorerURL:        "https://goerli-optimism.etherscan.io",
		RPCURLs:            []string{"https://goerli.optimism.io"},
		Domain:             2,
		TokenMessenger:     common.HexToAddress("0x23a04d5935ed8bc8e3eb78db3541f0abfb001c6e"),
		MessageTransmitter: common.HexToAddress("0x9ff9a4da6f2157a9c82ce756f8fd7e0d75be8895"),
		SwapSupported:      true,
	},
	{
		Chain:              Avalanche,
		ChainID:            43113,
		Name:               "Avalanche",
		NativeToken:        AVAX,
		ExplorerAPI:        "https://api-testnet.snowtrace.io/api",
		ExplorerURL:        "https://testnet.snowtrace.io",
		RPCURLs:            []string{"https://api.avax-test.network/ext/bc/C/rpc"},
		Domain:             1,
		TokenMessenger:     common.HexToAddress("0xeb08f243e5d3fcff26a9e38ae5520a669f4019d0"),
		MessageTransmitter: common.HexToAddress("0xa9fb1b3009dcb79e2fe346c16a604b8fa8ae0a79"),
		SwapSupported:      false,
	},
	{
		Chain:              Arbitrum,
		ChainID:            421613,
		Name:               "Arbitrum",
		NativeToken:        ETH,
		ExplorerAPI:        "https://api-goerli.arbiscan.io/api",
		ExplorerURL:        "https://goerli.arbiscan.io",
		RPCURLs:            []string{"https://goerli-rollup.arbitrum.io/rpc"},
		Domain:             3,
		TokenMessenger:     common.HexToAddress("0x12dcfd3fe2e9eac2859fd1ed86d2ab8c5a2f9352"),
		MessageTransmitter: common.HexToAddress("0x109bc137cb64eab7c0b1dddd1edf341467dc2d35"),
		SwapSupported:      false,
	},
}

var tokenTable = []TokenInfo{
	{Token: USDC, Decimals: 6, PriceAssetID: "usd-coin", LogoURI: "https://raw.githubusercontent.com/trustwallet/assets/master/blockchains/ethereum/assets/0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48/logo.png"},
	{Token: ETH, Decimals: 18, PriceAssetID: "ethereum", LogoURI: "https://raw.githubusercontent.com/trustwallet/assets/master/blockchains/ethereum/info/logo.png"},
	{Token: AVAX, Decimals: 18, PriceAssetID: "avalanche", LogoURI: "https://raw.githubusercontent.com/trustwallet/assets/master/blockchains/avalanche/info/logo.png"},
	{Token: USDT, Decimals: 6, PriceAssetID: "tether", LogoURI: "https://raw.githubusercontent.com/trustwallet/assets/master/blockchains/ethereum/assets/0xdAC17F958D2ee523a2206206994597C13D831ec7/logo.png"},
	{Token: UNI, Decimals: 18, PriceAssetID: "uniswap", LogoURI: "https://raw.githubusercontent.com/trustwallet/assets/master/blockchains/ethereum/assets/0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984/logo.png"},
}

var addressTable = map[Chain]map[Token]string{
	Ethereum: {
		ETH:  NativeAddress,
		USDC: "0x07865c6E87B9F70255377e024ace6630C1Eaa37F",
		USDT: "0xC2C527C0CACF457746Bd31B2a698Fe89de2b6d49",
		UNI:  "0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984",
		AVAX: EmptyAddress,
	},
	Optimism: {
		ETH:  NativeAddress,
		USDC: "0xe05606174bac4A6364B31bd0eCA4bf4dD368f8C6",
		USDT: EmptyAddress,
		UNI:  EmptyAddress,
		AVAX: EmptyAddress,
	},
	Avalanche: {
		AVAX: NativeAddress,
		USDC: "0x5425890298aed601595a70AB815c96711a31Bc65",
		USDT: EmptyAddress,
		UNI:  EmptyAddress,
		ETH:  EmptyAddress,
	},
	Arbitrum: {
		ETH:  NativeAddress,
		USDC: "0xfd064A18f3BF249cF1f87FC203E90D8f650f2d63",
		USDT: EmptyAddress,
		UNI:  EmptyAddress,
		AVAX: EmptyAddress,
	},
}

// DefaultDecimals is used for amounts whose token is not known.
const DefaultDecimals = 6

// All returns the supported chains in declaration order: ETH, OP, AVAX, ARB.
// Aggregated portfolios list chains in this order.
func All() []Chain {
	out := make([]Chain, 0, len(chainTable))
	for _, c := range chainTable {
		out = append(out, c.Chain)
	}
	return out
}

// Tokens returns the known tokens in declaration order.
func Tokens() []Token {
	out := make([]Token, 0, len(tokenTable))
	for _, t := range tokenTable {
		out = append(out, t.Token)
	}
	return out
}

// Infos returns a copy of the chain table.
func Infos() []ChainInfo {
	out := make([]ChainInfo, len(chainTable))
	copy(out, chainTable)
	return out
}

func ParseChain(s string) (Chain, error) {
	for _, c := range chainTable {
		if strings.EqualFold(string(c.Chain), s) || strings.EqualFold(c.Name, s) {
			return c.Chain, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChain, s)
}

func ParseToken(s string) (Token, error) {
	for _, t := range tokenTable {
		if strings.EqualFold(string(t.Token), s) {
			return t.Token, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownToken, s)
}

// Info returns the attributes of c.
func Info(c Chain) (ChainInfo, error) {
	for _, ci := range chainTable {
		if ci.Chain == c {
			return ci, nil
		}
	}
	return ChainInfo{}, fmt.Errorf("%w: %q", ErrUnknownChain, c)
}

// ChainByID looks up a chain by its numeric chain ID.
func ChainByID(id int64) (Chain, error) {
	for _, ci := range chainTable {
		if ci.ChainID == id {
			return ci.Chain, nil
		}
	}
	return "", fmt.Errorf("%w: chain id %d", ErrUnknownChain, id)
}

func (c Chain) String() string { return string(c) }

// Name returns the display name, or the identifier itself when unknown.
func (c Chain) Name() string {
	if ci, err := Info(c); err == nil {
		return ci.Name
	}
	return string(c)
}

func TokenDetails(t Token) (TokenInfo, error) {
	for _, ti := range tokenTable {
		if ti.Token == t {
			return ti, nil
		}
	}
	return TokenInfo{}, fmt.Errorf("%w: %q", ErrUnknownToken, t)
}

// Decimals returns the precision of t, or DefaultDecimals when unknown.
func (t Token) Decimals() int {
	if ti, err := TokenDetails(t); err == nil {
		return ti.Decimals
	}
	return DefaultDecimals
}

func (t Token) String() string { return string(t) }

// TokenAddress returns the contract address of token on chain, or one of the
// NativeAddress / EmptyAddress sentinels.
func TokenAddress(chain Chain, token Token) string {
	if byToken, ok := addressTable[chain]; ok {
		if addr, ok := byToken[token]; ok {
			return addr
		}
	}
	return EmptyAddress
}

func Exists(chain Chain, token Token) bool {
	return TokenAddress(chain, token) != EmptyAddress
}

func IsNative(chain Chain, token Token) bool {
	return TokenAddress(chain, token) == NativeAddress
}

// TokensOn returns the tokens deployed on chain in declaration order.
func TokensOn(chain Chain) []Token {
	var out []Token
	for _, t := range tokenTable {
		if Exists(chain, t.Token) {
			out = append(out, t.Token)
		}
	}
	return out
}

func USDCAddress(chain Chain) (common.Address, error) {
	addr := TokenAddress(chain, USDC)
	if !common.IsHexAddress(addr) {
		return common.Address{}, fmt.Errorf("%w: no USDC on %q", ErrUnknownChain, chain)
	}
	return common.HexToAddress(addr), nil
}
