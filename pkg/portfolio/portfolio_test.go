package portfolio

import (
	"context"
	"errors"
	"io"
	"math/big"
	"testing"

	"walletunity/pkg/chains"
	"walletunity/pkg/explorer"
	"walletunity/pkg/models"
	"walletunity/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockBalances struct {
	mock.Mock
}

func (m *MockBalances) NativeBalance(ctx context.Context, chain chains.Chain, address string) (*big.Int, error) {
	args := m.Called(chain, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *MockBalances) TokenBalance(ctx context.Context, chain chains.Chain, contract, address string) (*big.Int, error) {
	args := m.Called(chain, contract, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

type MockPrices struct {
	mock.Mock
}

func (m *MockPrices) Price(ctx context.Context, token chains.Token) (decimal.Decimal, error) {
	args := m.Called(token)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func wei(s string) *big.Int {
	v, _ := new(big.Int).SetString(s, 10)
	return v
}

const addr = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"

func TestAggregateSingleChainExample(t *testing.T) {
	balances := new(MockBalances)
	prices := new(MockPrices)

	usdc := chains.TokenAddress(chains.Ethereum, chains.USDC)
	usdt := chains.TokenAddress(chains.Ethereum, chains.USDT)
	uni := chains.TokenAddress(chains.Ethereum, chains.UNI)

	balances.On("NativeBalance", chains.Ethereum, addr).Return(wei("1500000000000000000"), nil)
	balances.On("TokenBalance", chains.Ethereum, usdc, addr).Return(wei("100000000"), nil)
	balances.On("TokenBalance", chains.Ethereum, usdt, addr).Return(big.NewInt(0), nil)
	balances.On("TokenBalance", chains.Ethereum, uni, addr).Return(big.NewInt(0), nil)

	prices.On("Price", chains.ETH).Return(decimal.NewFromInt(2000), nil)
	prices.On("Price", chains.USDC).Return(decimal.NewFromInt(1), nil)
	prices.On("Price", chains.USDT).Return(decimal.NewFromInt(1), nil)
	prices.On("Price", chains.UNI).Return(decimal.NewFromInt(5), nil)

	f := NewFetcher(balances, prices, quietLogger())
	p := f.Aggregate(context.Background(), []chains.Chain{chains.Ethereum}, addr)

	require.Len(t, p.Chains, 1)
	row := p.Chains[0]
	assert.Equal(t, "3,100.00", utils.FormatDecimal(row.USD, 2))
	assert.Equal(t, "3,100.00", utils.FormatDecimal(p.Total, 2))
	assert.Equal(t, "Ethereum", row.Name)
	assert.Equal(t, models.ActionNone, row.Action)

	require.Len(t, row.Tokens, 4)
	assert.Equal(t, chains.USDC, row.Tokens[0].Token)
	assert.Equal(t, models.ActionBridge, row.Tokens[0].Action)
	assert.Equal(t, chains.ETH, row.Tokens[1].Token)
	assert.Equal(t, models.ActionSwap, row.Tokens[1].Action)
	assert.True(t, row.Tokens[1].ActionEnabled)
	assert.Equal(t, "ETHUSDC", row.Tokens[0].Key)

	balances.AssertExpectations(t)
	prices.AssertExpectations(t)
}

func TestAggregateAllChainsOrderAndTotals(t *testing.T) {
	balances := new(MockBalances)
	prices := new(MockPrices)

	balances.On("NativeBalance", mock.Anything, addr).Return(wei("1000000000000000000"), nil)
	balances.On("TokenBalance", mock.Anything, mock.Anything, addr).Return(wei("123456789"), nil)
	prices.On("Price", mock.Anything).Return(decimal.RequireFromString("1.337"), nil)

	f := NewFetcher(balances, prices, quietLogger())
	p := f.Aggregate(context.Background(), chains.All(), addr)

	require.Len(t, p.Chains, 4)
	for i, c := range chains.All() {
		assert.Equal(t, c, p.Chains[i].Chain)
	}

	// total equals the sum of displayed row values
	sum := decimal.Zero
	for _, c := range p.Chains {
		chainSum := decimal.Zero
		for _, tr := range c.Tokens {
			shown := decimal.RequireFromString(tr.USD.StringFixed(2))
			chainSum = chainSum.Add(shown)
			sum = sum.Add(shown)
		}
		assert.True(t, chainSum.Equal(c.USD), c.Chain)
	}
	assert.Equal(t, utils.FormatDecimal(sum, 2), utils.FormatDecimal(p.Total, 2))
}

func TestAggregateNeverShowsMissingTokens(t *testing.T) {
	balances := new(MockBalances)
	prices := new(MockPrices)
	balances.On("NativeBalance", mock.Anything, mock.Anything).Return(big.NewInt(0), nil)
	balances.On("TokenBalance", mock.Anything, mock.Anything, mock.Anything).Return(big.NewInt(0), nil)
	prices.On("Price", mock.Anything).Return(decimal.Zero, nil)

	f := NewFetcher(balances, prices, quietLogger())
	p := f.Aggregate(context.Background(), chains.All(), addr)

	for _, a := range Actions(p) {
		assert.True(t, chains.Exists(a.Chain, a.Token), "%s/%s", a.Chain, a.Token)
		if a.Action == models.ActionBridge {
			assert.Equal(t, chains.USDC, a.Token)
		}
	}
	balances.AssertNotCalled(t, "TokenBalance", chains.Avalanche, chains.EmptyAddress, mock.Anything)
}

func TestSwapDisabledOnUnsupportedChains(t *testing.T) {
	balances := new(MockBalances)
	prices := new(MockPrices)
	balances.On("NativeBalance", mock.Anything, mock.Anything).Return(big.NewInt(0), nil)
	balances.On("TokenBalance", mock.Anything, mock.Anything, mock.Anything).Return(big.NewInt(0), nil)
	prices.On("Price", mock.Anything).Return(decimal.Zero, nil)

	f := NewFetcher(balances, prices, quietLogger())
	p := f.Aggregate(context.Background(), []chains.Chain{chains.Avalanche, chains.Arbitrum, chains.Optimism}, addr)

	for _, c := range p.Chains {
		for _, tr := range c.Tokens {
			if tr.Action != models.ActionSwap {
				assert.True(t, tr.ActionEnabled)
				continue
			}
			assert.Equal(t, c.Chain == chains.Optimism, tr.ActionEnabled, "%s/%s", c.Chain, tr.Token)
		}
	}
}

func TestFailSoftToZero(t *testing.T) {
	balances := new(MockBalances)
	prices := new(MockPrices)
	balances.On("NativeBalance", chains.Optimism, addr).Return(nil, explorer.ErrNotOK)
	balances.On("TokenBalance", chains.Optimism, mock.Anything, addr).Return(wei("5000000"), nil)
	prices.On("Price", chains.ETH).Return(decimal.NewFromInt(2000), nil)
	prices.On("Price", chains.USDC).Return(decimal.Zero, errors.New("rate limited"))

	f := NewFetcher(balances, prices, quietLogger())

	assert.True(t, f.Quantity(context.Background(), chains.Optimism, chains.ETH, addr).IsZero())
	assert.True(t, f.Price(context.Background(), chains.USDC).IsZero())

	p := f.Aggregate(context.Background(), []chains.Chain{chains.Optimism}, addr)
	require.Len(t, p.Chains, 1)
	assert.True(t, p.Total.IsZero())
	for _, tr := range p.Chains[0].Tokens {
		assert.NotEmpty(t, tr.Error)
		assert.True(t, tr.USD.IsZero())
	}
	assert.True(t, p.Chains[0].Tokens[0].Amount.Equal(decimal.NewFromInt(5)))
}

func TestQuantityMissingTokenIsZero(t *testing.T) {
	f := NewFetcher(new(MockBalances), new(MockPrices), quietLogger())
	assert.True(t, f.Quantity(context.Background(), chains.Avalanche, chains.UNI, addr).IsZero())
}

func TestAggregateEmptyAddress(t *testing.T) {
	f := NewFetcher(new(MockBalances), new(MockPrices), quietLogger())
	p := f.Aggregate(context.Background(), chains.All(), "")
	assert.Empty(t, p.Chains)
	assert.True(t, p.Total.IsZero())
}
