package portfolio

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"walletunity/pkg/chains"
	"walletunity/pkg/models"
	"walletunity/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// BalanceSource returns raw integer balances.
type BalanceSource interface {
	NativeBalance(ctx context.Context, chain chains.Chain, address string) (*big.Int, error)
	TokenBalance(ctx context.Context, chain chains.Chain, contract, address string) (*big.Int, error)
}

// PriceSource returns USD unit prices.
type PriceSource interface {
	Price(ctx context.Context, token chains.Token) (decimal.Decimal, error)
}

// Fetcher reads balances and prices. Failures never propagate: they are
// logged and read as zero.
type Fetcher struct {
	balances BalanceSource
	prices   PriceSource
	log      *logrus.Logger
}

func NewFetcher(balances BalanceSource, prices PriceSource, log *logrus.Logger) *Fetcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Fetcher{balances: balances, prices: prices, log: log}
}

// Quantity returns the decimal-adjusted balance of token held by address on
// chain, or zero if it cannot be read.
func (f *Fetcher) Quantity(ctx context.Context, chain chains.Chain, token chains.Token, address string) decimal.Decimal {
	q, _ := f.quantity(ctx, chain, token, address)
	return q
}

// Price returns the USD price of token, or zero if it cannot be read.
func (f *Fetcher) Price(ctx context.Context, token chains.Token) decimal.Decimal {
	p, _ := f.price(ctx, token)
	return p
}

func (f *Fetcher) quantity(ctx context.Context, chain chains.Chain, token chains.Token, address string) (decimal.Decimal, error) {
	fields := logrus.Fields{"chain": chain, "token": token, "address": address}

	addr := chains.TokenAddress(chain, token)
	var (
		raw *big.Int
		err error
	)
	switch addr {
	case chains.EmptyAddress:
		err = fmt.Errorf("%w: %s not deployed on %s", chains.ErrUnknownToken, token, chain)
	case chains.NativeAddress:
		raw, err = f.balances.NativeBalance(ctx, chain, address)
	default:
		raw, err = f.balances.TokenBalance(ctx, chain, addr, address)
	}
	if err != nil {
		f.log.WithFields(fields).WithError(err).Warn("balance fetch failed, using zero")
		return decimal.Zero, err
	}
	return utils.FromBaseUnits(raw, token.Decimals()), nil
}

func (f *Fetcher) price(ctx context.Context, token chains.Token) (decimal.Decimal, error) {
	p, err := f.prices.Price(ctx, token)
	if err != nil {
		f.log.WithField("token", token).WithError(err).Warn("price fetch failed, using zero")
		return decimal.Zero, err
	}
	return p, nil
}

// Aggregate builds the chain -> token tree for address. Chains are fetched
// concurrently; within a chain each token's price and balance are read in
// sequence. Output order follows the order of cs.
func (f *Fetcher) Aggregate(ctx context.Context, cs []chains.Chain, address string) models.Portfolio {
	p := models.Portfolio{Address: address, Total: decimal.Zero, UpdatedAt: time.Now()}
	if address == "" {
		return p
	}

	rows := make([]models.ChainRow, len(cs))
	var wg sync.WaitGroup
	for i, c := range cs {
		wg.Add(1)
		go func(i int, c chains.Chain) {
			defer wg.Done()
			rows[i] = f.chainRow(ctx, c, address)
		}(i, c)
	}
	wg.Wait()

	p.Chains = rows
	p.Total = Sum(rows)
	return p
}

func (f *Fetcher) chainRow(ctx context.Context, chain chains.Chain, address string) models.ChainRow {
	info, _ := chains.Info(chain)
	row := models.ChainRow{
		Key:    string(chain),
		Chain:  chain,
		Name:   chain.Name(),
		Action: models.ActionNone,
	}

	for _, token := range chains.TokensOn(chain) {
		tr := models.TokenRow{
			Key:   string(chain) + string(token),
			Chain: chain,
			Token: token,
		}

		price, perr := f.price(ctx, token)
		amount, qerr := f.quantity(ctx, chain, token, address)
		tr.Price = price
		tr.Amount = amount
		tr.USD = amount.Mul(price).Round(2)

		if token == chains.USDC {
			tr.Action = models.ActionBridge
			tr.ActionEnabled = true
		} else {
			tr.Action = models.ActionSwap
			tr.ActionEnabled = info.SwapSupported
		}

		switch {
		case qerr != nil:
			tr.Error = qerr.Error()
		case perr != nil:
			tr.Error = perr.Error()
		}
		row.Tokens = append(row.Tokens, tr)
	}

	row.USD = decimal.Zero
	for _, tr := range row.Tokens {
		row.USD = row.USD.Add(tr.USD)
	}
	return row
}

// Sum returns the total USD value of rows.
func Sum(rows []models.ChainRow) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.USD)
	}
	return total
}

// Actions lists the (chain, token, action) pairs offered by p.
func Actions(p models.Portfolio) []models.TokenRow {
	var out []models.TokenRow
	for _, c := range p.Chains {
		for _, t := range c.Tokens {
			if t.Action != models.ActionNone {
				out = append(out, t)
			}
		}
	}
	return out
}
