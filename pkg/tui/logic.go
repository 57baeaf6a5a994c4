package tui

import (
	"fmt"
	"strings"

	"walletunity/pkg/cctp"
	"walletunity/pkg/chains"
	"walletunity/pkg/config"
	"walletunity/pkg/models"
	"walletunity/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

func (m model) activeAddress() (config.AddressConfig, bool) {
	if m.activeIdx < 0 || m.activeIdx >= len(m.addresses) {
		return config.AddressConfig{}, false
	}
	return m.addresses[m.activeIdx], true
}

func (m model) activePortfolio() (models.Portfolio, bool) {
	a, ok := m.activeAddress()
	if !ok {
		return models.Portfolio{}, false
	}
	p, ok := m.portfolios[strings.ToLower(a.Address)]
	return p, ok
}

// tokenRows flattens the active portfolio in display order.
func (m model) tokenRows() []models.TokenRow {
	p, ok := m.activePortfolio()
	if !ok {
		return nil
	}
	var rows []models.TokenRow
	for _, c := range p.Chains {
		rows = append(rows, c.Tokens...)
	}
	return rows
}

func (m model) selectedRow() (models.TokenRow, bool) {
	rows := m.tokenRows()
	if m.rowIdx < 0 || m.rowIdx >= len(rows) {
		return models.TokenRow{}, false
	}
	return rows[m.rowIdx], true
}

func appendHistory(h []float64, v float64) []float64 {
	h = append(h, v)
	if len(h) > maxHistory {
		h = h[len(h)-maxHistory:]
	}
	return h
}

// applyEvent folds a hub event into the model and returns a status line, if
// the event deserves one.
func (m *model) applyEvent(ev watcher.Event) string {
	switch ev.Type {
	case watcher.EventPortfolioUpdated:
		p, ok := ev.Data.(models.Portfolio)
		if !ok {
			return ""
		}
		key := strings.ToLower(p.Address)
		m.portfolios[key] = p
		total, _ := p.Total.Float64()
		m.history[key] = appendHistory(m.history[key], total)
		m.loading = false
		m.lastUpdate = p.UpdatedAt
		if rows := m.tokenRows(); m.rowIdx >= len(rows) {
			m.rowIdx = 0
		}

	case watcher.EventTransactionUpdated, watcher.EventTransactionComplete:
		tx, ok := ev.Data.(models.Transaction)
		if !ok || !strings.EqualFold(tx.Hash, m.session.TxHash()) {
			return ""
		}
		if m.session.Observe(tx) {
			return "Attestation received, ready to redeem"
		}
		if tx.Status == models.TxFailed {
			return fmt.Sprintf("Transaction %s failed", shortHash(tx.Hash))
		}
	}
	return ""
}

// buildPlan validates the send form against the source chain of the session.
func (m model) buildPlan() (cctp.BridgePlan, error) {
	dest, err := chains.ParseChain(strings.TrimSpace(m.sendInputs[0].Value()))
	if err != nil {
		return cctp.BridgePlan{}, err
	}
	return cctp.Plan(cctp.TransferRequest{
		Source:      m.session.Source(),
		Destination: dest,
		Amount:      strings.TrimSpace(m.sendInputs[1].Value()),
		Recipient:   strings.TrimSpace(m.sendInputs[2].Value()),
	})
}

// redeemCall builds the receiveMessage call for the session's transaction.
func (m model) redeemCall() (cctp.Call, models.Transaction, error) {
	tx, err := m.tracker.Get(m.session.TxHash())
	if err != nil {
		return cctp.Call{}, tx, err
	}
	if !tx.HasSignature() {
		return cctp.Call{}, tx, fmt.Errorf("waiting for attestation")
	}
	dest, ok := m.destinations[tx.Hash]
	if !ok {
		return cctp.Call{}, tx, fmt.Errorf("unknown destination for %s", shortHash(tx.Hash))
	}
	destChain, err := chains.ParseChain(dest)
	if err != nil {
		return cctp.Call{}, tx, err
	}
	message, err := hexutil.Decode(tx.Message)
	if err != nil {
		return cctp.Call{}, tx, err
	}
	sig, err := hexutil.Decode(tx.Signature)
	if err != nil {
		return cctp.Call{}, tx, err
	}
	call, err := cctp.ReceiveMessage(destChain, message, sig)
	return call, tx, err
}

func listenForEvents(sub watcher.Subscriber) tea.Cmd {
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-sub
		if !ok {
			return nil
		}
		return ev
	}
}
