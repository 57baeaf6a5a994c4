package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"walletunity/pkg/models"
	"walletunity/pkg/session"
	"walletunity/pkg/utils"
)

func (m model) View() string {
	if m.showHelp {
		return m.viewHelp()
	}
	if m.adding {
		return m.viewAddAddress()
	}

	dialogs := m.session.Dialogs()
	switch {
	case dialogs.Confirmation:
		return m.viewConfirmation()
	case dialogs.SendForm:
		return m.viewSendForm()
	case dialogs.Transaction:
		return m.viewTransaction()
	case dialogs.Swap:
		return m.viewSwap()
	}

	switch m.session.Location().View {
	case session.ViewRedeem:
		return m.viewRedeem()
	case session.ViewTransactions:
		return m.viewTransactions()
	}
	if m.showGraph {
		return m.viewGraph()
	}
	return m.viewPortfolio()
}

// place centers content with the status line and footer below it.
func (m model) place(content, footer string) string {
	if m.statusMessage != "" {
		footer = lipgloss.JoinVertical(lipgloss.Center, infoStyle.Render(m.statusMessage), footer)
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer))
}

func (m model) viewPortfolio() string {
	if len(m.addresses) == 0 {
		content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center,
			titleStyle.Render("WalletUnity"),
			"\n",
			"No addresses configured.",
		))
		return m.place(content, subtleStyle.Render("a: add address • q: quit"))
	}

	active, _ := m.activeAddress()
	title := "WalletUnity"
	if len(m.addresses) > 1 {
		title = fmt.Sprintf("WalletUnity (%d/%d)", m.activeIdx+1, len(m.addresses))
	}
	addrStr := m.maskAddress(active.Address)
	if active.Name != "" {
		addrStr = fmt.Sprintf("%s (%s)", addrStr, active.Name)
	}

	var body string
	p, ok := m.activePortfolio()
	switch {
	case !ok && m.loading:
		body = fmt.Sprintf("%s Loading balances...", m.spinner.View())
	case !ok:
		body = subtleStyle.Render("No balances yet")
	default:
		body = m.renderPortfolioTable(p)
	}

	lastUpd := "never"
	if !m.lastUpdate.IsZero() {
		lastUpd = m.lastUpdate.Format("15:04:05")
	}

	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center,
		titleStyle.Render(title),
		fmt.Sprintf("Address: %s", addrStr),
		"\n",
		body,
		"\n",
		subtleStyle.Render("Updated "+lastUpd),
	))

	line1 := "↑/↓:sel • ent:bridge/swap • r:ref • g:graph • T:txs • c:cpy • a:add • P:prv • ?:hlp • q:quit"
	if len(m.addresses) > 1 {
		line1 = "Tab:cycle • " + line1
	}
	footer := subtleStyle.Render(line1 + fmt.Sprintf(" • v%s", Version))
	return m.place(content, footer)
}

func (m model) renderPortfolioTable(p models.Portfolio) string {
	header := tableHeaderStyle.Render(fmt.Sprintf("%-16s %10s %14s %12s  %-7s", "CHAIN/TOKEN", "PRICE", "AMOUNT", "USD", "ACTION"))
	var rows []string
	idx := 0
	for _, c := range p.Chains {
		rows = append(rows, chainStyle.Render(fmt.Sprintf("%-16s %10s %14s %12s", c.Name, "", "", m.displayUSD(c.USD))))
		for _, t := range c.Tokens {
			action := t.Action.String()
			if !t.ActionEnabled {
				action = subtleStyle.Render(action)
			}
			line := fmt.Sprintf("  %-14s %10s %14s %12s  %-7s",
				t.Token,
				"$"+utils.FormatDecimal(t.Price, 2),
				m.displayAmount(t.Amount),
				m.displayUSD(t.USD),
				action,
			)
			if t.Error != "" {
				line += errStyle.Render(" !")
			}
			if idx == m.rowIdx {
				line = selectedStyle.Render(line)
			}
			rows = append(rows, line)
			idx++
		}
	}
	total := totalStyle.Render(fmt.Sprintf("Total: %s", m.displayUSD(p.Total)))
	return lipgloss.JoinVertical(lipgloss.Left, header, strings.Join(rows, "\n"), "", total)
}

func (m model) viewAddAddress() string {
	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Add Address"),
		"\n",
		m.addressInputs[0].View(),
		m.addressInputs[1].View(),
	))
	return m.place(content, subtleStyle.Render("Tab to switch • Enter to save • Esc to cancel"))
}

func (m model) viewSendForm() string {
	labels := []string{"To chain", "Amount", "Recipient"}
	var inputs []string
	for i, label := range labels {
		inputs = append(inputs, fmt.Sprintf("%-10s %s", label, m.sendInputs[i].View()))
	}
	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(fmt.Sprintf("Bridge USDC from %s", m.session.Source().Name())),
		"\n",
		strings.Join(inputs, "\n"),
	))
	return m.place(content, subtleStyle.Render("Enter to next/review • Esc to cancel"))
}

func (m model) viewConfirmation() string {
	if m.plan == nil {
		return m.place(boxStyle.Render("No transfer prepared."), subtleStyle.Render("Esc to close"))
	}
	p := m.plan
	lines := []string{
		fmt.Sprintf("From:      %s", p.Source.Name()),
		fmt.Sprintf("To:        %s (domain %d)", p.Destination.Name(), p.DestinationDomain),
		fmt.Sprintf("Amount:    %s USDC", m.sendInputs[1].Value()),
		fmt.Sprintf("Recipient: %s", m.maskAddress(p.Recipient.Hex())),
		"",
		fmt.Sprintf("1. %s", p.Approve.Description),
		fmt.Sprintf("   to %s data %s", p.Approve.To.Hex(), utils.TruncateString(p.Approve.Data.String(), 24)),
		fmt.Sprintf("2. %s", p.DepositForBurn.Description),
		fmt.Sprintf("   to %s data %s", p.DepositForBurn.To.Hex(), utils.TruncateString(p.DepositForBurn.Data.String(), 24)),
		"",
		"Sign both calls in your wallet, then paste the burn transaction hash:",
		m.txInput.View(),
	}
	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Confirm Transfer"),
		"\n",
		strings.Join(lines, "\n"),
	))
	return m.place(content, subtleStyle.Render("ctrl+a/ctrl+d: copy calldata • Enter to track • Esc to cancel"))
}

func statusStyle(s models.TxStatus) string {
	switch s {
	case models.TxComplete:
		return infoStyle.Render(strings.ToUpper(string(s)))
	case models.TxFailed:
		return errStyle.Render(strings.ToUpper(string(s)))
	}
	return warnStyle.Render(strings.ToUpper(string(s)))
}

func (m model) viewTransaction() string {
	tx, err := m.tracker.Get(m.session.TxHash())
	var lines []string
	if err != nil {
		lines = []string{errStyle.Render(err.Error())}
	} else {
		lines = []string{
			fmt.Sprintf("Hash:    %s", tx.Hash),
			fmt.Sprintf("Chain:   %s", tx.Chain.Name()),
			fmt.Sprintf("Status:  %s", statusStyle(tx.Status)),
			fmt.Sprintf("Polls:   %d", tx.Polls),
			fmt.Sprintf("Elapsed: %s", time.Since(tx.CreatedAt).Round(time.Second)),
		}
		if tx.MessageHash != "" {
			lines = append(lines, fmt.Sprintf("Message: %s", shortHash(tx.MessageHash)))
		}
		if tx.Status == models.TxPending {
			step := "Waiting for the burn to be mined"
			if tx.MessageHash != "" {
				step = "Waiting for attestation"
			}
			lines = append(lines, "", fmt.Sprintf("%s %s", m.spinner.View(), step))
		}
	}
	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Transaction"),
		"\n",
		strings.Join(lines, "\n"),
	))
	return m.place(content, subtleStyle.Render("c: copy hash • o: open in explorer • enter: redeem when complete • esc: hide"))
}

func (m model) viewSwap() string {
	in := m.session.SwapInput()
	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(fmt.Sprintf("Swap %s on %s", in.Token, in.Chain.Name())),
		"\n",
		"Complete the swap in your wallet.",
		"Balances are refreshed when this dialog closes.",
	))
	return m.place(content, subtleStyle.Render("Enter/Esc to close"))
}

func (m model) viewRedeem() string {
	hash := m.session.TxHash()
	var lines []string
	if hash == "" {
		lines = []string{"No transaction selected."}
	} else {
		call, tx, err := m.redeemCall()
		lines = []string{fmt.Sprintf("Burn tx: %s", tx.Hash)}
		if tx.Hash == "" {
			lines[0] = fmt.Sprintf("Burn tx: %s", hash)
		}
		if tx.Status != "" {
			lines = append(lines, fmt.Sprintf("Status:  %s", statusStyle(tx.Status)))
		}
		if err != nil {
			lines = append(lines, "", warnStyle.Render(err.Error()))
		} else {
			lines = append(lines,
				fmt.Sprintf("Attestation: %s", utils.TruncateString(tx.Signature, 24)),
				"",
				fmt.Sprintf("Call %s", call.Description),
				fmt.Sprintf("  to   %s", call.To.Hex()),
				fmt.Sprintf("  data %s", utils.TruncateString(call.Data.String(), 40)),
			)
		}
	}
	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Redeem USDC"),
		"\n",
		strings.Join(lines, "\n"),
	))
	return m.place(content, subtleStyle.Render("c: copy receiveMessage calldata • t: transactions • q/esc: back"))
}

func (m model) viewTransactions() string {
	txs := m.tracker.List()
	header := tableHeaderStyle.Render(fmt.Sprintf("%-16s %-6s %-7s %-9s %6s", "HASH", "CHAIN", "TYPE", "STATUS", "POLLS"))
	rows := ""
	for i, tx := range txs {
		cursor := "  "
		if i == m.txListIdx {
			cursor = "> "
		}
		status := string(tx.Status)
		if !tx.Status.Terminal() && !m.tracker.Polling(tx.Hash) {
			status = "stopped"
		}
		rows += fmt.Sprintf("%s%-14s %-6s %-7s %-9s %6d\n", cursor, shortHash(tx.Hash), tx.Chain, tx.Type, status, tx.Polls)
	}
	if len(txs) == 0 {
		rows = subtleStyle.Render("No tracked transactions")
	}
	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("Transactions"), "\n", header, rows))
	return m.place(content, subtleStyle.Render("↑/↓: select • enter: open • x: stop polling • p: resume • q/esc: back"))
}

func (m model) viewGraph() string {
	header := titleStyle.Render("Portfolio History")
	var graph string
	active, _ := m.activeAddress()
	history := m.history[strings.ToLower(active.Address)]
	if len(history) > 1 && !m.privacyMode {
		width := m.width - 10
		if width < 10 {
			width = 10
		}
		height := m.height - 12
		if height < 5 {
			height = 5
		}
		graph = asciigraph.Plot(history,
			asciigraph.Height(height),
			asciigraph.Width(width),
			asciigraph.Caption("Portfolio Value History (USD)"),
		)
	} else {
		graph = "Not enough data to draw graph."
	}

	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center, header, "\n", graph))
	return m.place(content, subtleStyle.Render("g: toggle graph • q/esc: back"))
}

func (m model) viewHelp() string {
	var title string
	var shortcuts []string

	switch m.session.Location().View {
	case session.ViewRedeem:
		title = "Redeem"
		shortcuts = []string{"c: Copy receiveMessage calldata", "t: Transactions", "q/esc: Back"}
	case session.ViewTransactions:
		title = "Transactions"
		shortcuts = []string{"↑/k: Up", "↓/j: Down", "enter: Open", "x: Stop polling", "p: Resume polling", "q/esc: Back"}
	default:
		title = "Portfolio"
		shortcuts = []string{
			"↑/k ↓/j: Select token",
			"enter/b/s: Bridge USDC or swap token",
			"r: Refresh Data",
			"g: Toggle Graph",
			"T: Transaction List",
			"c: Copy Address",
			"a: Add Address",
			"P: Toggle Privacy",
			"Tab/l/Right: Next Address",
			"S-Tab/h/Left: Prev Address",
			"q: Quit",
			"?: Toggle Help",
		}
	}

	header := titleStyle.Render(fmt.Sprintf("Help: %s", title))
	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, "\n", strings.Join(shortcuts, "\n")))
	footer := subtleStyle.Render("Press '?' or 'esc' to close")

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer),
	)
}
