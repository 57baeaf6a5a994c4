package tui

import (
	"fmt"
	"strings"
	"time"

	"walletunity/pkg/config"
	"walletunity/pkg/models"
	"walletunity/pkg/session"
	"walletunity/pkg/watcher"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
)

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

func (m *model) setStatus(msg string) tea.Cmd {
	m.statusMessage = msg
	return clearStatusAfter(2 * time.Second)
}

func (m *model) copyToClipboard(value, what string) tea.Cmd {
	if err := clipboard.WriteAll(value); err != nil {
		return m.setStatus("Failed to copy to clipboard")
	}
	return m.setStatus(fmt.Sprintf("%s copied to clipboard!", what))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case watcher.Event:
		cmds = append(cmds, listenForEvents(m.sub))
		if status := m.applyEvent(msg); status != "" {
			cmds = append(cmds, m.setStatus(status))
		}

	case tea.KeyMsg:
		cmd := m.handleKey(msg)
		cmds = append(cmds, cmd)

	case uiTickMsg:
		cmds = append(cmds, tea.Tick(time.Second, func(t time.Time) tea.Msg { return uiTickMsg(t) }))

	case clearStatusMsg:
		m.statusMessage = ""
	}

	if m.loading {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		return tea.Quit
	}

	dialogs := m.session.Dialogs()
	inputMode := m.adding || dialogs.SendForm || dialogs.Confirmation
	if !inputMode && msg.String() == "?" {
		m.showHelp = !m.showHelp
		return nil
	}
	if m.showHelp {
		if msg.String() == "q" || msg.String() == "esc" {
			m.showHelp = false
		}
		return nil
	}

	switch {
	case m.adding:
		return m.handleAddAddress(msg)
	case dialogs.Confirmation:
		return m.handleConfirmation(msg)
	case dialogs.SendForm:
		return m.handleSendForm(msg)
	case dialogs.Transaction:
		return m.handleTransactionDialog(msg)
	case dialogs.Swap:
		if msg.String() == "esc" || msg.String() == "q" || msg.String() == "enter" {
			m.session.CloseSwap()
			m.loading = true
			return m.setStatus("Refreshing portfolio...")
		}
		return nil
	}

	switch m.session.Location().View {
	case session.ViewRedeem:
		return m.handleRedeem(msg)
	case session.ViewTransactions:
		return m.handleTransactions(msg)
	}
	return m.handlePortfolio(msg)
}

func (m *model) handlePortfolio(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q":
		if m.showGraph {
			m.showGraph = false
			return nil
		}
		return tea.Quit
	case "esc":
		m.showGraph = false
	case "g":
		m.showGraph = !m.showGraph
	case "P":
		m.privacyMode = !m.privacyMode
	case "r":
		m.loading = true
		m.watcher.Refresh()
		return m.setStatus("Refreshing data...")
	case "T":
		m.session.Navigate(session.Location{View: session.ViewTransactions})
		m.txListIdx = 0
	case "a":
		m.adding = true
		for i := range m.addressInputs {
			m.addressInputs[i].SetValue("")
		}
		m.addressInputs[0].Focus()
		return textinput.Blink
	case "c":
		if a, ok := m.activeAddress(); ok {
			return m.copyToClipboard(a.Address, "Full address")
		}
	case "up", "k":
		if m.rowIdx > 0 {
			m.rowIdx--
		}
	case "down", "j":
		if m.rowIdx < len(m.tokenRows())-1 {
			m.rowIdx++
		}
	case "tab", "right", "l":
		if len(m.addresses) > 0 {
			m.activeIdx = (m.activeIdx + 1) % len(m.addresses)
			m.rowIdx = 0
		}
	case "shift+tab", "left", "h":
		if len(m.addresses) > 0 {
			m.activeIdx = (m.activeIdx - 1 + len(m.addresses)) % len(m.addresses)
			m.rowIdx = 0
		}
	case "enter", "b", "s":
		return m.startAction()
	}
	return nil
}

// startAction opens the dialog for the action of the selected token row.
func (m *model) startAction() tea.Cmd {
	row, ok := m.selectedRow()
	if !ok {
		return nil
	}
	switch row.Action {
	case models.ActionBridge:
		m.session.Bridge(row.Chain)
		m.sendFocus = 0
		for i := range m.sendInputs {
			m.sendInputs[i].SetValue("")
			m.sendInputs[i].Blur()
		}
		if a, ok := m.activeAddress(); ok {
			m.sendInputs[2].SetValue(a.Address)
		}
		m.sendInputs[0].Focus()
		return textinput.Blink
	case models.ActionSwap:
		if !row.ActionEnabled {
			return m.setStatus(fmt.Sprintf("Swap is not available on %s", row.Chain.Name()))
		}
		m.session.Swap(row.Chain, row.Token)
	}
	return nil
}

func (m *model) handleAddAddress(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.adding = false
		return nil
	case "tab", "shift+tab", "up", "down":
		if m.addressInputs[0].Focused() {
			m.addressInputs[0].Blur()
			m.addressInputs[1].Focus()
		} else {
			m.addressInputs[1].Blur()
			m.addressInputs[0].Focus()
		}
		return textinput.Blink
	case "enter":
		addr := strings.TrimSpace(m.addressInputs[0].Value())
		if !common.IsHexAddress(addr) {
			return m.setStatus("Invalid address")
		}
		m.adding = false
		m.addressInputs[0].Blur()
		m.addressInputs[1].Blur()
		return m.addAddress(addr, strings.TrimSpace(m.addressInputs[1].Value()))
	}

	var cmd tea.Cmd
	for i := range m.addressInputs {
		if m.addressInputs[i].Focused() {
			m.addressInputs[i], cmd = m.addressInputs[i].Update(msg)
		}
	}
	return cmd
}

func (m *model) addAddress(addr, name string) tea.Cmd {
	if !m.config.AddAddress(addr, name) {
		return m.setStatus("Address already watched")
	}
	m.addresses = append(m.addresses, config.AddressConfig{Address: addr, Name: name})
	m.activeIdx = len(m.addresses) - 1
	m.rowIdx = 0
	m.watcher.AddAddress(addr)
	m.loading = true
	m.watcher.Refresh()

	if m.configPath != "" {
		if err := config.SaveConfig(m.config, m.configPath); err != nil {
			return m.setStatus(fmt.Sprintf("Error saving config: %v", err))
		}
	}
	return m.setStatus("Address added")
}

func (m *model) handleSendForm(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.session.CloseSendForm()
		return nil
	case "tab", "down":
		m.focusSend(m.sendFocus + 1)
		return textinput.Blink
	case "shift+tab", "up":
		m.focusSend(m.sendFocus - 1)
		return textinput.Blink
	case "enter":
		if m.sendFocus < len(m.sendInputs)-1 {
			m.focusSend(m.sendFocus + 1)
			return textinput.Blink
		}
		plan, err := m.buildPlan()
		if err != nil {
			return m.setStatus(fmt.Sprintf("Invalid transfer: %v", err))
		}
		m.plan = &plan
		m.session.Next()
		m.txInput.SetValue("")
		m.txInput.Focus()
		return textinput.Blink
	}

	var cmd tea.Cmd
	m.sendInputs[m.sendFocus], cmd = m.sendInputs[m.sendFocus].Update(msg)
	return cmd
}

func (m *model) focusSend(i int) {
	n := len(m.sendInputs)
	m.sendInputs[m.sendFocus].Blur()
	m.sendFocus = (i%n + n) % n
	m.sendInputs[m.sendFocus].Focus()
}

func (m *model) handleConfirmation(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.session.CloseConfirmation()
		m.plan = nil
		return nil
	case "ctrl+a":
		if m.plan != nil {
			return m.copyToClipboard(m.plan.Approve.Data.String(), "Approve calldata")
		}
	case "ctrl+d":
		if m.plan != nil {
			return m.copyToClipboard(m.plan.DepositForBurn.Data.String(), "depositForBurn calldata")
		}
	case "enter":
		if m.plan == nil {
			return nil
		}
		tx, err := m.tracker.Track(m.txInput.Value(), m.plan.Source, models.TxSend)
		if err != nil {
			return m.setStatus(fmt.Sprintf("Cannot track transaction: %v", err))
		}
		m.destinations[tx.Hash] = string(m.plan.Destination)
		m.txInput.Blur()
		m.session.Confirm(tx.Hash)
		return m.setStatus("Tracking " + shortHash(tx.Hash))
	}

	var cmd tea.Cmd
	m.txInput, cmd = m.txInput.Update(msg)
	return cmd
}

func (m *model) handleTransactionDialog(msg tea.KeyMsg) tea.Cmd {
	tx, err := m.tracker.Get(m.session.TxHash())
	switch msg.String() {
	case "c":
		if err == nil {
			return m.copyToClipboard(tx.Hash, "Transaction hash")
		}
	case "o":
		if err != nil {
			return nil
		}
		url, err := explorerTxURL(tx.Chain, tx.Hash)
		if err == nil {
			err = openBrowser(url)
		}
		if err != nil {
			return m.setStatus(fmt.Sprintf("Failed to open browser: %v", err))
		}
		return m.setStatus("Opened in browser")
	case "enter":
		if err == nil && tx.Status == models.TxComplete {
			m.session.Complete()
		}
	case "esc", "q":
		// Closing keeps the tx in the location; polling continues.
		m.session.CloseTransaction()
	}
	return nil
}

func (m *model) handleRedeem(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "esc", "backspace":
		if !m.session.Back() {
			m.session.Navigate(session.Location{View: session.ViewPortfolio})
		}
	case "c":
		call, _, err := m.redeemCall()
		if err != nil {
			return m.setStatus(err.Error())
		}
		return m.copyToClipboard(call.Data.String(), "receiveMessage calldata")
	case "t":
		m.session.Navigate(session.Location{View: session.ViewTransactions})
	}
	return nil
}

func (m *model) handleTransactions(msg tea.KeyMsg) tea.Cmd {
	txs := m.tracker.List()
	switch msg.String() {
	case "q", "esc", "backspace":
		if !m.session.Back() {
			m.session.Navigate(session.Location{View: session.ViewPortfolio})
		}
	case "up", "k":
		if m.txListIdx > 0 {
			m.txListIdx--
		}
	case "down", "j":
		if m.txListIdx < len(txs)-1 {
			m.txListIdx++
		}
	case "enter":
		if m.txListIdx < len(txs) {
			tx := txs[m.txListIdx]
			loc, _ := session.ParseLocation("/?" + session.TxHashParam + "=" + tx.Hash)
			m.session.Navigate(loc)
			m.session.Observe(tx)
		}
	case "x":
		if m.txListIdx < len(txs) {
			if err := m.tracker.Cancel(txs[m.txListIdx].Hash); err != nil {
				return m.setStatus(err.Error())
			}
			return m.setStatus("Stopped polling")
		}
	case "p":
		if m.txListIdx < len(txs) {
			tx := txs[m.txListIdx]
			if _, err := m.tracker.Track(tx.Hash, tx.Chain, tx.Type); err != nil {
				return m.setStatus(err.Error())
			}
			if m.tracker.Polling(tx.Hash) {
				return m.setStatus("Polling " + shortHash(tx.Hash))
			}
		}
	}
	return nil
}
