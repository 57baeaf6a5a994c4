package tui

import (
	"strings"
	"time"

	"walletunity/pkg/cctp"
	"walletunity/pkg/config"
	"walletunity/pkg/models"
	"walletunity/pkg/session"
	"walletunity/pkg/tracker"
	"walletunity/pkg/watcher"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Version is set by Start()
var Version = "dev"

// maxHistory bounds the per-address total history drawn by the graph.
const maxHistory = 720

// --- Messages ---

type clearStatusMsg struct{}
type uiTickMsg time.Time

// --- Model ---

type model struct {
	watcher    *watcher.Watcher
	tracker    *tracker.Tracker
	sub        watcher.Subscriber
	session    *session.Session
	config     config.Config
	configPath string

	addresses  []config.AddressConfig
	activeIdx  int
	portfolios map[string]models.Portfolio
	history    map[string][]float64
	rowIdx     int

	// destinations remembers the destination chain of every send submitted
	// from this terminal, keyed by tx hash.
	destinations map[string]string
	plan         *cctp.BridgePlan

	width         int
	height        int
	loading       bool
	lastUpdate    time.Time
	spinner       spinner.Model
	statusMessage string
	privacyMode   bool
	showHelp      bool
	showGraph     bool
	txListIdx     int

	adding        bool
	addressInputs []textinput.Model
	sendInputs    []textinput.Model
	sendFocus     int
	txInput       textinput.Model
}

func initialModel(w *watcher.Watcher, t *tracker.Tracker, cfg config.Config, configPath string) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ais := make([]textinput.Model, 2)
	for i := range ais {
		ais[i] = textinput.New()
		ais[i].Width = 44
	}
	ais[0].Placeholder = "0x..."
	ais[1].Placeholder = "Tag/Name (Optional)"

	sis := make([]textinput.Model, 3)
	for i := range sis {
		sis[i] = textinput.New()
		sis[i].Width = 44
	}
	sis[0].Placeholder = "Destination chain (ETH, OP, AVAX, ARB)"
	sis[1].Placeholder = "Amount (USDC)"
	sis[2].Placeholder = "Recipient (0x...)"

	txi := textinput.New()
	txi.Placeholder = "Submitted transaction hash (0x...)"
	txi.Width = 68

	var addresses []config.AddressConfig
	for _, a := range cfg.Addresses {
		if strings.TrimSpace(a.Address) != "" {
			addresses = append(addresses, a)
		}
	}

	return model{
		watcher:       w,
		tracker:       t,
		session:       session.New(session.Location{}, w.Refresh),
		config:        cfg,
		configPath:    configPath,
		addresses:     addresses,
		portfolios:    make(map[string]models.Portfolio),
		history:       make(map[string][]float64),
		destinations:  make(map[string]string),
		loading:       len(addresses) > 0,
		spinner:       s,
		addressInputs: ais,
		sendInputs:    sis,
		txInput:       txi,
	}
}

func (m model) Init() tea.Cmd {
	var cmds []tea.Cmd
	cmds = append(cmds, listenForEvents(m.sub))
	cmds = append(cmds, m.spinner.Tick)
	cmds = append(cmds, tea.Tick(time.Second, func(t time.Time) tea.Msg { return uiTickMsg(t) }))
	return tea.Batch(cmds...)
}
