package tui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"walletunity/pkg/chains"
	"walletunity/pkg/utils"

	"github.com/shopspring/decimal"
)

func (m model) displayUSD(d decimal.Decimal) string {
	if m.privacyMode {
		return "$****"
	}
	return "$" + utils.FormatDecimal(d, int32(m.config.FiatDecimals))
}

func (m model) displayAmount(d decimal.Decimal) string {
	if m.privacyMode {
		return "****"
	}
	return utils.FormatDecimal(d, int32(m.config.TokenDecimals))
}

func (m model) maskAddress(addr string) string {
	if m.privacyMode {
		return "0x**...**"
	}
	return addr
}

func shortHash(h string) string {
	return utils.ShortHash(h)
}

func explorerTxURL(chain chains.Chain, hash string) (string, error) {
	info, err := chains.Info(chain)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/tx/%s", strings.TrimRight(info.ExplorerURL, "/"), hash), nil
}

// openBrowser opens the specified URL in the default browser.
func openBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start"}
	case "darwin":
		cmd = "open"
	default: // "linux", "freebsd", "openbsd", "netbsd"
		cmd = "xdg-open"
	}
	args = append(args, url)
	return exec.Command(cmd, args...).Start()
}
