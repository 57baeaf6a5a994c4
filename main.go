package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"walletunity/pkg/chains"
	"walletunity/pkg/config"
	"walletunity/pkg/metrics"
	"walletunity/pkg/models"
	"walletunity/pkg/server"
	"walletunity/pkg/tui"

	"github.com/ethereum/go-ethereum/common"
)

// Version should be set during build
var Version = "dev"

func main() {
	testFlag := flag.Bool("t", false, "Test configuration and exit")
	testLongFlag := flag.Bool("test", false, "Test configuration and exit")
	jsonFlag := flag.Bool("json", false, "Output results as JSON")
	configFlag := flag.String("config", "", "Path to configuration file")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	serverFlag := flag.Bool("server", false, "Run in headless server mode")
	portFlag := flag.Int("port", 8080, "Port for API server")
	addressFlag := flag.String("address", "", "Print the portfolio of an address and exit")
	txFlag := flag.String("tx", "", "Poll a bridge transaction until it completes")
	chainFlag := flag.String("chain", string(chains.Ethereum), "Chain of the -tx transaction")
	typeFlag := flag.String("type", string(models.TxSend), "Type of the -tx transaction (send or redeem)")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("walletunity version %s\n", Version)
		os.Exit(0)
	}

	cfgInput := *configFlag
	if cfgInput == "" && len(flag.Args()) > 0 {
		cfgInput = flag.Args()[0]
	}
	path, err := config.GetConfigPath(cfgInput)
	if err != nil {
		fmt.Printf("Error determining config path: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfigFromFile(path)
	if err != nil {
		fmt.Printf("Error loading config from %s: %v\n", path, err)
		os.Exit(1)
	}
	if err := cfg.ApplyEnv(); err != nil {
		fmt.Printf("Error reading environment: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *testFlag || *testLongFlag {
		var out io.Writer = os.Stdout
		if *jsonFlag {
			out = io.Discard
		}
		report := testConfig(ctx, cfg, path, out)
		if *jsonFlag {
			writeJSON(report)
		}
		if !report.ValidStructure {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// The TUI owns the terminal, so its logs go to a file.
	logOut := io.Writer(os.Stderr)
	tuiMode := !*serverFlag && *addressFlag == "" && *txFlag == ""
	if tuiMode {
		f, err := os.OpenFile(path+".log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			logOut = io.Discard
		} else {
			defer f.Close()
			logOut = f
		}
	}
	log := newLogger(cfg.LogLevel, logOut)
	metrics.Register(log)

	a := newApp(cfg, log)
	defer a.Close()

	switch {
	case *addressFlag != "":
		if !common.IsHexAddress(*addressFlag) {
			fmt.Printf("Error: invalid address %q\n", *addressFlag)
			os.Exit(1)
		}
		p := a.watcher.Fetch(ctx, *addressFlag)
		if *jsonFlag {
			writeJSON(p)
		} else {
			printPortfolio(os.Stdout, p, cfg.FiatDecimals, cfg.TokenDecimals)
		}
		return

	case *txFlag != "":
		chain, err := chains.ParseChain(*chainFlag)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		tx, err := a.trackOnce(ctx, *txFlag, chain, models.TxType(strings.ToLower(*typeFlag)))
		if *jsonFlag {
			writeJSON(tx)
		} else if tx.Hash != "" {
			fmt.Printf("%s on %s: %s\n", tx.Hash, chain.Name(), tx.Status)
			if tx.Signature != "" {
				fmt.Printf("Attestation: %s\n", tx.Signature)
			}
		}
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	a.watcher.Start(ctx)

	srv := server.NewServer(a.watcher, a.tracker, log)
	go func() {
		if err := srv.Start(*portFlag); err != nil {
			log.Errorf("Server error: %v", err)
		}
	}()

	if *serverFlag {
		log.Infof("Running in server mode on port %d...", *portFlag)
		<-ctx.Done()
		return
	}

	if err := tui.Start(a.watcher, a.tracker, cfg, path, Version); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func writeJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
