package main

import (
	"fmt"
	"os"

	"provenance-service/config"
	"provenance-service/internal/ledger"
	"provenance-service/internal/util"
)

func main() {
	cfg := config.Load()
	if err := util.InitLogger(cfg.Server.Env, "warn"); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer util.SyncLogger()

	client := ledger.NewClient(ledger.NewInvoker(cfg.InvokerConfig(), ledger.ExecRunner{}))
	if err := newRootCommand(client).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
