package main

import (
	"os"

	"github.com/odyssey-erp/ledger/cmd/ledgerctl/cli"
)

func main() {
	if err := cli.NewRootCommand(cli.DefaultRuntime()).Execute(); err != nil {
		os.Exit(1)
	}
}
