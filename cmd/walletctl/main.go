// Package main is a maintenance CLI for the on-disk identity wallet.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/trapeze-h2020/ledger-gateway/internal/wallet"
)

const usage = `walletctl manages the ledger gateway identity wallet.

Usage: walletctl [options] <command> [args]

Commands:
  list              list enrolled identity labels
  remove <label>    remove one identity
  clean             remove every identity except those passed with -keep

Options:
`

func main() {
	walletDir := flag.String("wallet", os.Getenv("WALLET_DIR"), "wallet directory (defaults to WALLET_DIR)")
	keep := flag.String("keep", "admin", "comma-free label spared by clean")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *walletDir == "" {
		fmt.Fprintln(os.Stderr, "walletctl: wallet directory is required (set -wallet or WALLET_DIR)")
		os.Exit(2)
	}
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	// MSP ID is irrelevant for maintenance operations
	store := wallet.New(*walletDir, "")

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "list":
		err = list(store)
	case "remove":
		if flag.NArg() != 2 {
			fmt.Fprintln(os.Stderr, "walletctl: remove takes exactly one label")
			os.Exit(2)
		}
		err = store.Remove(flag.Arg(1))
	case "clean":
		err = clean(store, *keep)
	default:
		fmt.Fprintf(os.Stderr, "walletctl: unknown command %q\n", cmd)
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "walletctl:", err)
		os.Exit(1)
	}
}

func list(store *wallet.Wallet) error {
	labels, err := store.List()
	if err != nil {
		return err
	}
	for _, label := range labels {
		fmt.Println(label)
	}
	return nil
}

// clean removes every enrolled identity except the spared label. The admin
// identity is spared by default so the wallet stays usable for enrollment.
func clean(store *wallet.Wallet, spare string) error {
	labels, err := store.List()
	if err != nil {
		return err
	}
	for _, label := range labels {
		if label == spare {
			continue
		}
		if err := store.Remove(label); err != nil {
			return fmt.Errorf("remove %s: %w", label, err)
		}
		fmt.Println("removed", label)
	}
	return nil
}
