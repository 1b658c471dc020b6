// Command walletcli is a local command-line interface for deriving keys,
// exporting view keys, decomposing spend amounts into denominations, and
// working with selective-disclosure reports — the pieces of the wallet
// that need no network connection to exercise.
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strconv"

	"github.com/duststealth/core/internal/circuit"
	"github.com/duststealth/core/internal/disclosure"
	"github.com/duststealth/core/internal/keys"
	"github.com/duststealth/core/internal/viewkey"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("walletcli v%s\n", version)
	case "help":
		printUsage()
	case "keys":
		cmdKeys(os.Args[2:])
	case "viewkey":
		cmdViewKey(os.Args[2:])
	case "denom":
		cmdDenom(os.Args[2:])
	case "report":
		cmdReport(os.Args[2:])
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("walletcli - offline wallet utilities")
	fmt.Println()
	fmt.Println("Usage: walletcli <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  version               Show version information")
	fmt.Println("  keys derive <sig-hex> <pin>   Derive spending/nullifier keys")
	fmt.Println("  viewkey export <sig-hex> <pin> Print the plain view key for a wallet")
	fmt.Println("  denom decompose <amount> <ETH|USDC> <maxChunks>  Decompose an amount into denominations")
	fmt.Println("  report verify <file.json>      Verify a disclosure report's commitments")
	fmt.Println("  report csv <file.json>         Render a disclosure report as CSV")
}

func cmdKeys(args []string) {
	if len(args) < 3 || args[0] != "derive" {
		fmt.Println("Usage: walletcli keys derive <sig-hex> <pin>")
		return
	}
	sig, err := hexArg(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	k, err := keys.Derive(sig, args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("spendingKey: 0x%x\n", k.SpendingKey)
	fmt.Printf("nullifierKey: 0x%x\n", k.NullifierKey)
}

func cmdViewKey(args []string) {
	if len(args) < 2 || args[0] != "export" {
		fmt.Println("Usage: walletcli viewkey export <sig-hex> <pin>")
		return
	}
	sig, err := hexArg(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if len(args) < 3 {
		fmt.Println("Usage: walletcli viewkey export <sig-hex> <pin>")
		return
	}
	k, err := keys.Derive(sig, args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	vk, err := keys.DeriveViewKey(k)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(viewkey.SerializePlain(vk))
}

func cmdDenom(args []string) {
	if len(args) < 4 || args[0] != "decompose" {
		fmt.Println("Usage: walletcli denom decompose <amount> <ETH|USDC> <maxChunks>")
		return
	}
	amount, ok := new(big.Int).SetString(args[1], 10)
	if !ok {
		fmt.Fprintf(os.Stderr, "error: invalid amount %q\n", args[1])
		os.Exit(1)
	}
	table, err := circuit.DenomTable(args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	maxChunks, err := strconv.Atoi(args[3])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid maxChunks %q\n", args[3])
		os.Exit(1)
	}
	chunks := circuit.Decompose(amount, table, maxChunks)
	for i, c := range chunks {
		fmt.Printf("chunk %d: %s\n", i, c.String())
	}
}

func cmdReport(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: walletcli report <verify|csv> <file.json>")
		return
	}
	data, err := os.ReadFile(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	var r disclosure.Report
	if err := json.Unmarshal(data, &r); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	switch args[0] {
	case "verify":
		result := disclosure.VerifyReport(&r)
		fmt.Printf("valid: %v (%d/%d notes)\n", result.Valid, result.ValidNotes, result.TotalNotes)
		for _, e := range result.Errors {
			fmt.Println("  -", e)
		}
	case "csv":
		fmt.Print(disclosure.ExportCSV(&r))
	default:
		fmt.Printf("Unknown report command: %s\n", args[0])
	}
}

func hexArg(s string) ([]byte, error) {
	trimmed := s
	if len(trimmed) >= 2 && trimmed[0] == '0' && (trimmed[1] == 'x' || trimmed[1] == 'X') {
		trimmed = trimmed[2:]
	}
	if b, err := hex.DecodeString(trimmed); err == nil {
		return b, nil
	}
	return []byte(s), nil // fall back to raw bytes for demo signatures
}
