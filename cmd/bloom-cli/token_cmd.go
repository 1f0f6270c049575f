package main

import (
	"fmt"
	"io"
	"strings"
)

func tokenUsage() string {
	return strings.Join([]string{
		"Usage: bloom-cli token <subcommand> [flags]",
		"  info",
		"  balance --address <addr>",
		"  allowance --owner <addr> --spender <addr>",
		"  approve --caller <addr> --spender <addr> --amount <wei>",
		"  transfer --caller <addr> --to <addr> --amount <wei>",
		"  faucet --caller <addr>",
	}, "\n")
}

func runTokenCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, tokenUsage())
		return 1
	}
	fs := newFlagSet("token "+args[0], stderr)
	var (
		address string
		owner   string
		spender string
		caller  string
		to      string
		amount  string
	)
	switch args[0] {
	case "info":
		return invoke("token_info", nil, false, stdout, stderr)
	case "balance":
		fs.StringVar(&address, "address", "", "account address")
		if err := fs.Parse(args[1:]); err != nil {
			return 1
		}
		if !requireFlags(stderr, map[string]string{"address": address}) {
			return 1
		}
		return invoke("token_balanceOf", map[string]interface{}{"address": address}, false, stdout, stderr)
	case "allowance":
		fs.StringVar(&owner, "owner", "", "owner address")
		fs.StringVar(&spender, "spender", "", "spender address")
		if err := fs.Parse(args[1:]); err != nil {
			return 1
		}
		if !requireFlags(stderr, map[string]string{"owner": owner, "spender": spender}) {
			return 1
		}
		return invoke("token_allowance", map[string]interface{}{"owner": owner, "spender": spender}, false, stdout, stderr)
	case "approve":
		fs.StringVar(&caller, "caller", "", "owner address")
		fs.StringVar(&spender, "spender", "", "spender address")
		fs.StringVar(&amount, "amount", "", "allowance in wei")
		if err := fs.Parse(args[1:]); err != nil {
			return 1
		}
		if !requireFlags(stderr, map[string]string{"caller": caller, "spender": spender, "amount": amount}) {
			return 1
		}
		return invoke("token_approve", map[string]interface{}{"caller": caller, "spender": spender, "amount": amount}, true, stdout, stderr)
	case "transfer":
		fs.StringVar(&caller, "caller", "", "sender address")
		fs.StringVar(&to, "to", "", "recipient address")
		fs.StringVar(&amount, "amount", "", "amount in wei")
		if err := fs.Parse(args[1:]); err != nil {
			return 1
		}
		if !requireFlags(stderr, map[string]string{"caller": caller, "to": to, "amount": amount}) {
			return 1
		}
		return invoke("token_transfer", map[string]interface{}{"caller": caller, "to": to, "amount": amount}, true, stdout, stderr)
	case "faucet":
		fs.StringVar(&caller, "caller", "", "recipient address")
		if err := fs.Parse(args[1:]); err != nil {
			return 1
		}
		if !requireFlags(stderr, map[string]string{"caller": caller}) {
			return 1
		}
		return invoke("token_faucet", map[string]interface{}{"caller": caller}, true, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown token subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, tokenUsage())
		return 1
	}
}

func runEventsCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("events", stderr)
	cursor := fs.Uint64("cursor", 0, "return records after this sequence")
	limit := fs.Int("limit", 100, "maximum records to return")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	return invoke("ledger_events", map[string]interface{}{"cursor": *cursor, "limit": *limit}, false, stdout, stderr)
}
