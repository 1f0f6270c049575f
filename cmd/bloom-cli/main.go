package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

var rpcEndpoint = defaultRPCEndpoint() // Defaults to localhost, can be overridden via BLOOM_RPC_URL or --rpc flag
var rpcAuthToken = os.Getenv("BLOOM_RPC_TOKEN")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	args, err := applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if len(args) < 1 {
		printUsage(stdout)
		return 0
	}
	switch args[0] {
	case "content":
		return runContentCommand(args[1:], stdout, stderr)
	case "follow", "unfollow", "is-following":
		return runFollowCommand(args[0], args[1:], stdout, stderr)
	case "user":
		return runUserCommand(args[1:], stdout, stderr)
	case "token":
		return runTokenCommand(args[1:], stdout, stderr)
	case "events":
		return runEventsCommand(args[1:], stdout, stderr)
	case "auth":
		return runAuthCommand(args[1:], stdout, stderr)
	case "digest":
		return runDigestCommand(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return 1
	}
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("BLOOM_RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8545"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--rpc" || arg == "--token":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for %s", arg)
			}
			if arg == "--rpc" {
				rpcEndpoint = args[i+1]
			} else {
				rpcAuthToken = args[i+1]
			}
			i++
		case strings.HasPrefix(arg, "--rpc="):
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
		case strings.HasPrefix(arg, "--token="):
			rpcAuthToken = strings.TrimPrefix(arg, "--token=")
		default:
			out = append(out, arg)
		}
	}
	return out, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: bloom-cli [--rpc URL] [--token JWT] <command> [arguments]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Mutating commands need a bearer token whose subject is the caller address;")
	fmt.Fprintln(w, "set BLOOM_RPC_TOKEN or pass --token. `auth issue` mints one from the node secret.")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  content create|like|claim-author|claim-liker|get|count|like-info|estimate")
	fmt.Fprintln(w, "  follow --caller <addr> --target <addr>")
	fmt.Fprintln(w, "  unfollow --caller <addr> --target <addr>")
	fmt.Fprintln(w, "  is-following --follower <addr> --followee <addr>")
	fmt.Fprintln(w, "  user --address <addr>              - Profile aggregates")
	fmt.Fprintln(w, "  token info|balance|allowance|approve|transfer|faucet")
	fmt.Fprintln(w, "  events [--cursor N] [--limit N]    - Page through the ledger event log")
	fmt.Fprintln(w, "  auth issue --subject <addr>        - Issue an HS256 bearer token")
	fmt.Fprintln(w, "  digest <file>                      - Print the content hash of a file")
}
