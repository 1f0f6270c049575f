package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"bloomsocial/gateway/middleware"
)

func runAuthCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] != "issue" {
		fmt.Fprintln(stderr, "Usage: bloom-cli auth issue --subject <addr> [--secret S] [--issuer bloomd] [--ttl 1h]")
		return 1
	}
	fs := newFlagSet("auth issue", stderr)
	subject := fs.String("subject", "", "account address the token authorises")
	secret := fs.String("secret", os.Getenv("BLOOM_JWT_SECRET"), "HMAC secret shared with the node")
	issuer := fs.String("issuer", "bloomd", "token issuer")
	audience := fs.String("audience", "", "optional token audience")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}
	if !common.IsHexAddress(*subject) {
		return printError(stderr, "--subject must be a hex address")
	}
	if strings.TrimSpace(*secret) == "" {
		return printError(stderr, "--secret or BLOOM_JWT_SECRET is required")
	}
	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:    true,
		HMACSecret: *secret,
		Issuer:     *issuer,
		Audience:   *audience,
		TokenTTL:   *ttl,
	}, nil)
	token, err := auth.Issue(common.HexToAddress(*subject).Hex())
	if err != nil {
		return printError(stderr, err.Error())
	}
	fmt.Fprintln(stdout, token)
	return 0
}
