package main

import (
	"fmt"
	"io"
	"strings"
)

func contentUsage() string {
	return strings.Join([]string{
		"Usage: bloom-cli content <subcommand> [flags]",
		"  create --caller <addr> --like-amount <wei> --duration <seconds> [--uri <uri>] [--hash 0x.. | --file <path>]",
		"  like --caller <addr> --id <contentId>",
		"  claim-author --caller <addr> --id <contentId>",
		"  claim-liker --caller <addr> --id <contentId>",
		"  get --id <contentId>",
		"  count",
		"  like-info --id <contentId> --liker <addr>",
		"  estimate --id <contentId> --liker <addr>",
	}, "\n")
}

func runContentCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, contentUsage())
		return 1
	}
	switch args[0] {
	case "create":
		return runContentCreate(args[1:], stdout, stderr)
	case "like":
		return runContentAction("bloom_like", "content like", args[1:], stdout, stderr)
	case "claim-author":
		return runContentAction("bloom_claimAuthorReward", "content claim-author", args[1:], stdout, stderr)
	case "claim-liker":
		return runContentAction("bloom_claimLikerReward", "content claim-liker", args[1:], stdout, stderr)
	case "get":
		fs := newFlagSet("content get", stderr)
		id := fs.Uint64("id", 0, "content id")
		if err := fs.Parse(args[1:]); err != nil {
			return 1
		}
		if !flagWasSet(fs, "id") {
			return printError(stderr, "--id is required")
		}
		return invoke("bloom_getContent", map[string]interface{}{"contentId": *id}, false, stdout, stderr)
	case "count":
		return invoke("bloom_contentCount", nil, false, stdout, stderr)
	case "like-info":
		return runLikerQuery("bloom_getLikeInfo", "content like-info", args[1:], stdout, stderr)
	case "estimate":
		return runLikerQuery("bloom_getEstimatedReward", "content estimate", args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown content subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, contentUsage())
		return 1
	}
}

func runContentCreate(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("content create", stderr)
	var (
		caller     string
		likeAmount string
		duration   uint64
		uri        string
		hash       string
		file       string
	)
	fs.StringVar(&caller, "caller", "", "author address")
	fs.StringVar(&likeAmount, "like-amount", "", "stake per like in wei")
	fs.Uint64Var(&duration, "duration", 0, "like window in seconds")
	fs.StringVar(&uri, "uri", "", "content URI, stored verbatim")
	fs.StringVar(&hash, "hash", "", "optional 0x-prefixed 32 byte content hash")
	fs.StringVar(&file, "file", "", "compute the content hash from a local file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if !requireFlags(stderr, map[string]string{"caller": caller, "like-amount": likeAmount}) {
		return 1
	}
	if hash != "" && file != "" {
		return printError(stderr, "--hash and --file are mutually exclusive")
	}
	if file != "" {
		digest, err := fileDigest(file)
		if err != nil {
			return printError(stderr, err.Error())
		}
		hash = digest
	}
	params := map[string]interface{}{
		"caller":          caller,
		"likeAmount":      likeAmount,
		"durationSeconds": duration,
		"contentUri":      uri,
	}
	if hash != "" {
		params["contentHash"] = hash
	}
	return invoke("bloom_createContent", params, true, stdout, stderr)
}

func runContentAction(method, name string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(name, stderr)
	caller := fs.String("caller", "", "acting address")
	id := fs.Uint64("id", 0, "content id")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if !requireFlags(stderr, map[string]string{"caller": *caller}) {
		return 1
	}
	if !flagWasSet(fs, "id") {
		return printError(stderr, "--id is required")
	}
	return invoke(method, map[string]interface{}{"caller": *caller, "contentId": *id}, true, stdout, stderr)
}

func runLikerQuery(method, name string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(name, stderr)
	id := fs.Uint64("id", 0, "content id")
	liker := fs.String("liker", "", "liker address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if !requireFlags(stderr, map[string]string{"liker": *liker}) {
		return 1
	}
	if !flagWasSet(fs, "id") {
		return printError(stderr, "--id is required")
	}
	return invoke(method, map[string]interface{}{"contentId": *id, "liker": *liker}, false, stdout, stderr)
}
