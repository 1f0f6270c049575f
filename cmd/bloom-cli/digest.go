package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"lukechampine.com/blake3"
)

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	hasher := blake3.New(32, nil)
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return "0x" + hex.EncodeToString(hasher.Sum(nil)), nil
}

func runDigestCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "Usage: bloom-cli digest <file>")
		return 1
	}
	digest, err := fileDigest(args[0])
	if err != nil {
		return printError(stderr, err.Error())
	}
	fmt.Fprintln(stdout, digest)
	return 0
}
