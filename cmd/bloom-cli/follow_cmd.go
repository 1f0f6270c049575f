package main

import (
	"flag"
	"io"
)

func runFollowCommand(name string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(name, stderr)
	if name == "is-following" {
		follower := fs.String("follower", "", "follower address")
		followee := fs.String("followee", "", "followee address")
		if err := fs.Parse(args); err != nil {
			return 1
		}
		if !requireFlags(stderr, map[string]string{"follower": *follower, "followee": *followee}) {
			return 1
		}
		return invoke("bloom_isFollowing", map[string]interface{}{"follower": *follower, "followee": *followee}, false, stdout, stderr)
	}
	caller := fs.String("caller", "", "acting address")
	target := fs.String("target", "", "account to follow or unfollow")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if !requireFlags(stderr, map[string]string{"caller": *caller, "target": *target}) {
		return 1
	}
	method := "bloom_follow"
	if name == "unfollow" {
		method = "bloom_unfollow"
	}
	return invoke(method, map[string]interface{}{"caller": *caller, "target": *target}, true, stdout, stderr)
}

func runUserCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("user", stderr)
	address := fs.String("address", "", "account address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if !requireFlags(stderr, map[string]string{"address": *address}) {
		return 1
	}
	return invoke("bloom_getUser", map[string]interface{}{"address": *address}, false, stdout, stderr)
}

func flagWasSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
