package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"gridrealm.dev/internal/authority/sqlstore"
	"gridrealm.dev/internal/seed"
)

func openStore(ctx context.Context, path string) *sqlstore.Store {
	s, err := sqlstore.Open(ctx, sqlstore.PathFromAddr(path))
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	return s
}

func accountsCmd(args []string) {
	fs := flag.NewFlagSet("accounts", flag.ExitOnError)
	dbPath := fs.String("db", "./data/world.sqlite", "sqlite db path")
	online := fs.Bool("online", false, "only logged-in accounts")
	_ = fs.Parse(args)

	ctx := context.Background()
	s := openStore(ctx, *dbPath)
	defer s.Close()

	accts, err := s.Accounts(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	out := make([]sqlstore.Account, 0, len(accts))
	for _, a := range accts {
		if *online && !a.LoggedIn {
			continue
		}
		out = append(out, a)
	}
	printJSON(out)
}

func releaseCmd(args []string) {
	fs := flag.NewFlagSet("release", flag.ExitOnError)
	dbPath := fs.String("db", "./data/world.sqlite", "sqlite db path")
	_ = fs.Parse(args)

	username := strings.TrimSpace(fs.Arg(0))
	if username == "" {
		fmt.Fprintln(os.Stderr, "usage: admin release [-db path] <username>")
		os.Exit(2)
	}

	ctx := context.Background()
	s := openStore(ctx, *dbPath)
	defer s.Close()

	if err := s.Release(ctx, username); err != nil {
		fmt.Fprintln(os.Stderr, "release:", err)
		os.Exit(1)
	}
	fmt.Printf("released %s\n", username)
}

func seedCmd(args []string) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	dbPath := fs.String("db", "./data/world.sqlite", "sqlite db path")
	file := fs.String("file", "", "seed yaml (default: built-in world)")
	_ = fs.Parse(args)

	w := seed.Default()
	if *file != "" {
		var err error
		if w, err = seed.Load(*file); err != nil {
			fmt.Fprintln(os.Stderr, "load seed:", err)
			os.Exit(1)
		}
	}

	ctx := context.Background()
	s := openStore(ctx, *dbPath)
	defer s.Close()

	ok, err := s.Seed(ctx, w)
	if err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Println("world already seeded; nothing to do")
		return
	}
	fmt.Println("seed ok")
}
