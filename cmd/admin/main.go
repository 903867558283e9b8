package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"gridrealm.dev/internal/persistence/journal"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	args := os.Args[2:]
	switch os.Args[1] {
	case "accounts":
		accountsCmd(args)
	case "release":
		releaseCmd(args)
	case "seed":
		seedCmd(args)
	case "journal":
		journalCmd(args)
	case "status":
		statusCmd(args)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: admin <accounts|release|seed|journal|status> [flags]")
}

func journalCmd(args []string) {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	dir := fs.String("dir", "./data/journal", "journal directory (used when no files are given)")
	op := fs.String("op", "", "only print entries for this op")
	_ = fs.Parse(args)

	files := fs.Args()
	if len(files) == 0 {
		var err error
		if files, err = journal.Files(*dir); err != nil {
			fmt.Fprintln(os.Stderr, "list:", err)
			os.Exit(1)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	for _, path := range files {
		err := journal.ReadFile(path, func(e journal.Entry) error {
			if *op != "" && e.Op != *op {
				return nil
			}
			return enc.Encode(e)
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
