package main

import (
	"os"

	"github.com/goccy/go-json"
)

// printJSON writes a command summary to stdout; logs go to stderr.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
