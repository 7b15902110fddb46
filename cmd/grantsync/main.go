package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	// Register the store backends
	_ "github.com/ajitpratap0/grantsync/pkg/store/memory"
	_ "github.com/ajitpratap0/grantsync/pkg/store/mongodb"
	_ "github.com/ajitpratap0/grantsync/pkg/store/pass"
	_ "github.com/ajitpratap0/grantsync/pkg/store/sqlite"
)

var (
	version = "0.1.0"
	commit  = "unknown"
)

func main() {
	_ = godotenv.Load() // .env is optional

	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
