package main

import (
	"fmt"
	"os"

	"github.com/TOBY0001/encrypted-wheel/cmd/wheeld/cmd"
)

func main() {
	rootCmd := cmd.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
