// Package main provides the entry point for the headlines CLI.
package main

import (
	"github.com/colthorp/headlines-go/internal/cli"
)

func main() {
	cli.Execute()
}
