// Package main implements the keyforge CLI tool.
// It provisions Google Cloud projects with billing, services and credentials.
package main

import "github.com/runvoy/keyforge/cmd/keyforge/cmd"

func main() {
	cmd.Execute()
}
