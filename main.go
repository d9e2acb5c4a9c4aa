// Package main provides the entry point for the session-engine CLI.
package main

import (
	"yqhp/session-engine/cmd"
)

func main() {
	cmd.Execute()
}
