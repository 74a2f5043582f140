// Package main is the entry point for the pokeflow CLI.
package main

import "pokeflow/internal/cmd"

func main() {
	cmd.Execute()
}
