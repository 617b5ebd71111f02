// Package main provides the entry point for rvsim.
// rvsim is a cycle-level RISC-V RV32IMF out-of-order core simulator.
//
// For the full CLI, use: go run ./cmd/rvsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("rvsim - RISC-V RV32IMF Out-of-Order Core Simulator")
	fmt.Println("")
	fmt.Println("Usage: rvsim <command> [flags]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  run <program.elf>    Run a program to completion")
	fmt.Println("  debug <program.elf>  Step through a program interactively")
	fmt.Println("  bench                Compare the cores on the built-in microbenchmarks")
	fmt.Println("  config show|validate Inspect configuration files")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/rvsim --help' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/rvsim' instead.")
	}
}
