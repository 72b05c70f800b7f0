// Package psa provides the command-line interface for PSA, the proactive
// security assistant. It wires subcommands (scan, baseline, rules, config,
// ci, update), maps flags and GitHub Action inputs onto the scan pipeline
// and turns the outcome into an exit status.
//
// Typical usage from a main package:
//
//	package main
//	import "github.com/emircanakalin/PSA/cmd/psa"
//	func main() { psa.Execute() }
package psa
