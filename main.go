package main

import "github.com/emircanakalin/PSA/cmd/psa"

func main() { psa.Execute() }
