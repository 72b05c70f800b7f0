// Package rules holds the detection rules shared by the sensitive-data and
// dangerous-function checks. Rules are compiled once per run with the RE2
// engine and are immutable afterwards.
package rules
