// Package main provides the CLI entry point for ipet, the solver
// benchmark evaluation tool.
//
// Usage:
//
//	ipet evaluate -e eval.xml run1.csv run2.csv   # Evaluate testruns
//	ipet keys -p 'Time' run1.csv                  # List matching data keys
package main

func main() {
	Execute()
}
