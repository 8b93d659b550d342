// The main package for the guide-quotes executable.
package main

import (
	"github.com/JakeFAU/guide-quotes/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
