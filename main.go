// Command elections-scraper collects precinct results for one district of the
// Czech parliamentary election from volby.cz into a CSV file.
package main

import (
	"github.com/JakeFAU/elections-scraper/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
