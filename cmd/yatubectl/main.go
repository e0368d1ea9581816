// Command yatubectl runs administrative tasks against the yatube database:
// managing groups, creating and removing accounts, removing posts and
// clearing the page cache.
//
//	yatubectl group create --title "Cats" --slug cats
//	yatubectl user delete spammer
//	yatubectl cache clear
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
