// Command spuff is the controller CLI: it provisions a disposable cloud
// dev VM from a declarative project file, bootstraps it, and drops the
// user into an interactive session with their local source mounted on
// the box.
package main

import (
	"fmt"
	"os"

	"github.com/spuff-dev/spuff/cmd/spuff/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
