// Command ipcctl inspects and exercises the AP/CP shared-memory control link.
package main

import (
	"os"

	"github.com/gobeyondidentity/ipclink/cmd/ipcctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
