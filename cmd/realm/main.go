// Command realm tracks a family Minecraft build kept in Airtable.
package main

import (
	"os"

	"github.com/teamstreem/realm/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
