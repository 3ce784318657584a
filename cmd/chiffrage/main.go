// Command chiffrage is the CLI for the Chiffrage key vault and file
// encryption engine.
package main

import (
	"Chiffrage/internal/cli"
)

// Version is the application version string.
const Version = "v1.0.0"

func main() {
	cli.Execute(Version)
}
