// Command crudkit reads and writes records of a REST resource, optionally
// mirroring them into a local key/value cache.
package main

import (
	"os"

	"github.com/mesh-intelligence/crudkit/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
