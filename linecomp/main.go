// Command linecomp measures how compressible the cache lines of memory traces
// are.
package main

import (
	"github.com/tebeka/atexit"

	"github.com/sarchlab/linecomp/linecomp/cmd"
)

func main() {
	cmd.Execute()
	atexit.Exit(0)
}
