// Command queryengine validates schemas and runs queries against the database a schema points to.
package main

import (
	"fmt"
	"os"

	"github.com/AntonStoeckl/embedded-query-engine-go/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
