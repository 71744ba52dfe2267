// Command ledger turns bank statements into canonical transactions and
// exports them as CSV, workbooks or deduplicated ledger spreadsheets.
package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
