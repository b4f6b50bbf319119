// Command budgetctl is the administration CLI of budgetform: it computes
// summaries from the command line and inspects the SQLite outbox.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
