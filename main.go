// Command storyflow tracks stories in a Markdown ledger and runs
// checkpointed workflows over them.
package main

import "storyflow/internal/cli"

func main() {
	cli.Execute()
}
