// Command reqflow turns business documents into requirements, user stories
// and test cases, pausing for approval between stages.
package main

import "reqflow/internal/cli"

func main() {
	cli.Execute()
}
