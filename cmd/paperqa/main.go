// Command paperqa is the entry point for the paper question-answering CLI.
// It ingests scientific papers into a vector index and answers questions
// about them with citations back to the source passages.
package main

import (
	"fmt"
	"os"

	"github.com/paperqa/paperqa-go/cmd/paperqa/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
