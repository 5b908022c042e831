package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/iambrandonn/loggy/internal/cli"
)

func main() {
	if err := cli.Execute(os.Args); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "[loggy] %v\n", err)
		os.Exit(1)
	}
}
