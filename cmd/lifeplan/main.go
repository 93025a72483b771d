// Command lifeplan manages household financial plans in a local SQLite
// database.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/lifeplan/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}
	// Commands render their own failures; anything else is a usage or
	// configuration error cobra returned before a command ran.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCommandError)
	}
	os.Exit(cli.GetExitCode(err))
}
