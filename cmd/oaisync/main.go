package main

import (
	"errors"
	"fmt"
	"os"

	configfile "github.com/undltools/oaisync/internal/adapters/driven/config/file"
	"github.com/undltools/oaisync/internal/adapters/driving/cli"
	"github.com/undltools/oaisync/internal/core/domain"
)

func main() {
	os.Exit(run())
}

// run maps failures onto distinct exit codes: 2 for configuration
// problems, 3 for remote protocol errors, 1 for everything else.
func run() int {
	store, err := configfile.NewConfigStore("")
	if err == nil {
		cli.SetConfigStore(store)
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		switch {
		case errors.Is(err, domain.ErrUnsupportedSchema),
			errors.Is(err, domain.ErrDatabaseRequired),
			errors.Is(err, domain.ErrInvalidInput):
			return 2
		}
		if _, ok := domain.AsProtocolError(err); ok {
			return 3
		}
		return 1
	}
	return 0
}
