package main

import (
	"fmt"
	"io"

	"github.com/nixlim/growwatch/internal/config"
)

func runInit(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("init", stderr)
	path := fs.String("config", config.DefaultPath(), "where to write the configuration")
	if err := parse(fs, args); err != nil {
		return err
	}

	created, err := config.WriteStarter(*path)
	if err != nil {
		return err
	}
	if !created {
		fmt.Fprintf(stdout, "%s already exists, left unchanged\n", *path)
		return nil
	}
	fmt.Fprintf(stdout, "wrote %s\n", *path)
	return nil
}
