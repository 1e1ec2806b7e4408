package main

import (
	"context"
	"fmt"
	"io"
	"os"

	appErrors "github.com/noah-isme/learnupon-exporter/pkg/errors"
)

var version = "dev"

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr, runExport))
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer, run runFunc) int {
	cmd := newRootCommand(stdout, run)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		code := appErrors.ExitCode(err)
		if code == appErrors.ExitUsage {
			fmt.Fprintln(stderr, "Run 'learnupon-exporter --help' for usage.")
		}
		return code
	}
	return appErrors.ExitOK
}
