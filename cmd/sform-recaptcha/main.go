// Command sform-recaptcha manages and serves reCAPTCHA protection for forms.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
