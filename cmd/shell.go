package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/mithril/pkg/session"
)

const quitCommand = ":quit"

// ShellCommand creates the interactive shell command
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Interactive search prompt; every line is a query, :quit exits",
		Action: func(ctx context.Context, c *cli.Command) error {
			sess, cleanup, err := loadSession(c.String("config"))
			if err != nil {
				return err
			}
			defer cleanup()
			return runShell(ctx, sess, os.Stdin, os.Stdout)
		},
	}
}

// runShell feeds input lines to the session as debounced submissions, so a
// pasted batch of lines only searches for the last one.
func runShell(ctx context.Context, sess *session.Session, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	_, events := sess.Subscribe()
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = sess.Run(ctx)
	}()

	printerDone := make(chan struct{})
	go func() {
		defer close(printerDone)
		p := newPresenter(out)
		for ev := range events {
			p.handle(ev)
		}
	}()

	fmt.Fprintln(out, metaStyle.Render("Type a query, "+quitCommand+" to exit."))
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == quitCommand {
			break
		}
		if line == "" {
			continue
		}
		sess.Submit(line)
	}

	cancel()
	<-runDone
	<-printerDone
	return scanner.Err()
}
