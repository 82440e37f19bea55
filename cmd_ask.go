package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"orbit/pkg/gateway"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var askTimeout time.Duration

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask one question, or start an interactive prompt without arguments",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := start()
		if err != nil {
			return err
		}
		defer a.close()

		if len(args) > 0 {
			printAnswer(cmd.OutOrStdout(), ask(cmd.Context(), a.router, strings.Join(args, " ")))
			return nil
		}
		return interactive(cmd.Context(), a.router, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 0, "round-trip timeout (default from system config)")
}

type reply struct {
	responder string
	text      string
	failed    bool
	elapsed   time.Duration
}

func ask(ctx context.Context, asker gateway.Asker, question string) reply {
	began := time.Now()
	ans, err := asker.Ask(ctx, question, askTimeout)
	r := reply{responder: ans.Responder, text: ans.Text, elapsed: time.Since(began)}
	if err != nil {
		r.text = gateway.FailureText(err)
		r.failed = true
	}
	return r
}

func printAnswer(w io.Writer, r reply) {
	label := color.New(color.FgGreen, color.Bold)
	if r.failed {
		label = color.New(color.FgRed, color.Bold)
	}
	who := r.responder
	if who == "" {
		who = "router"
	}
	fmt.Fprintf(w, "%s %s\n", label.Sprintf("[%s]", who), r.text)
	fmt.Fprintln(w, color.New(color.FgHiBlack).Sprintf("(%s)", r.elapsed.Round(time.Millisecond)))
}

// interactive reads one question per line until EOF or "exit".
func interactive(ctx context.Context, asker gateway.Asker, in io.Reader, out io.Writer) error {
	prompt := color.New(color.FgCyan).Sprint("orbit> ")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		printAnswer(out, ask(ctx, asker, line))
	}
}
