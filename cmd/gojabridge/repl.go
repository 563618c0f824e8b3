package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	gojabridge "github.com/joeycumines/goja-bridge"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

const (
	historyFile = `.gojabridge_history`
	promptMain  = `> `
	promptCont  = `. `
)

func newReplCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := newInstance(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer inst.Close()
			return repl(inst, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func repl(inst *gojabridge.Instance, stdout, stderr io.Writer) error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	var histPath string
	if home, err := os.UserHomeDir(); err == nil {
		histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
		defer func() {
			if f, err := os.Create(histPath); err == nil {
				_, _ = ln.WriteHistory(f)
				_ = f.Close()
			}
		}()
	}

	// ctrl+c while evaluating terminates the script
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	defer signal.Stop(sigc)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-sigc:
				inst.Terminate()
			}
		}
	}()

	for line := 1; ; {
		source, ok := readInput(ln)
		if !ok {
			fmt.Fprintln(stdout)
			return nil
		}
		switch strings.TrimSpace(source) {
		case ``:
			continue
		case `:quit`, `.exit`:
			return nil
		}
		ln.AppendHistory(strings.ReplaceAll(source, "\n", " "))

		out := inst.Eval(source, &gojabridge.Origin{Name: `repl`, LineOffset: line - 1})
		line += strings.Count(source, "\n") + 1
		if err := out.Err(); err != nil {
			fmt.Fprintln(stderr, err)
			continue
		}
		fmt.Fprintln(stdout, format(inst, out.Value))
	}
}

// readInput reads a statement, prompting for continuation lines while the
// brackets are unbalanced.
func readInput(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			return ``, true
		}
		if err != nil {
			return ``, false
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if depth(b.String()) <= 0 {
			return b.String(), true
		}
	}
}

// depth returns the bracket nesting depth at the end of source, ignoring
// brackets within string literals.
func depth(source string) int {
	var (
		n     int
		quote rune
		esc   bool
	)
	for _, r := range source {
		switch {
		case esc:
			esc = false
		case quote != 0:
			switch r {
			case '\\':
				esc = true
			case quote:
				quote = 0
			}
		default:
			switch r {
			case '\'', '"', '`':
				quote = r
			case '(', '[', '{':
				n++
			case ')', ']', '}':
				n--
			}
		}
	}
	return n
}
