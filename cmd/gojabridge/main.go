// Command gojabridge evaluates JavaScript using the gojabridge package.
//
// Usage:
//
//	gojabridge eval [--timeout 5s] [--json] <file|->
//	gojabridge repl
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	gojabridge "github.com/joeycumines/goja-bridge"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"
)

// exit codes
const (
	exitException  = 1
	exitUsage      = 2
	exitTerminated = 3
)

type rootFlags struct {
	logLevel string
	console  bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var (
		flags rootFlags
		code  int
	)

	root := &cobra.Command{
		Use:           "gojabridge",
		Short:         "Evaluate JavaScript using gojabridge",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", logiface.LevelWarning.String(), "log level (trace, debug, info, notice, warning, err, disabled)")
	root.PersistentFlags().BoolVar(&flags.console, "console", true, "install the console global")

	root.AddCommand(newEvalCommand(&flags, &code, stdin), newReplCommand(&flags))
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, err)
		if code == 0 {
			code = exitUsage
		}
	}
	return code
}

func newEvalCommand(flags *rootFlags, code *int, stdin io.Reader) *cobra.Command {
	var (
		timeout time.Duration
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "eval <file|->",
		Short: "Evaluate a script, printing the completion value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(args[0], stdin)
			if err != nil {
				return err
			}
			inst, err := newInstance(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer inst.Close()

			if timeout > 0 {
				timer := time.AfterFunc(timeout, inst.Terminate)
				defer timer.Stop()
			}

			out := inst.Eval(source, &gojabridge.Origin{Name: args[0]})
			if err := out.Err(); err != nil {
				if gojabridge.IsTerminated(err) {
					*code = exitTerminated
				} else {
					*code = exitException
				}
				return err
			}

			if asJSON {
				pb, err := inst.Export(out.Value)
				if err != nil {
					*code = exitException
					return err
				}
				b, err := protojson.MarshalOptions{Multiline: true, Indent: `  `}.Marshal(pb)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), format(inst, out.Value))
			return err
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "terminate execution after this duration (0 disables)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the completion value as JSON")
	return cmd
}

func readSource(name string, stdin io.Reader) (string, error) {
	if name == `-` {
		b, err := io.ReadAll(stdin)
		return string(b), err
	}
	b, err := os.ReadFile(name)
	return string(b), err
}

func newInstance(flags *rootFlags, logOutput io.Writer) (*gojabridge.Instance, error) {
	level, err := parseLevel(flags.logLevel)
	if err != nil {
		return nil, err
	}
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(logOutput)),
		stumpy.L.WithLevel(level),
	).Logger()
	return gojabridge.New(
		gojabridge.WithLogger(logger),
		gojabridge.WithConsole(flags.console),
	)
}

func parseLevel(s string) (logiface.Level, error) {
	for level := logiface.LevelDisabled; level <= logiface.LevelTrace; level++ {
		if level.String() == s {
			return level, nil
		}
	}
	return 0, errors.New("invalid log level: " + s)
}

// format consumes v, returning a human-readable representation.
func format(inst *gojabridge.Instance, v gojabridge.Value) string {
	switch v.Kind() {
	case gojabridge.KindString:
		defer v.Release()
		view := inst.UTF8(v.Handle())
		defer view.Release()
		return view.String()
	case gojabridge.KindArray, gojabridge.KindObject:
		h := v.Handle().Clone()
		defer h.Drop()
		if pb, err := inst.Export(v); err == nil {
			if b, err := protojson.Marshal(pb); err == nil {
				return string(b)
			}
		}
		out := inst.CoerceString(h.Value())
		if out.IsException {
			out.Value.Release()
			return `[` + v.Kind().String() + `]`
		}
		return format(inst, out.Value)
	case gojabridge.KindFunction:
		defer v.Release()
		return `[function]`
	default:
		return v.String()
	}
}
