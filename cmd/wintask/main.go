package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"wintask/internal/app"
	"wintask/internal/registrar"
	"wintask/pkg/taskschd"
)

const usage = `usage: wintask <command> [flags] [task...]

commands:
  render    print the task XML without registering
  apply     register tasks (all, or the named ones)
  delete    delete the named tasks
  watch     apply, then keep tasks in sync with the file
  history   show recent registration attempts

flags:
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("wintask", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.StringP("config", "c", "./tasks.yaml", "path to task file (json or yaml)")
	only := fs.StringSliceP("task", "t", nil, "limit render/apply to these tasks")
	limit := fs.IntP("limit", "n", 20, "number of history entries")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "render", "apply", "delete", "watch", "history":
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		fs.Usage()
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(*cfgPath, app.Options{})
	if err != nil {
		fmt.Fprintln(stderr, "fatal:", err)
		return 1
	}
	defer a.Close()

	switch cmd {
	case "render":
		err = a.Render(stdout, append(*only, rest...))
	case "apply":
		var rep registrar.Report
		rep, err = a.Apply(ctx, append(*only, rest...))
		printReport(stdout, "registered", rep)
	case "delete":
		var rep registrar.Report
		rep, err = a.Delete(ctx, append(*only, rest...))
		printReport(stdout, "deleted", rep)
	case "watch":
		err = a.Watch(ctx)
	case "history":
		err = a.History(ctx, stdout, *limit)
	}

	if err != nil {
		if taskschd.IsUnsupported(err) {
			fmt.Fprintln(stderr, "fatal: the Task Scheduler service is only available on Windows")
			return 1
		}
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func printReport(w io.Writer, verb string, rep registrar.Report) {
	if len(rep.OK) > 0 {
		fmt.Fprintf(w, "%s: %s\n", verb, strings.Join(rep.OK, ", "))
	}
	if len(rep.Failed) > 0 {
		fmt.Fprintf(w, "failed: %s\n", strings.Join(rep.Failed, ", "))
	}
}
