// Command chartx runs, validates and renders statechart documents.
//
//	chartx run door.yaml open close
//	echo open | chartx run door.yaml -
//	chartx validate charts/*.yaml
//	chartx dot door.yaml | dot -Tsvg > door.svg
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/comalice/chartx"
	"github.com/comalice/chartx/internal/production"
)

// CLI is the command tree.
type CLI struct {
	LogLevel string `help:"Log level." default:"warn" enum:"trace,debug,info,warn,error"`
	LogJSON  bool   `help:"Write logs as JSON." name:"log-json"`

	Run      RunCmd      `cmd:"" help:"Start a chart and feed it events."`
	Validate ValidateCmd `cmd:"" help:"Compile charts and report structural errors."`
	Dot      DotCmd      `cmd:"" help:"Render a chart as Graphviz DOT."`
}

// appContext is bound into every command's Run method.
type appContext struct {
	in     io.Reader
	out    io.Writer
	logger chartx.Logger
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var cli CLI
	exitCode := -1
	parser, err := kong.New(&cli,
		kong.Name("chartx"),
		kong.Description("Hierarchical statechart interpreter."),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
		kong.Exit(func(code int) { exitCode = code }),
	)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	kctx, err := parser.Parse(args)
	if exitCode >= 0 {
		return exitCode
	}
	if err != nil {
		parser.Errorf("%s", err)
		return 2
	}

	app := &appContext{
		in:     stdin,
		out:    stdout,
		logger: production.NewLogger(stderr, cli.LogLevel, cli.LogJSON),
	}
	if err := kctx.Run(app); err != nil {
		fmt.Fprintf(stderr, "chartx: %s\n", describe(err))
		return 1
	}
	return 0
}

// describe prefers the error code and message of go-errors values.
func describe(err error) string {
	if code := chartx.ErrorCode(err); code != "" {
		return code + ": " + err.Error()
	}
	return err.Error()
}
