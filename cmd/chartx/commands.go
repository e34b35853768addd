package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/comalice/chartx"
	"github.com/comalice/chartx/internal/production"
)

// RunCmd starts a chart and sends it events.
type RunCmd struct {
	Chart    string   `arg:"" type:"existingfile" help:"Chart document (YAML or JSON)."`
	Events   []string `arg:"" optional:"" help:"Events to send, as name or name=<yaml data>. '-' reads one per line from stdin."`
	Snapshot string   `help:"Directory for JSON snapshots of the session." type:"path"`
	Session  string   `help:"Session id. With --snapshot an existing session is resumed."`
	Output   string   `help:"Status format." default:"text" enum:"text,json,yaml"`
}

func (c *RunCmd) Run(app *appContext) error {
	ctx := context.Background()
	doc, err := chartx.LoadFile(c.Chart)
	if err != nil {
		return err
	}

	opts := []chartx.Option{
		chartx.WithLogger(app.logger),
		chartx.WithErrorReporter(production.NewLoggingErrorReporter(app.logger)),
	}
	if c.Session != "" {
		opts = append(opts, chartx.WithSessionID(c.Session))
	}
	var persister *production.JSONPersister
	if c.Snapshot != "" {
		if persister, err = production.NewJSONPersister(c.Snapshot); err != nil {
			return err
		}
		opts = append(opts, chartx.WithPersister(persister))
	}

	ex, err := chartx.NewExecutor(doc, opts...)
	if err != nil {
		return err
	}
	if persister != nil && c.Session != "" {
		snap, err := persister.Load(ctx, c.Session)
		switch {
		case err == nil:
			if err := ex.Restore(snap); err != nil {
				return err
			}
		case chartx.ErrorCode(err) != "SNAPSHOT_NOT_FOUND":
			return err
		}
	}
	if err := ex.Start(ctx); err != nil {
		return err
	}
	defer ex.Stop(ctx)

	send := func(spec string) error {
		evt, err := parseEvent(spec)
		if err != nil {
			return err
		}
		if err := ex.TriggerEvent(ctx, evt); err != nil {
			return err
		}
		if c.Output == "text" {
			fmt.Fprintf(app.out, "%s -> %s\n", evt.Name, strings.Join(ex.Status().Active, " "))
		}
		return nil
	}

	for _, spec := range c.Events {
		if spec != "-" {
			if err := send(spec); err != nil {
				return err
			}
			continue
		}
		scanner := bufio.NewScanner(app.in)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			if err := send(line); err != nil {
				return err
			}
		}
		if err := scanner.Err(); err != nil {
			return err
		}
	}
	return printStatus(app.out, c.Output, ex.Status())
}

// parseEvent reads "name" or "name=<yaml>".
func parseEvent(spec string) (chartx.Event, error) {
	name, raw, found := strings.Cut(spec, "=")
	name = strings.TrimSpace(name)
	if name == "" {
		return chartx.Event{}, fmt.Errorf("empty event name in %q", spec)
	}
	if !found {
		return chartx.NewEvent(name, nil), nil
	}
	var data any
	if err := yaml.Unmarshal([]byte(raw), &data); err != nil {
		return chartx.Event{}, fmt.Errorf("event %s data: %w", name, err)
	}
	return chartx.NewEvent(name, data), nil
}

func printStatus(out io.Writer, format string, status chartx.Status) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	case "yaml":
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(status)
	}
	state := "running"
	switch {
	case status.Final:
		state = "final"
	case !status.Running:
		state = "stopped"
	}
	_, err := fmt.Fprintf(out, "session %s %s: %s\n", status.SessionID, state, strings.Join(status.Active, " "))
	return err
}

// ValidateCmd compiles each chart.
type ValidateCmd struct {
	Charts []string `arg:"" type:"existingfile" help:"Chart documents."`
}

func (c *ValidateCmd) Run(app *appContext) error {
	failed := 0
	for _, path := range c.Charts {
		doc, err := chartx.LoadFile(path)
		if err != nil {
			failed++
			fmt.Fprintf(app.out, "FAIL %s: %s\n", path, describe(err))
			continue
		}
		fmt.Fprintf(app.out, "ok   %s (%s, version %s)\n", path, chartName(doc), doc.Version)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d charts failed", failed, len(c.Charts))
	}
	return nil
}

func chartName(doc *chartx.Document) string {
	if doc.Name == "" {
		return "unnamed"
	}
	return doc.Name
}

// DotCmd renders a chart.
type DotCmd struct {
	Chart  string   `arg:"" type:"existingfile" help:"Chart document."`
	Active []string `help:"State ids to highlight." sep:","`
	JSON   bool     `help:"Emit the graph as JSON instead of DOT." name:"json"`
}

func (c *DotCmd) Run(app *appContext) error {
	doc, err := chartx.LoadFile(c.Chart)
	if err != nil {
		return err
	}
	v := &production.Visualizer{}
	if c.JSON {
		data, err := v.ExportJSON(doc, c.Active)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(app.out, string(data))
		return err
	}
	_, err = io.WriteString(app.out, v.ExportDOT(doc, c.Active))
	return err
}
