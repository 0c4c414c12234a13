package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"time"

	"github.com/parleyhq/parley"
)

// runParse turns one transcript file into structured form. It needs no
// config: the parser works on the file alone.
func runParse(args []string) {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "Emit the parsed record as JSON")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fail("usage: parley parse [--json] <transcript.txt>")
	}

	rec, err := parley.ParseFile(fs.Arg(0))
	if err != nil {
		fail("parse failed: %v", err)
	}

	if *asJSON {
		out, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			fail("encode record: %v", err)
		}
		fmt.Println(string(out))
		return
	}

	tmpl := rec.Template
	if tmpl == "" {
		tmpl = "(unknown)"
	}
	fmt.Printf("template: %s\n", tmpl)
	fmt.Printf("started:  %s\n", rec.Timestamp.Format(time.RFC3339))
	if rec.Status != "" {
		fmt.Printf("status:   %s\n", rec.Status)
	}
	for i, actor := range rec.Actors {
		line := fmt.Sprintf("actor %d:  %s (%s)", i+1, actor, rec.BackendIDs[i])
		if rec.Temperatures != nil {
			line += fmt.Sprintf("  temp=%.2f", rec.Temperatures[i])
		}
		switch {
		case rec.SystemPrompts[i] == nil:
			line += "  prompt=unknown"
		default:
			line += fmt.Sprintf("  prompt=%d chars", len(*rec.SystemPrompts[i]))
		}
		fmt.Println(line)
	}
	fmt.Printf("turns:    %d\n", len(rec.Turns))
	for _, a := range rec.Anomalies {
		fmt.Printf("anomaly:  [%s] %s\n", a.Kind, a.Detail)
	}
}
