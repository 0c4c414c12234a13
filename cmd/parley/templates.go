package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/parleyhq/parley"
)

// runTemplates handles the templates subcommands.
func runTemplates(args []string) {
	if len(args) < 1 {
		printTemplatesUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "list":
		runTemplatesList(args[1:])
	case "validate":
		runTemplatesValidate(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown templates subcommand: %s\n", args[0])
		printTemplatesUsage()
		os.Exit(1)
	}
}

func runTemplatesList(args []string) {
	fs := flag.NewFlagSet("templates list", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	names, err := parley.Templates(cfg, nil).List()
	if err != nil {
		fail("list templates: %v", err)
	}
	if len(names) == 0 {
		fmt.Printf("no templates in %s\n", cfg.Templates.Dir)
		return
	}
	for _, name := range names {
		fmt.Println(name)
	}
}

func runTemplatesValidate(args []string) {
	fs := flag.NewFlagSet("templates validate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fail("usage: parley templates validate [--config <path>] <name>")
	}
	name := fs.Arg(0)

	cfg := loadConfig(*configPath)
	warnings, err := parley.Templates(cfg, nil).Validate(name)
	if err != nil {
		fail("template %s: %v", name, err)
	}
	if len(warnings) == 0 {
		fmt.Printf("%s: ok\n", name)
		return
	}
	for _, w := range warnings {
		fmt.Printf("warning: %s\n", w)
	}
}

func printTemplatesUsage() {
	fmt.Println(`Usage:
  parley templates list [--config <path>]
  parley templates validate [--config <path>] <name>`)
}
