// cmd/tools/letter-fields/main.go
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"visa-portal/internal/common/config"
	"visa-portal/internal/letter"
)

func main() {
	checkCmd := flag.NewFlagSet("check", flag.ExitOnError)
	listCmd := flag.NewFlagSet("bindings", flag.ExitOnError)

	templatePath := checkCmd.String("template", "", "Path to the letter template (defaults to letter.template_path from config)")
	asJSON := checkCmd.Bool("json", false, "Print the report as JSON")
	strict := checkCmd.Bool("strict", false, "Exit non-zero when bindings and template fields differ")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "check":
		checkCmd.Parse(os.Args[2:])
		path := *templatePath
		if path == "" {
			cfg, err := config.Load()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
				os.Exit(1)
			}
			path = cfg.Letter.TemplatePath
		}
		os.Exit(check(path, *asJSON, *strict))

	case "bindings":
		listCmd.Parse(os.Args[2:])
		for _, name := range letter.BindingNames() {
			fmt.Println(name)
		}

	default:
		help()
		os.Exit(1)
	}
}

func check(path string, asJSON, strict bool) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading template: %v\n", err)
		return 1
	}

	fields, err := letter.NewPDFCPUEngine(10).FieldNames(bytes.NewReader(data))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading form fields: %v\n", err)
		return 1
	}
	report := letter.CompareFields(fields)

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	} else {
		fmt.Printf("Template: %s (%d form fields)\n", path, len(fields))
		fmt.Printf("  bound   (%d): %s\n", len(report.Bound), strings.Join(report.Bound, ", "))
		fmt.Printf("  unbound (%d): %s\n", len(report.Unbound), strings.Join(report.Unbound, ", "))
		fmt.Printf("  missing (%d): %s\n", len(report.Missing), strings.Join(report.Missing, ", "))
	}

	if strict && !report.Complete() {
		return 2
	}
	return 0
}

func help() {
	fmt.Println("Usage: letter-fields <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  check     Compare the template's form fields with the field bindings")
	fmt.Println("  bindings  List the field names the renderer fills")
	fmt.Println("\nRun 'letter-fields <command> -h' for command options.")
}
