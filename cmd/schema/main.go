// Command schema emits the JSON schema for the orb config file so
// editors can validate hand-written YAML before the daemon loads it.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	server "sf-orb/server"
)

func main() {
	outPath := flag.String("out", "", "file to write the schema to (default stdout)")
	flag.Parse()

	if err := run(*outPath); err != nil {
		fmt.Fprintf(os.Stderr, "schema: %v\n", err)
		os.Exit(1)
	}
}

func run(outPath string) error {
	reflector := jsonschema.Reflector{AllowAdditionalProperties: true}
	schema := reflector.Reflect(new(server.Config))
	schema.Title = "Orb Daemon Config"
	schema.Description = "Validates the YAML config consumed by orb-server"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	data = append(data, '\n')

	if outPath == "" || outPath == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return writeAtomic(outPath, data)
}

// writeAtomic stages the schema next to its destination and renames it
// into place so a half-written file never replaces a good one.
func writeAtomic(outPath string, data []byte) error {
	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create schema directory: %w", err)
		}
	}

	tmp := outPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("stage schema: %w", err)
	}
	if err := os.Rename(tmp, outPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace schema: %w", err)
	}
	return nil
}
