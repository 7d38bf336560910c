// Command schema-generator writes the JSON schema of the agentwatch config file.
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/grovetools/agentwatch/config"
)

func main() {
	out := flag.String("o", filepath.Join("schema", "agentwatch.schema.json"), "output file")
	flag.Parse()

	schemaBytes, err := config.Schema()
	if err != nil {
		log.Fatalf("Error generating schema: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0755); err != nil {
		log.Fatalf("Error creating schema directory: %v", err)
	}
	if err := os.WriteFile(*out, append(schemaBytes, '\n'), 0644); err != nil {
		log.Fatalf("Error writing schema file: %v", err)
	}

	log.Printf("Generated config schema at %s", *out)
}
