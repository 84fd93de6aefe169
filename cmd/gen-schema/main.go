// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Command gen-schema writes the JSON Schema of the permission catalog.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/samber/oops"

	"github.com/warden-auth/warden/internal/access"
)

const defaultOutPath = "schemas/permission-catalog.schema.json"

func main() {
	outPath := defaultOutPath
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}
	if err := run(outPath, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(outPath string, w io.Writer) error {
	schema, err := access.GenerateCatalogSchema()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		return oops.Code("SCHEMA_WRITE_FAILED").With("path", outPath).Wrap(err)
	}
	if err := os.WriteFile(outPath, append(schema, '\n'), 0o600); err != nil {
		return oops.Code("SCHEMA_WRITE_FAILED").With("path", outPath).Wrap(err)
	}
	fmt.Fprintf(w, "Generated %s\n", outPath)
	return nil
}
