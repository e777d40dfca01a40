// Command gdkgen drives the CodegenContract from a CLI: it reads a
// schema-AST JSON file and writes the generated Go package to an output
// directory, the entry point a worker's go:generate directive invokes.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/df-mc/gdk/codegen"
	"github.com/df-mc/gdk/schema"
)

func main() {
	var (
		schemaPath = flag.String("schema", "", "path to a schema-AST JSON document")
		outDir     = flag.String("out", "", "directory to write the generated package into")
		pkg        = flag.String("pkg", "generated", "package name for the generated files")
	)
	flag.Parse()

	log := slog.Default()
	if *schemaPath == "" || *outDir == "" {
		flag.Usage()
		os.Exit(2)
	}

	coll, err := schema.Load(*schemaPath)
	if err != nil {
		log.Error("load schema", "err", err)
		os.Exit(1)
	}

	files, err := codegen.Generate(coll, *pkg)
	if err != nil {
		log.Error("generate", "err", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Error("create output directory", "dir", *outDir, "err", err)
		os.Exit(1)
	}
	for name, src := range files {
		path := filepath.Join(*outDir, name)
		if err := os.WriteFile(path, src, 0o644); err != nil {
			log.Error("write generated file", "path", path, "err", err)
			os.Exit(1)
		}
		fmt.Println("wrote", path)
	}
	log.Info("codegen complete", "components", len(coll.ComponentDefinitions), "files", len(files))
}
