package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/linecheck/internal/testutil"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir  = flag.String("out", "", "Output directory (default: <project>/testdata/frames)")
		only    = flag.String("only", "", "Generate a single fixture by name")
		list    = flag.Bool("list", false, "List fixtures and exit")
		verbose = flag.Bool("v", false, "Verbose output")
		help    = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Render synthetic label frames and their manifest.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                 # Render all fixtures\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -only clean     # Render one fixture\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -out /tmp/f     # Render into another directory\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	fixtures := testutil.DefaultSceneFixtures()
	if *list {
		for _, f := range fixtures {
			fmt.Printf("%-16s %s\n", f.Name, f.Description)
		}
		return
	}

	if *only != "" {
		var selected []testutil.SceneFixture
		for _, f := range fixtures {
			if f.Name == *only {
				selected = append(selected, f)
			}
		}
		if len(selected) == 0 {
			slog.Error("Unknown fixture", "name", *only)
			os.Exit(1)
		}
		fixtures = selected
	}

	dir := *outDir
	if dir == "" {
		root, err := testutil.GetProjectRoot()
		if err != nil {
			slog.Error("Failed to find project root", "error", err)
			os.Exit(1)
		}
		dir = filepath.Join(root, "testdata", "frames")
	}

	written, err := testutil.WriteFixtures(dir, fixtures)
	if err != nil {
		slog.Error("Failed to render fixtures", "error", err)
		os.Exit(1)
	}

	if *verbose {
		for _, f := range written {
			slog.Info("Rendered fixture", "name", f.Name, "file", f.InputFile, "serial", f.Serial, "codec", f.Codec)
		}
	}
	slog.Info("Frames generated", "dir", dir, "count", len(written))
}
