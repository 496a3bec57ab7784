package main

import (
	"fmt"
	"log"
	"os"

	"github.com/wordflowlab/careerpilot"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "serve":
		if err := runServe(os.Args[2:]); err != nil {
			log.Fatalf("careerpilot serve failed: %v", err)
		}
	case "ingest-courses":
		if err := runIngestCourses(os.Args[2:]); err != nil {
			log.Fatalf("careerpilot ingest-courses failed: %v", err)
		}
	case "watch-courses":
		if err := runWatchCourses(os.Args[2:]); err != nil {
			log.Fatalf("careerpilot watch-courses failed: %v", err)
		}
	case "version":
		v := careerpilot.GetVersionInfo()
		fmt.Printf("careerpilot %s (%s)\n", v.Version, v.GoVersion)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  careerpilot serve [flags]")
	fmt.Println("  careerpilot ingest-courses [flags] <file|glob>...")
	fmt.Println("  careerpilot watch-courses [flags] <dir>")
	fmt.Println("  careerpilot version")
	fmt.Println()
	fmt.Println("Subcommands:")
	fmt.Println("  serve           Start the HTTP server (upload-cv, course-recommendation)")
	fmt.Println("  ingest-courses  Load course files and upsert them into the datasource index")
	fmt.Println("  watch-courses   Ingest every course file dropped into a directory")
	fmt.Println()
	fmt.Println("Use 'careerpilot <subcommand> -h' for subcommand-specific flags.")
}
