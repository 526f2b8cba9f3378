package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/Project-Sylos/Citrus/internal/config"
	"github.com/Project-Sylos/Citrus/internal/types"
	"github.com/Project-Sylos/Citrus/sdk"
)

func main() {
	var (
		configPath = flag.StringP("config", "c", "", "Configuration file path (default: built-in defaults with an in-memory store)")
		help       = flag.BoolP("help", "h", false, "Show help")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	fmt.Println("Citrus - SDK Demo")
	fmt.Println("=================")
	fmt.Println("This is a demonstration of the Citrus library SDK.")
	fmt.Println("For the API server, run: go run ./cmd/api")
	fmt.Println()

	runDemo(*configPath)
}

func showHelp() {
	fmt.Println("Citrus - Document Library")
	fmt.Println("=========================")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  go run main.go [options]")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Servers:")
	fmt.Println("  go run ./cmd/scanner --storage ./storage")
	fmt.Println("  go run ./cmd/api --config configs/default.json")
}

func runDemo(configPath string) {
	ctx := context.Background()

	var (
		lib *sdk.Library
		err error
	)
	if configPath == "" {
		cfg := config.DefaultConfig()
		cfg.Store.Driver = types.DriverMemory
		fmt.Println("Using built-in defaults with an in-memory store")
		lib, err = sdk.NewWithConfig(ctx, &cfg)
	} else {
		fmt.Printf("Loading configuration from: %s\n", configPath)
		lib, err = sdk.New(ctx, configPath)
	}
	if err != nil {
		log.Fatalf("Failed to initialize library: %v", err)
	}
	defer lib.Close()

	m := lib.Manager()
	cfg := lib.GetConfig()
	fmt.Printf("Store: %s, scan service: %s\n", cfg.Store.Driver, cfg.Remote.BaseURL)

	printLibrary := func(title string) {
		fmt.Printf("\n%s:\n", title)
		for _, f := range m.Files() {
			fmt.Printf("  [%s] %s (%s) %s\n", f.Folder, f.Name, f.Origin, f.Path)
		}
	}
	printLibrary("Library after activation")

	// Pull in whatever the scan service holds
	fmt.Println("\nRefreshing from the scan service...")
	if changed, err := m.Refresh(ctx); err != nil {
		log.Printf("Scan service unavailable, continuing offline: %v", err)
	} else {
		fmt.Printf("Refresh changed library: %t\n", changed)
	}

	// Explorer upload, named from the picked file
	pending, err := lib.UploadFile(strings.NewReader("%PDF-1.4 demo"), "quarterly-report.pdf")
	if err != nil {
		log.Fatalf("Failed to upload file: %v", err)
	}
	fmt.Printf("\nPending upload %q from %s\n", pending.SuggestedName, pending.Source)
	report, err := m.ConfirmPending(ctx, "")
	if err != nil {
		log.Fatalf("Failed to save upload: %v", err)
	}

	// Organize it
	if _, err := m.CreateFolder(ctx, "Reports"); err != nil {
		log.Fatalf("Failed to create folder: %v", err)
	}
	if _, err := m.MoveFile(ctx, report.ID, "Reports"); err != nil {
		log.Fatalf("Failed to move file: %v", err)
	}
	view := m.SelectFolder("Reports")
	fmt.Printf("Folder %q holds %d file(s)\n", view.Folder, len(view.Files))

	route, err := lib.Route(report.ID)
	if err != nil {
		log.Fatalf("Failed to route file: %v", err)
	}
	fmt.Printf("%s opens in the %s viewer as %s\n", report.Name, route.Viewer, route.Render)

	link, err := lib.DownloadLink(report.ID)
	if err != nil {
		log.Fatalf("Failed to build download link: %v", err)
	}
	fmt.Printf("Download %s from %s\n", link.Filename, link.Href)

	results := m.Search("quarter")
	fmt.Printf("Search \"quarter\" in %s: %d match(es)\n", view.Folder, len(results))

	printLibrary("Library after the demo")

	// Reset library
	fmt.Println("\nResetting library...")
	if err := lib.Reset(ctx); err != nil {
		log.Printf("Failed to reset library: %v", err)
	} else {
		fmt.Println("Library reset completed!")
	}

	fmt.Println("\nCitrus SDK demo completed successfully!")
}
