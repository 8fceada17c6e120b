package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/vanderheijden86/taggrove/pkg/agents"
	"github.com/vanderheijden86/taggrove/pkg/analysis"
	"github.com/vanderheijden86/taggrove/pkg/config"
	"github.com/vanderheijden86/taggrove/pkg/drift"
	"github.com/vanderheijden86/taggrove/pkg/export"
	"github.com/vanderheijden86/taggrove/pkg/hierarchy"
	"github.com/vanderheijden86/taggrove/pkg/loader"
	"github.com/vanderheijden86/taggrove/pkg/recipe"
	"github.com/vanderheijden86/taggrove/pkg/storage"
	"github.com/vanderheijden86/taggrove/pkg/ui"
	"github.com/vanderheijden86/taggrove/pkg/version"
)

func main() {
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	configPath := flag.String("config", "", "Path to config file (default: discovered .taggrove/config.yaml)")
	ownerFlag := flag.String("owner", "", "Override the owner from the config")
	initFlag := flag.Bool("init", false, "Create a .taggrove/ project in the current directory")
	agentSetup := flag.Bool("agent-setup", false, "Add taggrove instructions to AGENTS.md-style files in the current directory")
	robotHelp := flag.Bool("robot-help", false, "Show AI agent help")
	robotTree := flag.Bool("robot-tree", false, "Output the full tree as JSON for AI agents")
	robotStats := flag.Bool("robot-stats", false, "Output tree statistics as JSON for AI agents")
	robotInsights := flag.Bool("robot-insights", false, "Output tree hygiene findings as JSON for AI agents")
	diffPath := flag.String("diff", "", "Compare the tree against a snapshot file and report drift")
	exportJSON := flag.String("export-json", "", "Export the tree snapshot to a JSON file")
	importJSON := flag.String("import-json", "", "Import a tree snapshot from a JSON file (tree must be empty)")
	exportMD := flag.String("export-md", "", "Export the tree to a Markdown file (e.g., tags.md)")
	exportSVG := flag.String("export-svg", "", "Export the tree to an SVG diagram")
	logFile := flag.String("log-file", "", "Write structured logs to this file")
	flag.Parse()

	if *help {
		fmt.Println("Usage: tg [options]")
		fmt.Println("\nA TUI editor for hierarchical transaction tags.")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *robotHelp {
		printRobotHelp()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("tg %s\n", version.Version)
		os.Exit(0)
	}

	if *agentSetup {
		runAgentSetup()
		os.Exit(0)
	}

	if *initFlag {
		runInit()
		os.Exit(0)
	}

	// Locate the project.
	var configDir string
	if *configPath != "" {
		configDir = filepath.Dir(*configPath)
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting current directory: %v\n", err)
			os.Exit(1)
		}
		dir, found := config.Discover(cwd)
		if !found {
			fmt.Fprintln(os.Stderr, "No .taggrove/ project found.")
			fmt.Fprintln(os.Stderr, "Run 'tg --init' to create one.")
			os.Exit(1)
		}
		configDir = dir
	}

	cfgFile := filepath.Join(configDir, config.FileName)
	if *configPath != "" {
		cfgFile = *configPath
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *ownerFlag != "" {
		cfg.Owner = *ownerFlag
	}
	if *logFile != "" {
		cfg.LogFile = *logFile
	}

	logger := newLogger(cfg.LogFile)

	backend, sqlitePath, err := openBackend(cfg, configDir, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s backend: %v\n", cfg.Backend, err)
		os.Exit(1)
	}
	defer backend.Close()

	store := hierarchy.NewStore(backend, cfg.Owner,
		hierarchy.WithTimeout(cfg.Timeout()),
		hierarchy.WithLogger(logger),
	)
	usage := hierarchy.NewUsageBridge(backend, cfg.Owner, cfg.Timeout(), logger)

	// Import runs before the initial load so the snapshot lands first.
	if *importJSON != "" {
		data, err := os.ReadFile(*importJSON)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading snapshot: %v\n", err)
			os.Exit(1)
		}
		n, err := export.Import(context.Background(), backend, cfg.Owner, data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error importing snapshot: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Imported %d nodes.\n", n)
		os.Exit(0)
	}

	if err := store.Reload(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading tree: %v\n", err)
		os.Exit(1)
	}

	if *robotTree {
		counts := usage.Counts(context.Background(), store.Nodes())
		snapshot := export.Snapshot(cfg.Owner, store.Entries(), counts)
		data, err := snapshot.MarshalIndent()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding tree: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(data)
		fmt.Println()
		os.Exit(0)
	}

	if *robotStats {
		counts := usage.Counts(context.Background(), store.Nodes())
		output := struct {
			GeneratedAt string       `json:"generated_at"`
			Owner       string       `json:"owner"`
			Stats       export.Stats `json:"stats"`
		}{
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
			Owner:       cfg.Owner,
			Stats:       export.ComputeStats(store.Entries(), counts),
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(output); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding stats: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if *robotInsights {
		counts := usage.Counts(context.Background(), store.Nodes())
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(analysis.Inspect(store.Entries(), counts, analysis.DefaultConfig())); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding insights: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if *diffPath != "" {
		data, err := os.ReadFile(*diffPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading snapshot: %v\n", err)
			os.Exit(1)
		}
		var snap export.TreeSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing snapshot: %v\n", err)
			os.Exit(1)
		}
		counts := usage.Counts(context.Background(), store.Nodes())
		result := drift.Compare(snap, store.Entries(), counts)
		fmt.Print(result.Summary())
		os.Exit(result.ExitCode())
	}

	if *exportJSON != "" || *exportMD != "" || *exportSVG != "" {
		runExports(store, usage, cfg.Owner, *exportJSON, *exportMD, *exportSVG)
		os.Exit(0)
	}

	// Everything below is the interactive editor.
	if agents.ShouldSuppressTTYQueries() || !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "tg needs a terminal; use --robot-tree or --robot-stats for machine output.")
		os.Exit(1)
	}

	m := ui.NewModel(store, usage, configDir, logger)
	p := tea.NewProgram(m, tea.WithAltScreen())

	// Live reload only makes sense for a file we can watch.
	if cfg.Backend == config.BackendSQLite && sqlitePath != "" {
		if watcher, err := ui.NewWatcher(sqlitePath, p, logger); err == nil {
			defer watcher.Stop()
		} else {
			logger.Warn().Err(err).Msg("live reload disabled")
		}
	}

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running taggrove: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(path string) zerolog.Logger {
	if path == "" {
		return zerolog.Nop()
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cannot open log file: %v\n", err)
		return zerolog.Nop()
	}
	return zerolog.New(f).With().Timestamp().Logger()
}

// openBackend builds the storage backend from config. The sqlite path is
// returned so the caller can watch it for external writes.
func openBackend(cfg config.Config, configDir string, logger zerolog.Logger) (storage.Backend, string, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return storage.NewMemory(), "", nil
	case config.BackendSurreal:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout())
		defer cancel()
		backend, err := storage.OpenSurreal(ctx, storage.SurrealOptions{
			Endpoint:  cfg.Surreal.Endpoint,
			Namespace: cfg.Surreal.Namespace,
			Database:  cfg.Surreal.Database,
			Username:  cfg.Surreal.Username,
			Password:  cfg.Surreal.Password,
		}, logger)
		return backend, "", err
	default:
		path := cfg.SQLitePath(configDir)
		backend, err := storage.OpenSQLite(path, logger)
		return backend, path, err
	}
}

func runExports(store *hierarchy.Store, usage *hierarchy.UsageBridge, owner, jsonPath, mdPath, svgPath string) {
	counts := usage.Counts(context.Background(), store.Nodes())
	entries := store.Entries()

	if jsonPath != "" {
		data, err := export.Snapshot(owner, entries, counts).MarshalIndent()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding snapshot: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", jsonPath, err)
			os.Exit(1)
		}
		fmt.Printf("Exported %d nodes to %s\n", len(entries), jsonPath)
	}

	if mdPath != "" {
		md := export.GenerateMarkdown(owner, entries, counts)
		if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", mdPath, err)
			os.Exit(1)
		}
		fmt.Printf("Exported tree to %s\n", mdPath)
	}

	if svgPath != "" {
		f, err := os.Create(svgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", svgPath, err)
			os.Exit(1)
		}
		export.WriteSVG(f, entries, counts)
		if err := f.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", svgPath, err)
			os.Exit(1)
		}
		fmt.Printf("Exported diagram to %s\n", svgPath)
	}
}

func runInit() {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting current directory: %v\n", err)
		os.Exit(1)
	}
	target := filepath.Join(cwd, config.Dir, config.FileName)
	if _, err := os.Stat(target); err == nil {
		fmt.Fprintf(os.Stderr, "Error: %s already exists\n", target)
		os.Exit(1)
	}

	cfg := config.Default()
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Owner").
				Description("All nodes are scoped to this identifier.").
				Value(&cfg.Owner).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("owner is required")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Storage backend").
				Options(
					huh.NewOption("SQLite (local file)", config.BackendSQLite),
					huh.NewOption("SurrealDB (remote)", config.BackendSurreal),
					huh.NewOption("In-memory (throwaway)", config.BackendMemory),
				).
				Value(&cfg.Backend),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("SurrealDB endpoint").
				Placeholder("ws://localhost:8000/rpc").
				Value(&cfg.Surreal.Endpoint),
			huh.NewInput().
				Title("Namespace").
				Value(&cfg.Surreal.Namespace),
			huh.NewInput().
				Title("Database").
				Value(&cfg.Surreal.Database),
			huh.NewInput().
				Title("Username").
				Value(&cfg.Surreal.Username),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&cfg.Surreal.Password),
		).WithHideFunc(func() bool { return cfg.Backend != config.BackendSurreal }),
	)
	if err := form.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Init cancelled: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Save(target); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}
	if err := loader.EnsureStateIgnored(cwd); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not update .gitignore: %v\n", err)
	}
	fmt.Printf("Created %s\n", target)

	seedTemplate(cfg, filepath.Join(cwd, config.Dir))
	fmt.Println("Run 'tg' to start editing.")
}

// seedTemplate optionally populates the fresh tree from a starter template.
func seedTemplate(cfg config.Config, configDir string) {
	options := []huh.Option[string]{huh.NewOption("Empty tree", "")}
	for _, tpl := range recipe.BuiltIn() {
		options = append(options, huh.NewOption(tpl.Name+" — "+tpl.Description, tpl.Name))
	}

	var choice string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Starter tree").
			Description("Seed the tree with a template, or start empty.").
			Options(options...).
			Value(&choice),
	))
	if err := form.Run(); err != nil || choice == "" {
		return
	}
	tpl, ok := recipe.Find(choice)
	if !ok {
		return
	}

	logger := newLogger(cfg.LogFile)
	backend, _, err := openBackend(cfg, configDir, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not open backend to seed template: %v\n", err)
		return
	}
	defer backend.Close()

	store := hierarchy.NewStore(backend, cfg.Owner,
		hierarchy.WithTimeout(cfg.Timeout()),
		hierarchy.WithLogger(logger),
	)
	if err := store.Reload(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load tree: %v\n", err)
		return
	}
	n, err := recipe.Apply(context.Background(), store, tpl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: template not applied: %v\n", err)
		return
	}
	fmt.Printf("Seeded %d nodes from the %q template.\n", n, tpl.Name)
}

func runAgentSetup() {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting current directory: %v\n", err)
		os.Exit(1)
	}
	touched := 0
	for _, name := range agents.SupportedAgentFiles {
		path := filepath.Join(cwd, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		content := string(data)
		switch {
		case agents.NeedsUpdate(content):
			content = agents.UpdateBlurb(content)
		case agents.ContainsBlurb(content):
			continue
		default:
			content = agents.AppendBlurb(content)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("Updated %s\n", name)
		touched++
	}
	if touched == 0 {
		fmt.Println("No agent files found (looked for AGENTS.md / CLAUDE.md).")
	}
}

func printRobotHelp() {
	fmt.Println("tg (taggrove) AI Agent Interface")
	fmt.Println("================================")
	fmt.Println("This tool manages a four-level tag hierarchy for transactions.")
	fmt.Println("Use these commands to inspect the tree without driving the TUI.")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  --robot-tree")
	fmt.Println("      Outputs the full tree as JSON in display order.")
	fmt.Println("      Key fields:")
	fmt.Println("      - nodes: Pre-ordered entries with id, name, level, parent_id")
	fmt.Println("      - orphan: True when the parent is missing; never dropped")
	fmt.Println("      - usage: Transaction reference count (tags only)")
	fmt.Println("      - sort_order: Fractional; compare, don't assume integers")
	fmt.Println("")
	fmt.Println("  --robot-stats")
	fmt.Println("      Outputs node counts per level, orphan count and total tag")
	fmt.Println("      references as JSON.")
	fmt.Println("")
	fmt.Println("  --robot-insights")
	fmt.Println("      Outputs hygiene findings as JSON: unused tags, empty")
	fmt.Println("      containers, duplicate names, crowded groups, orphans.")
	fmt.Println("")
	fmt.Println("  --diff <file>")
	fmt.Println("      Compares the tree against a JSON snapshot. Exit codes:")
	fmt.Println("      0 clean/info, 1 critical (new orphans), 2 warning.")
	fmt.Println("")
	fmt.Println("  --export-json <file> / --import-json <file>")
	fmt.Println("      Snapshot the tree to a file, or load a snapshot into an")
	fmt.Println("      empty tree. Import refuses to run over existing nodes.")
	fmt.Println("")
	fmt.Println("  --export-md <file>")
	fmt.Println("      Generates a readable outline with per-level totals.")
	fmt.Println("")
	fmt.Println("  --export-svg <file>")
	fmt.Println("      Renders the tree as an SVG diagram.")
	fmt.Println("")
	fmt.Println("  --agent-setup")
	fmt.Println("      Appends taggrove usage instructions to AGENTS.md files.")
	fmt.Println("")
	fmt.Println("  Levels: Category(1) > Subcategory(2) > Group(3) > Tag(4).")
	fmt.Println("  Parents are always exactly one level above their children.")
}
