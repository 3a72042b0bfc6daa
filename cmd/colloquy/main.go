package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/colloquy-dev/colloquy/internal/config"
	"github.com/colloquy-dev/colloquy/internal/core"
	"github.com/colloquy-dev/colloquy/internal/debate"
	"github.com/colloquy-dev/colloquy/internal/export"
	"github.com/colloquy-dev/colloquy/internal/session"
	"github.com/colloquy-dev/colloquy/internal/vault"
	"github.com/colloquy-dev/colloquy/web/handlers"
)

var version = "dev"

var (
	cfgPath   string
	debugFlag bool
	appConfig *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "colloquy",
	Short: "Multi-model discussion tool",
	Long: `colloquy orchestrates turn-based discussions between AI models.

Pick a topic and a set of providers and watch them discuss it round by
round, optionally with assigned roles or a judged battle format.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if debugFlag {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		var err error
		if cfgPath != "" {
			appConfig, err = config.LoadFrom(cfgPath)
		} else {
			appConfig, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file path (default: ~/.colloquy/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(vaultCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func openVault() (*vault.Store, error) {
	store, err := vault.Open(appConfig.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault: %w", err)
	}
	if err := store.Initialize(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize vault: %w", err)
	}
	if appConfig.Vault.ChunkSize > 0 {
		store.SetSplitter(&vault.Splitter{
			ChunkSize: appConfig.Vault.ChunkSize,
			Overlap:   appConfig.Vault.ChunkOverlap,
		})
	}
	return store, nil
}

// ============================================================================
// RUN COMMAND
// ============================================================================

var (
	topicFlag        string
	modeFlag         string
	participantsFlag string
	rolesFlag        string
	judgeFlag        string
	roundsFlag       int
	pacingFlag       string
	delayFlag        int
	referenceFlag    []string
	vaultQueryFlag   string
	exportFlag       string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a discussion in the terminal",
	Long: `Run a discussion and stream the transcript to stdout.

Examples:
  colloquy run --topic "Is remote work here to stay?"
  colloquy run --topic "Tabs or spaces" --participants anthropic,openai,gemini
  colloquy run --topic "GraphQL adoption" --roles anthropic=optimist,openai=skeptic
  colloquy run --topic "Best database" --mode battle --judge gemini
  colloquy run --topic "Transit policy" --vault-query "ridership congestion"`,
	RunE: runDiscussion,
}

func init() {
	runCmd.Flags().StringVar(&topicFlag, "topic", "", "Discussion topic (required)")
	runCmd.Flags().StringVar(&modeFlag, "mode", "", "Mode: roundRobin|freeDiscussion|roleAssignment|battle")
	runCmd.Flags().StringVar(&participantsFlag, "participants", "anthropic,openai", "Comma-separated provider ids")
	runCmd.Flags().StringVar(&rolesFlag, "roles", "", "Role assignments (provider=role,...)")
	runCmd.Flags().StringVar(&judgeFlag, "judge", "", "Judge provider (battle mode)")
	runCmd.Flags().IntVar(&roundsFlag, "rounds", 0, "Number of rounds")
	runCmd.Flags().StringVar(&pacingFlag, "pacing", "", "Pacing: auto|manual")
	runCmd.Flags().IntVar(&delayFlag, "delay", 0, "Seconds between turns under auto pacing")
	runCmd.Flags().StringSliceVar(&referenceFlag, "reference", nil, "Reference file paths")
	runCmd.Flags().StringVar(&vaultQueryFlag, "vault-query", "", "Search the vault and feed hits as reference")
	runCmd.Flags().StringVar(&exportFlag, "export", "", "Export format on completion: markdown|json|pdf")
	runCmd.MarkFlagRequired("topic")
}

func buildRunConfig() (core.DebateConfig, error) {
	cfg := appConfig.DebateDefaults()
	cfg.Topic = topicFlag

	if modeFlag != "" {
		cfg.Mode = core.Mode(modeFlag)
	}
	if roundsFlag > 0 {
		cfg.MaxRounds = roundsFlag
	}
	if pacingFlag != "" {
		cfg.Pacing.Mode = core.PacingMode(pacingFlag)
	}
	if delayFlag > 0 {
		cfg.Pacing.AutoDelaySeconds = delayFlag
	}
	cfg.JudgeProvider = judgeFlag

	participants, err := core.ParseParticipants(participantsFlag)
	if err != nil {
		return cfg, err
	}
	cfg.Participants = participants

	roles, err := core.ParseRoles(rolesFlag)
	if err != nil {
		return cfg, err
	}
	cfg.Roles = roles
	if len(roles) > 0 && cfg.Mode != core.ModeBattle {
		cfg.Mode = core.ModeRoleAssignment
	}

	for _, path := range referenceFlag {
		att, err := loadReferenceFile(path)
		if err != nil {
			return cfg, err
		}
		cfg.ReferenceFiles = append(cfg.ReferenceFiles, att)
	}

	if vaultQueryFlag != "" {
		store, err := openVault()
		if err != nil {
			return cfg, err
		}
		defer store.Close()

		hits, err := store.Search(context.Background(), vaultQueryFlag, appConfig.Vault.TopK)
		if err != nil {
			return cfg, fmt.Errorf("vault search failed: %w", err)
		}
		if len(hits) == 0 {
			fmt.Fprintf(os.Stderr, "vault: no results for %q\n", vaultQueryFlag)
		}
		cfg.ReferenceText = vault.BuildReference(hits)
	}

	cfg.UseReference = cfg.ReferenceText != "" || len(cfg.ReferenceFiles) > 0

	return cfg, core.ValidateConfig(cfg)
}

func loadReferenceFile(path string) (core.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Attachment{}, fmt.Errorf("failed to read reference file: %w", err)
	}
	mimeType := "text/plain"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		mimeType = "image/png"
	case ".jpg", ".jpeg":
		mimeType = "image/jpeg"
	case ".gif":
		mimeType = "image/gif"
	case ".webp":
		mimeType = "image/webp"
	}
	return core.Attachment{
		Name: filepath.Base(path),
		MIME: mimeType,
		Data: data,
	}, nil
}

func runDiscussion(cmd *cobra.Command, args []string) error {
	cfg, err := buildRunConfig()
	if err != nil {
		return err
	}

	gw := appConfig.CreateGateway()
	sess := session.New(cfg)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sess.BindCancel(cancel)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\n\nInterrupted.")
		sess.Stop()
	}()

	// Under manual pacing, Enter advances.
	if cfg.Pacing.Mode == core.PacingManual {
		go func() {
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				sess.Advance()
			}
		}()
	}

	printHeader(cfg)

	events, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	done := make(chan error, 1)
	go func() {
		done <- debate.NewRunner(cfg, sess, gw).Run(ctx)
	}()

	printEvents(events, done)

	if exportFlag != "" {
		if err := writeExport(sess.Snapshot()); err != nil {
			return err
		}
	}
	return nil
}

func printHeader(cfg core.DebateConfig) {
	fmt.Printf("\nTopic: %s\n", cfg.Topic)
	fmt.Printf("Mode: %s | Rounds: %d | Pacing: %s\n", cfg.Mode, cfg.MaxRounds, cfg.Pacing.Mode)
	fmt.Print("Participants: ")
	names := make([]string, 0, len(cfg.Participants))
	for _, p := range cfg.Participants {
		name := core.DisplayName(p)
		if role, ok := cfg.Roles[p]; ok {
			name += " (" + role + ")"
		}
		names = append(names, name)
	}
	fmt.Println(strings.Join(names, ", "))
	if cfg.JudgeProvider != "" {
		fmt.Printf("Judge: %s\n", core.DisplayName(cfg.JudgeProvider))
	}
	if cfg.Pacing.Mode == core.PacingManual {
		fmt.Println("Manual pacing: press Enter to advance.")
	}
	fmt.Println(strings.Repeat("-", 60))
}

// printEvents renders session events until the run goroutine finishes.
func printEvents(events <-chan session.Event, done <-chan error) {
	lastCountdown := 0
	for {
		select {
		case err := <-done:
			// Drain anything the run committed before finishing.
			for {
				select {
				case ev := <-events:
					if ev.Type == session.EventMessage {
						if msg, ok := ev.Data.(core.Message); ok {
							printMessage(msg)
						}
					}
					continue
				default:
				}
				break
			}
			if err != nil {
				fmt.Println("\nDiscussion stopped.")
			} else {
				fmt.Println("\nDiscussion completed.")
			}
			return
		case ev := <-events:
			switch ev.Type {
			case session.EventMessage:
				msg, ok := ev.Data.(core.Message)
				if !ok {
					continue
				}
				printMessage(msg)
			case session.EventCountdown:
				seconds, ok := ev.Data.(int)
				if !ok {
					continue
				}
				switch {
				case seconds > 0:
					fmt.Printf("\rnext turn in %d... ", seconds)
					lastCountdown = seconds
				case seconds == -1:
					fmt.Print("\r[Enter] for next turn ")
					lastCountdown = -1
				case lastCountdown != 0:
					fmt.Print("\r" + strings.Repeat(" ", 24) + "\r")
					lastCountdown = 0
				}
			case session.EventStatus:
				if status, ok := ev.Data.(core.Status); ok && status == core.StatusPaused {
					fmt.Println("\nDiscussion paused after repeated failures. Press Ctrl-C to stop.")
				}
			}
		}
	}
}

func printMessage(msg core.Message) {
	header := core.DisplayName(msg.Provider)
	if msg.RoleName != "" {
		header += " - " + msg.RoleName
	}
	if msg.Type == core.TypeJudgeEvaluation {
		header += " [judge]"
	}
	fmt.Printf("\nRound %d | %s\n", msg.Round, header)
	fmt.Println(strings.Repeat("-", 40))
	if msg.IsError() {
		fmt.Printf("turn failed: %s\n", msg.Err)
	} else {
		fmt.Println(msg.Content)
	}
}

func writeExport(snap *session.Snapshot) error {
	exporter, err := export.GetExporter(export.Format(exportFlag))
	if err != nil {
		return err
	}

	filename := export.GenerateFilename(snap.Config.Topic, snap.CreatedAt, exporter.FileExtension())
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	if err := exporter.Export(snap, f); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	fmt.Printf("Exported to %s\n", filename)
	return nil
}

// ============================================================================
// SERVE COMMAND
// ============================================================================

var (
	portFlag  int
	notesFlag string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if portFlag == 0 {
			portFlag = appConfig.Server.Port
		}

		store, err := openVault()
		if err != nil {
			slog.Warn("vault unavailable", "error", err)
			store = nil
		} else {
			defer store.Close()
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		if notesFlag != "" && store != nil {
			watcher := vault.NewWatcher(store, notesFlag)
			if err := watcher.Start(ctx); err != nil {
				slog.Warn("vault watcher failed to start", "root", notesFlag, "error", err)
			} else {
				defer watcher.Stop()
			}
		}

		gw := appConfig.CreateGateway()
		h := handlers.New(appConfig, gw, session.NewStore(), store)

		addr := fmt.Sprintf(":%d", portFlag)
		server := &http.Server{
			Addr:    addr,
			Handler: h.Router(),
		}

		go func() {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			<-sigCh
			slog.Info("shutting down")
			server.Close()
			cancel()
		}()

		fmt.Printf("colloquy server listening on http://localhost%s\n", addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Server port (default from config)")
	serveCmd.Flags().StringVar(&notesFlag, "notes", "", "Notes directory to watch and index")
}

// ============================================================================
// VAULT COMMANDS
// ============================================================================

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage the reference document index",
}

var vaultIndexCmd = &cobra.Command{
	Use:   "index <paths...>",
	Short: "Index files into the vault",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openVault()
		if err != nil {
			return err
		}
		defer store.Close()

		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			doc := vault.Document{
				ID:      path,
				Title:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
				Content: string(data),
			}
			n, err := store.Index(cmd.Context(), doc)
			if err != nil {
				return fmt.Errorf("failed to index %s: %w", path, err)
			}
			fmt.Printf("indexed %s (%d chunks)\n", path, n)
		}
		return nil
	},
}

var vaultSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the vault",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openVault()
		if err != nil {
			return err
		}
		defer store.Close()

		query := strings.Join(args, " ")
		hits, err := store.Search(cmd.Context(), query, appConfig.Vault.TopK)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		if len(hits) == 0 {
			fmt.Println("no results")
			return nil
		}

		for i, hit := range hits {
			heading := hit.Title
			if hit.Section != "" {
				heading += " / " + hit.Section
			}
			fmt.Printf("[%d] %s (%.2f)\n", i+1, heading, hit.Score)
			fmt.Println(hit.Content)
			fmt.Println()
		}
		return nil
	},
}

var vaultStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vault statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openVault()
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("stats failed: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "Path:\t%s\n", appConfig.Vault.Path)
		fmt.Fprintf(w, "Documents:\t%d\n", stats.Documents)
		fmt.Fprintf(w, "Chunks:\t%d\n", stats.Chunks)
		return w.Flush()
	},
}

var vaultClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove everything from the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openVault()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Clear(cmd.Context()); err != nil {
			return fmt.Errorf("clear failed: %w", err)
		}
		fmt.Println("vault cleared")
		return nil
	},
}

func init() {
	vaultCmd.AddCommand(vaultIndexCmd)
	vaultCmd.AddCommand(vaultSearchCmd)
	vaultCmd.AddCommand(vaultStatsCmd)
	vaultCmd.AddCommand(vaultClearCmd)
}

// ============================================================================
// CONFIG COMMANDS
// ============================================================================

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgPath
		if path == "" {
			path = config.DefaultConfigPath()
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s", path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(config.GenerateExample()), 0644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Mode: %s\n", appConfig.Defaults.Mode)
		fmt.Printf("Max rounds: %d\n", appConfig.Defaults.MaxRounds)
		fmt.Printf("Pacing: %s (%ds)\n", appConfig.Defaults.Pacing, appConfig.Defaults.AutoDelaySeconds)
		fmt.Printf("Server port: %d\n", appConfig.Server.Port)
		fmt.Printf("Vault: %s\n\n", appConfig.Vault.Path)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PROVIDER\tENABLED\tMODEL\tKEY")
		for _, id := range []string{"anthropic", "openai", "gemini", "ollama", "mock"} {
			p, ok := appConfig.Providers[id]
			if !ok {
				continue
			}
			key := "-"
			if p.KeyEnv != "" {
				if p.APIKey != "" || os.Getenv(p.KeyEnv) != "" {
					key = "set"
				} else {
					key = "missing"
				}
			}
			fmt.Fprintf(w, "%s\t%t\t%s\t%s\n", id, p.Enabled, p.Model, key)
		}
		return w.Flush()
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

// ============================================================================
// VERSION COMMAND
// ============================================================================

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("colloquy %s\n", version)
	},
}
