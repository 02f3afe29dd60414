package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/Folio/internal/config"
	"github.com/TobiSchelling/Folio/internal/database"
	"github.com/TobiSchelling/Folio/internal/logging"
	"github.com/TobiSchelling/Folio/internal/pipeline"
	"github.com/TobiSchelling/Folio/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	userName   string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "folio",
	Short:         "Track your content taste",
	Long:          "Folio learns a creator's taste from saved content and training ratings, and generates titles in that taste.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			logging.Setup("info", "console", verbose)
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logging.Setup(cfg.Logging.Level, cfg.Logging.Format, verbose)
		log.Debug().Str("config", path).Msg("config loaded")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringVarP(&userName, "user", "u", "", "User to act as (defaults to the only user)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(refineCmd)
	rootCmd.AddCommand(refreshMetricsCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(profileCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("folio", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/folio/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure the LLM provider, YouTube API key and training feeds.")
		fmt.Println("Then create a user with: folio user add <name>")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", a.db.Path())
		fmt.Println("Collection:")
		fmt.Printf("  Users: %d\n", stats.Users)
		fmt.Printf("  Items saved: %d\n", stats.Items)
		fmt.Printf("  Items analyzed: %d\n", stats.AnalyzedItems)
		fmt.Printf("  Profiles: %d\n", stats.Profiles)
		fmt.Println("\nTraining:")
		fmt.Printf("  Pending suggestions: %d\n", stats.PendingSuggestions)
		fmt.Printf("  Ratings: %d\n", stats.Ratings)
		fmt.Printf("  Generated variants: %d\n", stats.Variants)
		fmt.Println("\nServices:")
		fmt.Printf("  LLM: %s\n", configured(a.provider != nil, cfg.LLM.Provider))
		fmt.Printf("  YouTube API: %s\n", configured(a.youtube.IsConfigured(), cfg.YouTube.APIKeyEnv))
		fmt.Printf("  Training feeds: %d\n", len(cfg.Training.Feeds))
		return nil
	},
}

func configured(ok bool, name string) string {
	if ok {
		return "configured (" + name + ")"
	}
	return "not configured (" + name + ")"
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		port := cfg.Server.Port
		if servePort > 0 {
			port = servePort
		}
		addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(port))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Starting server at http://%s\n", addr)
		fmt.Println("Press Ctrl+C to stop")
		err = server.Serve(ctx, a.serverDeps(), addr)
		a.collection.Wait()
		return err
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (overrides config)")
}

// --- user commands ---

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users and API tokens",
}

var userAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Create a user and print its API token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		existing, err := db.GetUserByName(args[0])
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("user %q already exists", args[0])
		}
		u, err := db.CreateUser(args[0])
		if err != nil {
			return fmt.Errorf("creating user: %w", err)
		}
		fmt.Printf("Created user %s\n", u.Name)
		fmt.Printf("API token: %s\n", u.APIToken)
		fmt.Println("Use it as 'Authorization: Bearer <token>' or paste it into the browser extension.")
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		users, err := db.ListUsers()
		if err != nil {
			return err
		}
		if len(users) == 0 {
			fmt.Println("No users yet. Add one with: folio user add <name>")
			return nil
		}
		for _, u := range users {
			n, _ := db.CountItems(u.ID)
			fmt.Printf("  %s  (%d items, created %s)\n", u.Name, n, u.CreatedAt)
		}
		return nil
	},
}

func init() {
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)
}

// --- run command ---

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run maintenance: refresh -> rescan -> rebuild -> refine -> top up suggestions",
	Long:  "Runs the maintenance pipeline for the --user user, or for every user when none is given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		pipe := pipeline.New(a.db, a.collection, a.profile, a.discoverer, cfg.Training.MinPending)
		ctx := cmd.Context()

		var users []database.User
		if userName != "" {
			u, err := resolveUser(a.db)
			if err != nil {
				return err
			}
			users = append(users, *u)
		} else if users, err = a.db.ListUsers(); err != nil {
			return err
		}

		failed := false
		for _, u := range users {
			var result *pipeline.Result
			if dryRun {
				result = pipe.DryRun(&u)
			} else {
				result = pipe.Run(ctx, &u)
			}
			printResult(result)
			failed = failed || result.Failed()
		}
		a.collection.Wait()

		if failed {
			return fmt.Errorf("pipeline finished with errors")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
}

func printResult(r *pipeline.Result) {
	fmt.Printf("\n== %s\n", r.Name)
	for i, step := range r.Steps {
		fmt.Printf("Step %d/%d: %s\n", i+1, len(r.Steps), step.Name)
		if step.Err != nil {
			fmt.Printf("  Error: %v\n", step.Err)
		} else {
			fmt.Printf("  %s\n", step.Summary)
		}
	}
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "folio.db")
	return database.Open(dbPath)
}

// resolveUser returns the --user user, or the only user when the flag is unset.
func resolveUser(db *database.DB) (*database.User, error) {
	if userName != "" {
		u, err := db.GetUserByName(userName)
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, fmt.Errorf("user %q not found", userName)
		}
		return u, nil
	}
	users, err := db.ListUsers()
	if err != nil {
		return nil, err
	}
	switch len(users) {
	case 0:
		return nil, fmt.Errorf("no users yet; create one with: folio user add <name>")
	case 1:
		return &users[0], nil
	default:
		return nil, fmt.Errorf("%d users exist; pick one with --user", len(users))
	}
}
