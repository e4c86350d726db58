// gisstctl is the ingestion front-end for the GISST catalog: a thin cobra
// CLI over the same repository interfaces the HTTP API uses, for
// scripted bulk loads and operator maintenance. Grounded in the teacher's
// cmd/seed one-shot pattern, generalized into create/update/delete/export
// subcommands per entity plus a link command for InstanceObject rows.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gisst-archive/gisst/internal/catalog"
	"github.com/gisst-archive/gisst/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app holds every repository the CLI can dispatch to, opened once in
// PersistentPreRunE and shared by every subcommand.
type app struct {
	files       catalog.FileRepository
	objects     catalog.ObjectRepository
	works       catalog.WorkRepository
	envs        catalog.EnvironmentRepository
	instances   catalog.InstanceRepository
	states      catalog.StateRepository
	replays     catalog.ReplayRepository
	saves       catalog.SaveRepository
	screenshots catalog.ScreenshotRepository
	creators    catalog.CreatorRepository
}

func newRootCmd() *cobra.Command {
	var configPath string
	a := &app{}

	root := &cobra.Command{
		Use:   "gisstctl",
		Short: "gisstctl — catalog ingestion and maintenance CLI for GISST",
		PersistentPreRunE: func(cmd *cobra.Command, cArgs []string) error {
			return a.open(configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", envOrDefault("GISST_CONFIG", "./gisst.toml"), "path to the TOML configuration file")

	root.AddCommand(
		newCreateCmd(a),
		newUpdateCmd(a),
		newDeleteCmd(a),
		newExportCmd(a),
		newLinkCmd(a),
	)
	return root
}

func (a *app) open(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := zap.NewNop()

	driver, dsn := parseDatabaseURL(cfg.Database.DatabaseURL)
	gormDB, err := catalog.New(catalog.Config{Driver: driver, DSN: dsn, Logger: logger})
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	a.wire(gormDB)
	return nil
}

func (a *app) wire(db *gorm.DB) {
	a.files = catalog.NewFileRepository(db)
	a.objects = catalog.NewObjectRepository(db)
	a.works = catalog.NewWorkRepository(db)
	a.envs = catalog.NewEnvironmentRepository(db)
	a.instances = catalog.NewInstanceRepository(db)
	a.states = catalog.NewStateRepository(db)
	a.replays = catalog.NewReplayRepository(db)
	a.saves = catalog.NewSaveRepository(db)
	a.screenshots = catalog.NewScreenshotRepository(db)
	a.creators = catalog.NewCreatorRepository(db)
}

func parseDatabaseURL(raw string) (driver, dsn string) {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return "sqlite", raw
	}
	switch scheme {
	case "postgres", "postgresql":
		return "postgres", raw
	case "sqlite":
		return "sqlite", rest
	default:
		return scheme, rest
	}
}

// readPayload reads the --file flag if set, else stdin.
func readPayload(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseUUIDArg(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("invalid uuid %q: %w", s, err)
	}
	return id, nil
}
