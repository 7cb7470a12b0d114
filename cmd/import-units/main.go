// Command import-units loads county or ZIP boundary files into the PostGIS
// geo_units table used when REGISTRY_SOURCE=postgres.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/stwalsh4118/territory-mapper/internal/config"
	"github.com/stwalsh4118/territory-mapper/internal/database"
	"github.com/stwalsh4118/territory-mapper/internal/logger"
	"github.com/stwalsh4118/territory-mapper/internal/models"
	"github.com/stwalsh4118/territory-mapper/internal/registry"
	"github.com/stwalsh4118/territory-mapper/internal/repository"
)

const defaultBatchSize = 500

var rootCmd = &cobra.Command{
	Use:   "import-units [flags] FILE...",
	Short: "Load unit boundaries into PostGIS",
	Long:  "Reads GeoJSON or shapefile boundaries for counties or ZIP codes and upserts them into geo_units.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runImport,
}

func init() {
	rootCmd.Flags().String("kind", string(models.KindCounty), "unit kind in the files (county or zip)")
	rootCmd.Flags().Int("batch-size", defaultBatchSize, "units written per transaction")
}

func runImport(cmd *cobra.Command, paths []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kindFlag, _ := cmd.Flags().GetString("kind")
	kind, err := models.ParseUnitKind(kindFlag)
	if err != nil {
		return err
	}
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	if batchSize <= 0 {
		return fmt.Errorf("batch-size must be positive, got %d", batchSize)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database config: %w", err)
	}
	log := logger.New(cfg.Server.Env, cfg.Server.LogLevel).WithComponent("import-units")

	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := database.EnsureSchema(ctx, db.Pool); err != nil {
		return fmt.Errorf("prepare schema: %w", err)
	}
	repo := repository.NewUnitRepository(db.Pool)

	total := 0
	for _, path := range paths {
		start := time.Now()
		res, err := registry.LoadFile(path, kind)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}

		written := 0
		for i := 0; i < len(res.Units); i += batchSize {
			end := min(i+batchSize, len(res.Units))
			n, err := repo.Upsert(ctx, res.Units[i:end])
			if err != nil {
				return fmt.Errorf("import %s: %w", path, err)
			}
			written += n
		}
		total += written

		log.Info("Boundaries imported", map[string]interface{}{
			"path":     path,
			"kind":     string(kind),
			"units":    written,
			"skipped":  res.Skipped,
			"duration": time.Since(start).String(),
		})
	}

	fmt.Printf("Imported %d %s units from %d file(s)\n", total, kind, len(paths))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
