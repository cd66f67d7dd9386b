package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/rovits/poi-sync-service/internal/api/poi"
	"github.com/rovits/poi-sync-service/internal/app"
	"github.com/rovits/poi-sync-service/internal/app/storage"
	"github.com/rovits/poi-sync-service/internal/config"
	"github.com/rovits/poi-sync-service/internal/places"
	pkgsync "github.com/rovits/poi-sync-service/internal/sync"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run synchronizations outside the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	run := &cobra.Command{
		Use:   "run",
		Short: "Synchronize one area into the place store and print the result",
		Long: `Search an area through the Google Places API, fetch the details of every
place found and write them to the configured place store.

Example:
  poi-sync-api sync run --config config.yaml --lat 52.52 --lng 13.405 --radius 1500 --type cafe`,
		RunE: runSync,
	}
	run.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	run.Flags().Float64("lat", 0, "Latitude of the area center")
	run.Flags().Float64("lng", 0, "Longitude of the area center")
	run.Flags().Float64("radius", poi.DefaultRadius, "Search radius in meters")
	run.Flags().String("type", poi.DefaultPlaceType, "Place type to synchronize")
	for _, name := range []string{"config", "lat", "lng"} {
		if err := run.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}

	cmd.AddCommand(run)
	return cmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := syncRequestFromFlags(cmd)
	if err != nil {
		return err
	}

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	factory, err := storage.NewStorageFactory(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create storage factory: %w", err)
	}
	defer factory.Cleanup()

	placeStore, err := factory.CreatePlaceStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to create place store: %w", err)
	}

	source, err := app.NewPlaceSource(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to build place source: %w", err)
	}

	pipeline := pkgsync.NewPipeline(source, placeStore, pkgsync.WithConcurrency(cfg.Sync.GetConcurrency()))
	result, runErr := pipeline.Run(ctx, req)
	if result != nil {
		if err := renderSyncResult(cmd.OutOrStdout(), result); err != nil {
			return errors.Join(runErr, err)
		}
	}
	if runErr != nil {
		return fmt.Errorf("sync failed: %w", runErr)
	}
	return nil
}

func syncRequestFromFlags(cmd *cobra.Command) (pkgsync.Request, error) {
	flags := cmd.Flags()
	lat, err := flags.GetFloat64("lat")
	if err != nil {
		return pkgsync.Request{}, err
	}
	lng, err := flags.GetFloat64("lng")
	if err != nil {
		return pkgsync.Request{}, err
	}
	radius, err := flags.GetFloat64("radius")
	if err != nil {
		return pkgsync.Request{}, err
	}
	placeType, err := flags.GetString("type")
	if err != nil {
		return pkgsync.Request{}, err
	}

	if err := pkgsync.ValidateRequest(lat, lng, radius); err != nil {
		return pkgsync.Request{}, err
	}
	return pkgsync.Request{Lat: lat, Lng: lng, RadiusMeters: radius, Type: placeType}, nil
}

// renderSyncResult prints the saved places followed by the run totals
func renderSyncResult(w io.Writer, result *pkgsync.Result) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Name", "Address", "Location")
	for _, rec := range result.Records {
		if err := table.Append([]string{rec.ID, rec.Name, rec.Address, formatPoint(rec.Location)}); err != nil {
			return fmt.Errorf("failed to render place %s: %w", rec.ID, err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render places: %w", err)
	}

	_, err := fmt.Fprintf(w, "found %d, fetched %d, saved %d, detail failures %d, write failures %d in %s\n",
		result.Stubs, result.Fetched, result.Saved, result.DetailFailures, result.WriteFailures, result.Duration)
	return err
}

func formatPoint(p *places.Point) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatFloat(p.Lat, 'f', 5, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 5, 64)
}
