package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kass/go-geoquery/pkg/config"
	"github.com/kass/go-geoquery/pkg/engine"
	"github.com/kass/go-geoquery/pkg/geom"
	"github.com/kass/go-geoquery/pkg/models"
	"github.com/kass/go-geoquery/pkg/queries"
	"github.com/kass/go-geoquery/pkg/store"
)

var (
	verbose    bool
	workers    int
	noIndex    bool
	maxRows    int
	benchRuns  int
	tripsCSV   string
	zonesCSV   string
	bldgsCSV   string
	withIndex  bool
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "geoquery",
	Short: "Client-side spatial query engine for the trip benchmark",
	Long: `Runs the benchmark query set against a capability-limited backing store,
pushing down distance-within and intersects filters and evaluating every
other spatial predicate client-side.`,
	SilenceUsage: true,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the benchmark queries",
	RunE:  runList,
}

var runCmd = &cobra.Command{
	Use:   "run [query ...]",
	Short: "Run one or more queries and print their results",
	Long:  `Run the named queries, or every supported query when none are named.`,
	RunE:  runQueries,
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run every supported query repeatedly and report timings",
	RunE:  runBench,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the benchmark tables and spatial indexes",
	RunE:  runSchema,
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load benchmark data from CSV files",
	RunE:  runLoad,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose (debug) logging")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 0, "Worker goroutines for the join phase (0 = from config)")
	rootCmd.PersistentFlags().BoolVar(&noIndex, "no-index", false, "Disable the in-memory R-Tree prefilter")

	runCmd.Flags().IntVar(&maxRows, "max-rows", 20, "Rows to print per result (0 = all)")
	benchCmd.Flags().IntVarP(&benchRuns, "runs", "n", 3, "Timed runs per query")

	loadCmd.Flags().StringVar(&tripsCSV, "trips", "", "Trips CSV file")
	loadCmd.Flags().StringVar(&zonesCSV, "zones", "", "Zones CSV file")
	loadCmd.Flags().StringVar(&bldgsCSV, "buildings", "", "Buildings CSV file")
	loadCmd.Flags().BoolVar(&withIndex, "spatial-indexes", true, "Create GIST indexes after loading")

	rootCmd.AddCommand(listCmd, runCmd, benchCmd, schemaCmd, loadCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	if noIndex {
		cfg.UseIndex = false
	}

	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to build logger: %w", err)
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Warn("metrics endpoint stopped", zap.Error(err))
			}
		}()
		logger.Info("serving metrics", zap.String("addr", cfg.MetricsAddr))
	}
	return cfg, logger, nil
}

func openStore(cfg config.Config) (*store.PostgresStore, error) {
	return store.NewPostgresStore(cfg.Store.Host, cfg.Store.User, cfg.Store.Password,
		cfg.Store.Database, cfg.Store.SSLMode, cfg.Store.Port)
}

func newEngine(st store.Client, cfg config.Config, log *zap.Logger) *engine.Engine {
	return engine.New(st, engine.Options{
		Prefix:        cfg.Prefix,
		TripLimit:     cfg.TripLimit,
		ZoneLimit:     cfg.ZoneLimit,
		BuildingLimit: cfg.BuildingLimit,
		Workers:       cfg.Workers,
		UseIndex:      cfg.UseIndex,
	}, log)
}

func runList(cmd *cobra.Command, args []string) error {
	for _, name := range queries.Names() {
		status := "supported"
		if !queries.IsSupported(name) {
			status = "unsupported by backend"
		}
		fmt.Printf("%-4s %s\n", name, status)
	}
	return nil
}

func runQueries(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	e := newEngine(st, cfg, log)

	names := args
	if len(names) == 0 {
		names = queries.Supported()
	}

	ctx := context.Background()
	for _, name := range names {
		result, err := queries.Run(ctx, name, e)
		if err != nil {
			fmt.Printf("== %s: %v\n\n", name, err)
			continue
		}
		fmt.Printf("== %s (%d rows)\n", name, len(result.Rows))
		printResult(result, maxRows)
		fmt.Println()
	}
	return nil
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	e := newEngine(st, cfg, log)
	ctx := context.Background()

	fmt.Printf("%-5s %-8s %12s %12s\n", "query", "rows", "best", "mean")
	for _, name := range queries.Supported() {
		var best, total time.Duration
		var rows int
		failed := false
		for i := 0; i < benchRuns; i++ {
			start := time.Now()
			result, err := queries.Run(ctx, name, e)
			elapsed := time.Since(start)
			if err != nil {
				fmt.Printf("%-5s failed: %v\n", name, err)
				failed = true
				break
			}
			rows = len(result.Rows)
			total += elapsed
			if best == 0 || elapsed < best {
				best = elapsed
			}
		}
		if failed {
			continue
		}
		fmt.Printf("%-5s %-8d %12s %12s\n", name, rows,
			best.Round(time.Millisecond), (total / time.Duration(benchRuns)).Round(time.Millisecond))
	}
	return nil
}

func runSchema(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.InitSchema(ctx, cfg.Prefix); err != nil {
		return err
	}
	log.Info("schema created", zap.String("prefix", cfg.Prefix))
	return nil
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	if tripsCSV == "" && zonesCSV == "" && bldgsCSV == "" {
		return fmt.Errorf("nothing to load: pass --trips, --zones and/or --buildings")
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()

	if zonesCSV != "" {
		zones, err := readZonesCSV(zonesCSV)
		if err != nil {
			return err
		}
		if err := st.BulkInsertZones(ctx, cfg.Prefix, zones); err != nil {
			return err
		}
		log.Info("zones loaded", zap.Int("count", len(zones)))
	}
	if bldgsCSV != "" {
		buildings, err := readBuildingsCSV(bldgsCSV)
		if err != nil {
			return err
		}
		if err := st.BulkInsertBuildings(ctx, cfg.Prefix, buildings); err != nil {
			return err
		}
		log.Info("buildings loaded", zap.Int("count", len(buildings)))
	}
	if tripsCSV != "" {
		trips, err := readTripsCSV(tripsCSV)
		if err != nil {
			return err
		}
		if err := st.BulkInsertTrips(ctx, cfg.Prefix, trips); err != nil {
			return err
		}
		log.Info("trips loaded", zap.Int("count", len(trips)))
	}

	if withIndex {
		if err := st.CreateSpatialIndexes(ctx, cfg.Prefix); err != nil {
			return err
		}
		log.Info("spatial indexes created")
	}
	return nil
}

// CSV layouts match the generator's output: a header row, then one record per
// row with geometry as WKT.

func readTripsCSV(path string) ([]models.Trip, error) {
	var trips []models.Trip
	err := readCSV(path, 9, func(rec []string) error {
		key, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return fmt.Errorf("tripkey %q: %w", rec[0], err)
		}
		pickupTime, err := parseCSVTime(rec[1])
		if err != nil {
			return err
		}
		dropoffTime, err := parseCSVTime(rec[2])
		if err != nil {
			return err
		}
		pickup, err := geom.ParsePoint(rec[3])
		if err != nil {
			return err
		}
		dropoff, err := geom.ParsePoint(rec[4])
		if err != nil {
			return err
		}
		distance, err := strconv.ParseFloat(rec[5], 64)
		if err != nil {
			return fmt.Errorf("distance %q: %w", rec[5], err)
		}
		fare, err := strconv.ParseFloat(rec[6], 64)
		if err != nil {
			return fmt.Errorf("fare %q: %w", rec[6], err)
		}
		tip, err := strconv.ParseFloat(rec[7], 64)
		if err != nil {
			return fmt.Errorf("tip %q: %w", rec[7], err)
		}
		total, err := strconv.ParseFloat(rec[8], 64)
		if err != nil {
			return fmt.Errorf("totalamount %q: %w", rec[8], err)
		}
		trips = append(trips, models.Trip{
			Key: key, PickupTime: pickupTime, DropoffTime: dropoffTime,
			PickupLoc: pickup, DropoffLoc: dropoff,
			Distance: distance, Fare: fare, Tip: tip, TotalAmount: total,
		})
		return nil
	})
	return trips, err
}

func readZonesCSV(path string) ([]models.Zone, error) {
	var zones []models.Zone
	err := readCSV(path, 3, func(rec []string) error {
		key, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return fmt.Errorf("zonekey %q: %w", rec[0], err)
		}
		boundary, err := geom.ParsePolygon(rec[2])
		if err != nil {
			return err
		}
		zones = append(zones, models.Zone{Key: key, Name: rec[1], Boundary: boundary})
		return nil
	})
	return zones, err
}

func readBuildingsCSV(path string) ([]models.Building, error) {
	var buildings []models.Building
	err := readCSV(path, 3, func(rec []string) error {
		key, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return fmt.Errorf("buildingkey %q: %w", rec[0], err)
		}
		boundary, err := geom.ParsePolygon(rec[2])
		if err != nil {
			return err
		}
		buildings = append(buildings, models.Building{Key: key, Name: rec[1], Boundary: boundary})
		return nil
	})
	return buildings, err
}

func readCSV(path string, fields int, handle func(rec []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = fields

	// Header row.
	if _, err := r.Read(); err != nil {
		return fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	line := 1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		line++
		if err := handle(rec); err != nil {
			return fmt.Errorf("%s line %d: %w", path, line, err)
		}
	}
}

func parseCSVTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

func printResult(result *engine.Result, limit int) {
	fmt.Println(strings.Join(result.Columns, "\t"))
	for i, row := range result.Rows {
		if limit > 0 && i == limit {
			fmt.Printf("... %d more rows\n", len(result.Rows)-limit)
			return
		}
		cells := make([]string, len(result.Columns))
		for j, col := range result.Columns {
			cells[j] = formatCell(row[col])
		}
		fmt.Println(strings.Join(cells, "\t"))
	}
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case float64:
		return strconv.FormatFloat(x, 'f', 6, 64)
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprintf("%v", x)
	}
}
