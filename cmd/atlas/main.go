package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/doctrove/atlas/pkg/api"
	"github.com/doctrove/atlas/pkg/cluster"
	"github.com/doctrove/atlas/pkg/filter"
	"github.com/doctrove/atlas/pkg/snapshot"
	"github.com/doctrove/atlas/pkg/viewstate"
)

var (
	apiURL  string
	dbPath  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "atlas",
	Short: "CLI for the document map point-query API",
	Long:  `A command-line interface for querying, snapshotting and clustering document map points.`,
}

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile filter flags into a backend predicate",
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := filterFromFlags(cmd)
		if err != nil {
			return err
		}
		predicate := filter.Compile(fs, filter.DefaultColumns())
		if predicate == "" {
			fmt.Println("(no filter)")
			return nil
		}
		fmt.Println(predicate)
		return nil
	},
}

var extentCmd = &cobra.Command{
	Use:   "extent",
	Short: "Show the maximal data extent for the current filter",
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := filterFromFlags(cmd)
		if err != nil {
			return err
		}
		predicate := filter.Compile(fs, filter.DefaultColumns())
		offline, _ := cmd.Flags().GetBool("offline")

		ctx := context.Background()
		var extent *api.Extent
		if offline {
			store, err := openSnapshot(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			extent, err = store.MaxExtent(ctx, predicate)
			if err != nil {
				return err
			}
		} else {
			client, err := newClient()
			if err != nil {
				return err
			}
			extent, err = client.FetchMaxExtent(ctx, predicate)
			if err != nil {
				return err
			}
		}

		if extent == nil {
			fmt.Println("no extent available")
			return nil
		}
		return printJSON(extent)
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch points for a viewport",
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := viewFromFlags(cmd)
		if err != nil {
			return err
		}
		fs, err := filterFromFlags(cmd)
		if err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		sort, _ := cmd.Flags().GetString("sort")
		req := api.ComposeRequest(view, fs, api.Options{Limit: limit, Sort: sort})
		if req == nil {
			return fmt.Errorf("no valid viewport, use --bbox")
		}

		ctx := context.Background()
		set, err := fetchSet(ctx, cmd, req)
		if err != nil {
			return err
		}

		if save, _ := cmd.Flags().GetBool("save"); save {
			store, err := openSnapshot(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.SavePoints(ctx, set.Points); err != nil {
				return err
			}
			fmt.Printf("Saved %d points to %s\n", len(set.Points), dbPath)
			return nil
		}

		return printJSON(set.Points)
	},
}

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Cluster the points in a viewport and emit the overlay",
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := viewFromFlags(cmd)
		if err != nil {
			return err
		}
		fs, err := filterFromFlags(cmd)
		if err != nil {
			return err
		}

		req := api.ComposeRequest(view, fs, api.Options{})
		if req == nil {
			return fmt.Errorf("no valid viewport, use --bbox")
		}

		ctx := context.Background()
		set, err := fetchSet(ctx, cmd, req)
		if err != nil {
			return err
		}

		var positions []cluster.Point
		for _, p := range set.Points {
			if p.Position != nil {
				positions = append(positions, cluster.Point{X: p.Position.X, Y: p.Position.Y})
			}
		}

		k, _ := cmd.Flags().GetInt("k")
		k = cluster.ClampClusterCount(k)
		if !cluster.ShouldEnable(len(positions), k) {
			return fmt.Errorf("not enough points to cluster: %d points for k=%d", len(positions), k)
		}

		labels := cluster.AssignLabels(positions, k, cluster.DefaultMaxIterations)
		xRange, yRange, err := viewstate.ParseBbox(req.Bbox)
		if err != nil {
			return err
		}
		overlay := cluster.BuildOverlay(positions, labels, cluster.RectFromRanges(xRange, yRange))

		if verbose {
			fmt.Fprintf(os.Stderr, "clustered %d points into %d groups (%d without position)\n",
				len(positions), k, len(set.Points)-len(positions))
		}
		return printJSON(overlay)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Snapshot a viewport tile by tile into a local database",
	Long: `Splits the viewport into a grid of tiles and fetches each tile into the
local snapshot database. Requests are rate limited to stay polite to the
backend.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := viewFromFlags(cmd)
		if err != nil {
			return err
		}
		fs, err := filterFromFlags(cmd)
		if err != nil {
			return err
		}
		if !viewstate.Validate(view) {
			return fmt.Errorf("no valid viewport, use --bbox")
		}

		tiles, _ := cmd.Flags().GetInt("tiles")
		if tiles < 1 {
			tiles = 1
		}
		rps, _ := cmd.Flags().GetFloat64("rps")
		if rps <= 0 {
			rps = 2
		}

		client, err := newClient()
		if err != nil {
			return err
		}
		ctx := context.Background()
		store, err := openSnapshot(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		limiter := rate.NewLimiter(rate.Limit(rps), 1)
		limit, _ := cmd.Flags().GetInt("limit")

		xr, yr := *view.XRange, *view.YRange
		xStep := (xr[1] - xr[0]) / float64(tiles)
		yStep := (yr[1] - yr[0]) / float64(tiles)

		total := 0
		now := time.Now()
		for i := 0; i < tiles; i++ {
			for j := 0; j < tiles; j++ {
				if err := limiter.Wait(ctx); err != nil {
					return err
				}
				tile := viewstate.FromRanges(
					[2]float64{xr[0] + float64(i)*xStep, xr[0] + float64(i+1)*xStep},
					[2]float64{yr[0] + float64(j)*yStep, yr[0] + float64(j+1)*yStep},
					now)
				req := api.ComposeRequest(tile, fs, api.Options{Limit: limit})
				set, err := client.FetchPoints(ctx, req)
				if err != nil {
					return fmt.Errorf("tile %s failed: %w", tile.Bbox, err)
				}
				if err := store.SavePoints(ctx, set.Points); err != nil {
					return err
				}
				total += len(set.Points)
				if verbose {
					fmt.Fprintf(os.Stderr, "tile %s: %d points\n", tile.Bbox, len(set.Points))
				}
			}
		}

		count, err := store.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Synced %d points (%d tiles); snapshot now holds %d\n", total, tiles*tiles, count)
		return nil
	},
}

// fetchSet resolves a request against either the live API or the local
// snapshot, depending on --offline.
func fetchSet(ctx context.Context, cmd *cobra.Command, req *api.Request) (*api.PointSet, error) {
	if offline, _ := cmd.Flags().GetBool("offline"); offline {
		store, err := openSnapshot(ctx)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return store.QueryPoints(ctx, req)
	}
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	return client.FetchPoints(ctx, req)
}

func newClient() (*api.Client, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("no API base URL, use --api")
	}
	config := api.DefaultConfig(apiURL)
	if verbose {
		config.Logger = api.NewStdLogger(api.LevelDebug)
	}
	return api.NewClient(config)
}

func openSnapshot(ctx context.Context) (*snapshot.Store, error) {
	var logger api.Logger
	if verbose {
		logger = api.NewStdLogger(api.LevelDebug)
	}
	store, err := snapshot.New(dbPath, logger)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// viewFromFlags builds a validated view from --bbox.
func viewFromFlags(cmd *cobra.Command) (*viewstate.View, error) {
	bbox, _ := cmd.Flags().GetString("bbox")
	if bbox == "" {
		return viewstate.NewDefault(time.Now()), nil
	}
	xRange, yRange, err := viewstate.ParseBbox(bbox)
	if err != nil {
		return nil, err
	}
	view := viewstate.FromRanges(xRange, yRange, time.Now())
	if !viewstate.Validate(view) {
		return nil, fmt.Errorf("invalid bbox %q: ranges must be finite with low < high", bbox)
	}
	return view, nil
}

// filterFromFlags builds a filter state from the shared filter flags.
func filterFromFlags(cmd *cobra.Command) (filter.State, error) {
	fs := filter.New(time.Now())
	update := filter.Update{}

	if universe, _ := cmd.Flags().GetString("universe"); universe != "" {
		update.Universe = &universe
	}
	if sourcesStr, _ := cmd.Flags().GetString("sources"); sourcesStr != "" {
		sources := strings.Split(sourcesStr, ",")
		for i := range sources {
			sources[i] = strings.TrimSpace(sources[i])
		}
		update.Sources = &sources
	}
	if yearsStr, _ := cmd.Flags().GetString("years"); yearsStr != "" {
		parts := strings.SplitN(yearsStr, ":", 2)
		if len(parts) != 2 {
			return fs, fmt.Errorf("invalid --years %q: expected start:end", yearsStr)
		}
		start, err1 := strconv.ParseFloat(parts[0], 64)
		end, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 != nil || err2 != nil {
			return fs, fmt.Errorf("invalid --years %q: expected numeric start:end", yearsStr)
		}
		update.YearRange = &[2]float64{start, end}
	}
	if search, _ := cmd.Flags().GetString("search"); search != "" {
		update.SearchText = &search
	}
	if cmd.Flags().Changed("threshold") {
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		update.SimilarityThreshold = &threshold
	}

	fs = filter.Apply(fs, update, time.Now())
	if !filter.Valid(&fs) {
		return fs, fmt.Errorf("invalid filter: year range must be start<=end and threshold in [0,1]")
	}
	return fs, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("universe", "", "Free-form universe predicate")
	cmd.Flags().String("sources", "", "Source names (comma-separated)")
	cmd.Flags().String("years", "", "Year range as start:end (fractional years allowed)")
	cmd.Flags().String("search", "", "Semantic search text")
	cmd.Flags().Float64("threshold", filter.DefaultSimilarityThreshold, "Similarity threshold in [0,1]")
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&apiURL, "api", "a", "", "Point-query API base URL")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "atlas.db", "Snapshot database file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	for _, cmd := range []*cobra.Command{compileCmd, extentCmd, fetchCmd, clusterCmd, syncCmd} {
		addFilterFlags(cmd)
	}

	extentCmd.Flags().Bool("offline", false, "Use the local snapshot instead of the API")

	fetchCmd.Flags().String("bbox", "", "Viewport as x0,y0,x1,y1")
	fetchCmd.Flags().Int("limit", 0, "Maximum number of points (0 for default)")
	fetchCmd.Flags().String("sort", "", "Backend sort expression")
	fetchCmd.Flags().Bool("offline", false, "Use the local snapshot instead of the API")
	fetchCmd.Flags().Bool("save", false, "Save fetched points into the snapshot database")

	clusterCmd.Flags().String("bbox", "", "Viewport as x0,y0,x1,y1")
	clusterCmd.Flags().IntP("k", "k", 8, "Requested cluster count")
	clusterCmd.Flags().Bool("offline", false, "Use the local snapshot instead of the API")

	syncCmd.Flags().String("bbox", "", "Viewport as x0,y0,x1,y1")
	syncCmd.Flags().Int("tiles", 4, "Grid subdivision per axis")
	syncCmd.Flags().Int("limit", 0, "Maximum points per tile (0 for default)")
	syncCmd.Flags().Float64("rps", 2, "Requests per second")

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(extentCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(clusterCmd)
	rootCmd.AddCommand(syncCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
