package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"newsdeck/config"
	"newsdeck/feed"
	"newsdeck/imagecache"
	"newsdeck/logger"
	"newsdeck/model"
	"newsdeck/opml"
	"newsdeck/store"
)

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitDataError    = 3
)

func main() {
	app := &cli.App{
		Name:    "newsdeck",
		Usage:   "A scriptable news consolidator for RSS sources",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   config.DefaultPath(),
				Usage:   "Config file path",
				EnvVars: []string{"NEWSDECK_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "update",
				Usage: "Fetch all enabled sources and store new items",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "source",
						Aliases: []string{"s"},
						Usage:   "Update specific sources by identifier (if not set, updates all enabled)",
					},
					&cli.BoolFlag{
						Name:  "images",
						Usage: "Warm the image cache for fetched items",
					},
					&cli.BoolFlag{
						Name:    "watch",
						Aliases: []string{"w"},
						Usage:   "Keep running, refreshing at the configured interval",
					},
				},
				Action: updateSources,
			},
			{
				Name:  "list",
				Usage: "List stored items",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Value:   50,
						Usage:   "Maximum number of items to return",
					},
					&cli.IntFlag{
						Name:    "offset",
						Aliases: []string{"o"},
						Value:   0,
						Usage:   "Offset for pagination",
					},
					&cli.BoolFlag{
						Name:    "unread",
						Aliases: []string{"u"},
						Usage:   "Show only unread items",
					},
					&cli.StringFlag{
						Name:  "since",
						Usage: "Show items since duration (e.g., 7d, 2w, 3m, 1y)",
					},
					&cli.StringSliceFlag{
						Name:    "source",
						Aliases: []string{"s"},
						Usage:   "Filter by source identifier",
					},
				},
				Action: listItems,
			},
			{
				Name:      "show",
				Usage:     "Show item details",
				ArgsUsage: "<item-id>",
				Action:    showItem,
			},
			{
				Name:      "mark-read",
				Usage:     "Mark items as read",
				ArgsUsage: "<item-id>...",
				Action:    markRead,
			},
			{
				Name:   "mark-all-read",
				Usage:  "Mark all items as read",
				Action: markAllRead,
			},
			{
				Name:  "purge",
				Usage: "Delete all stored items",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "images",
						Usage: "Also clear the image cache",
					},
				},
				Action: purge,
			},
			{
				Name:  "sources",
				Usage: "Manage news sources",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List all known sources",
						Action: listSources,
					},
					{
						Name:      "enable",
						Usage:     "Enable a source",
						ArgsUsage: "<identifier>",
						Action:    enableSource,
					},
					{
						Name:      "disable",
						Usage:     "Disable a source",
						ArgsUsage: "<identifier>",
						Action:    disableSource,
					},
					{
						Name:      "check",
						Usage:     "Verify sources respond with a parsable feed",
						ArgsUsage: "[identifier...]",
						Action:    checkSources,
					},
					{
						Name:      "import",
						Usage:     "Import sources from an OPML file",
						ArgsUsage: "<opml-file>",
						Action:    importOPML,
					},
					{
						Name:  "export",
						Usage: "Export sources to OPML",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:    "output",
								Aliases: []string{"o"},
								Usage:   "Output file (default: stdout)",
							},
						},
						Action: exportOPML,
					},
				},
			},
			{
				Name:  "cache",
				Usage: "Manage the image cache",
				Subcommands: []*cli.Command{
					{
						Name:   "size",
						Usage:  "Report the on-disk cache size in bytes",
						Action: cacheSize,
					},
					{
						Name:   "clear",
						Usage:  "Remove all cached images",
						Action: cacheClear,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneralError)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.SugaredLogger, error) {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return log, nil
}

func getStore(cfg *config.Config) (*store.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s, err := store.New(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return s, nil
}

func outputJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// selectSources resolves the --source flag against the enabled catalog.
func selectSources(cfg *config.Config, ids []string) ([]model.FeedSource, error) {
	enabled := cfg.EnabledCatalog()
	if len(ids) == 0 {
		return enabled, nil
	}

	byID := make(map[string]model.FeedSource, len(enabled))
	for _, s := range cfg.AllSources() {
		byID[s.Identifier] = s
	}

	var sources []model.FeedSource
	for _, id := range ids {
		src, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown source %q", id)
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func updateSources(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	log, err := newLogger(cfg)
	if err != nil {
		return cli.Exit(err.Error(), ExitGeneralError)
	}
	defer log.Sync()

	sources, err := selectSources(cfg, c.StringSlice("source"))
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	s, err := getStore(cfg)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer s.Close()

	var cache *imagecache.Cache
	if c.Bool("images") {
		cache, err = imagecache.New(cfg.CacheDir, log)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to open image cache: %v", err), ExitDataError)
		}
		defer cache.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runUpdate(ctx, s, cache, sources, log); err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	if !c.Bool("watch") {
		return nil
	}

	interval := cfg.Interval()
	if interval <= 0 {
		return cli.Exit("watch mode requires refresh_interval_seconds > 0", ExitUsageError)
	}

	log.Infow("watching sources", "interval", interval, "sources", len(sources))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := runUpdate(ctx, s, cache, sources, log); err != nil {
				log.Errorw("refresh failed", "error", err)
			}
		}
	}
}

// runUpdate performs one fetch/store cycle and reports the result as JSON.
func runUpdate(ctx context.Context, s *store.Store, cache *imagecache.Cache, sources []model.FeedSource, log *zap.SugaredLogger) error {
	fetcher := feed.NewFetcher(log)
	items := fetcher.FetchAll(ctx, sources)

	if err := s.UpsertAll(items); err != nil {
		return fmt.Errorf("failed to store items: %w", err)
	}

	if cache != nil {
		warmImages(ctx, cache, items)
	}

	total, err := s.Count()
	if err != nil {
		return fmt.Errorf("failed to count items: %w", err)
	}

	return outputJSON(map[string]interface{}{
		"sources": len(sources),
		"fetched": len(items),
		"stored":  total,
	})
}

// warmImages downloads item images into the cache ahead of display. Failures
// are non-fatal; the cache already logs them.
func warmImages(ctx context.Context, cache *imagecache.Cache, items []model.NewsItem) {
	var wg sync.WaitGroup
	for _, it := range items {
		if !it.HasImage() {
			continue
		}
		wg.Add(1)
		cache.LoadAsync(ctx, it.ImageURL, func(_ image.Image, _ bool) {
			wg.Done()
		})
	}
	wg.Wait()
}

func listItems(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	s, err := getStore(cfg)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer s.Close()

	opts, err := store.BuildQueryOptions(
		c.Int("limit"),
		c.Int("offset"),
		c.Bool("unread"),
		c.String("since"),
		c.StringSlice("source"),
	)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Invalid query options: %v", err), ExitUsageError)
	}

	items, err := s.Query(opts)
	if err != nil {
		return cli.Exit(model.UserMessage(err), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"count":  len(items),
		"limit":  opts.Limit,
		"offset": opts.Offset,
		"items":  items,
	})
}

func showItem(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: newsdeck show <item-id>", ExitUsageError)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	s, err := getStore(cfg)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer s.Close()

	item, err := s.Get(c.Args().Get(0))
	if err != nil {
		return cli.Exit(model.UserMessage(err), ExitDataError)
	}

	return outputJSON(item)
}

func markRead(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: newsdeck mark-read <item-id>...", ExitUsageError)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	s, err := getStore(cfg)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer s.Close()

	marked, notFound, err := markItemsRead(s, c.Args().Slice())
	if err != nil {
		return cli.Exit(model.UserMessage(err), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"marked_read": marked,
		"not_found":   notFound,
	})
}

// markItemsRead flips each id to read. Unknown ids are tolerated and
// reported; anything else aborts the batch so storage failures surface.
func markItemsRead(s model.ItemStore, ids []string) (int, []string, error) {
	marked := 0
	var notFound []string
	for _, id := range ids {
		err := s.MarkRead(id)
		switch {
		case err == nil:
			marked++
		case errors.Is(err, model.ErrNotFound):
			notFound = append(notFound, id)
		default:
			return marked, notFound, err
		}
	}
	return marked, notFound, nil
}

func markAllRead(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	s, err := getStore(cfg)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer s.Close()

	n, err := s.MarkAllRead()
	if err != nil {
		return cli.Exit(model.UserMessage(err), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"marked_read": n,
	})
}

func purge(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	s, err := getStore(cfg)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer s.Close()

	if err := s.DeleteAll(); err != nil {
		return cli.Exit(model.UserMessage(err), ExitDataError)
	}

	result := map[string]interface{}{
		"success": true,
	}

	if c.Bool("images") {
		log, err := newLogger(cfg)
		if err != nil {
			return cli.Exit(err.Error(), ExitGeneralError)
		}
		defer log.Sync()

		cache, err := imagecache.New(cfg.CacheDir, log)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to open image cache: %v", err), ExitDataError)
		}
		cache.Clear()
		cache.Close()
		result["images_cleared"] = true
	}

	return outputJSON(result)
}

func listSources(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	enabled := cfg.EnabledSet()

	type sourceStatus struct {
		model.FeedSource
		Enabled bool `json:"enabled"`
	}

	var out []sourceStatus
	for _, s := range cfg.AllSources() {
		out = append(out, sourceStatus{FeedSource: s, Enabled: enabled[s.Identifier]})
	}
	return outputJSON(out)
}

func enableSource(c *cli.Context) error {
	return setSourceEnabled(c, true)
}

func disableSource(c *cli.Context) error {
	return setSourceEnabled(c, false)
}

func setSourceEnabled(c *cli.Context, enabled bool) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: newsdeck sources enable|disable <identifier>", ExitUsageError)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	id := c.Args().Get(0)
	known := false
	for _, s := range cfg.AllSources() {
		if s.Identifier == id {
			known = true
			break
		}
	}
	if !known {
		return cli.Exit(fmt.Sprintf("Unknown source %q", id), ExitUsageError)
	}

	cfg.SetSourceEnabled(id, enabled)
	if err := cfg.Save(c.String("config")); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to save config: %v", err), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"identifier": id,
		"enabled":    enabled,
	})
}

func checkSources(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	log, err := newLogger(cfg)
	if err != nil {
		return cli.Exit(err.Error(), ExitGeneralError)
	}
	defer log.Sync()

	sources, err := selectSources(cfg, c.Args().Slice())
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher := feed.NewFetcher(log)
	results := make(map[string]interface{}, len(sources))
	for _, src := range sources {
		title, err := fetcher.CheckSource(ctx, src)
		if err != nil {
			results[src.Identifier] = map[string]interface{}{
				"ok":    false,
				"error": model.UserMessage(err),
			}
			continue
		}
		results[src.Identifier] = map[string]interface{}{
			"ok":    true,
			"title": title,
		}
	}

	return outputJSON(results)
}

func importOPML(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: newsdeck sources import <opml-file>", ExitUsageError)
	}

	file, err := os.Open(c.Args().Get(0))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to open OPML file: %v", err), ExitDataError)
	}
	defer file.Close()

	imported, err := opml.Parse(file)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to parse OPML: %v", err), ExitDataError)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	existing := make(map[string]bool)
	for _, s := range cfg.AllSources() {
		existing[s.Identifier] = true
	}

	added := 0
	skipped := 0
	for _, src := range imported {
		if existing[src.Identifier] {
			skipped++
			continue
		}
		existing[src.Identifier] = true
		cfg.Sources = append(cfg.Sources, src)
		added++
	}

	if err := cfg.Save(c.String("config")); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to save config: %v", err), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"success":  true,
		"imported": added,
		"skipped":  skipped,
		"total":    len(imported),
	})
}

func exportOPML(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	outputPath := c.String("output")
	var writer io.Writer

	if outputPath == "" {
		writer = os.Stdout
	} else {
		file, err := os.Create(outputPath)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to create output file: %v", err), ExitDataError)
		}
		defer file.Close()
		writer = file
	}

	sources := cfg.AllSources()
	if err := opml.Generate(writer, sources); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to generate OPML: %v", err), ExitDataError)
	}

	if outputPath != "" {
		return outputJSON(map[string]interface{}{
			"success": true,
			"file":    outputPath,
			"count":   len(sources),
		})
	}
	return nil
}

func cacheSize(c *cli.Context) error {
	cache, log, err := openCache(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer log.Sync()
	defer cache.Close()

	return outputJSON(map[string]interface{}{
		"bytes": cache.SizeOnDisk(),
	})
}

func cacheClear(c *cli.Context) error {
	cache, log, err := openCache(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer log.Sync()
	defer cache.Close()

	cache.Clear()
	return outputJSON(map[string]interface{}{
		"success": true,
	})
}

func openCache(c *cli.Context) (*imagecache.Cache, *zap.SugaredLogger, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}

	cache, err := imagecache.New(cfg.CacheDir, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open image cache: %w", err)
	}
	return cache, log, nil
}
