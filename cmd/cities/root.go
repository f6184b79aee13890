package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/viant/sqlite-vptree/alloc"
	"github.com/viant/sqlite-vptree/bridge"
	"github.com/viant/sqlite-vptree/config"
	"github.com/viant/sqlite-vptree/index"
	"github.com/viant/sqlite-vptree/index/bruteforce"
	"github.com/viant/sqlite-vptree/index/vptree"
	"github.com/viant/sqlite-vptree/internal/cities"
	"github.com/viant/sqlite-vptree/logger"
)

const citiesLongDesc string = `Cities loads a list of cities and answers proximity queries over a
VP-tree measured by great-circle distance.

Records look like:
  "Paris" 48°51'N 2°21'E
Malformed records are skipped.

Query with:
  cities knn      The k nearest cities
  cities approx   The k nearest cities found within a node budget
  cities within   Every city within a radius (km)
  cities walk     Cities in order of distance, one at a time

Pass --sql to route every call through the SQLite host.`

const citiesShortDesc string = "Cities - nearest-city queries over a VP-tree"

// distanceName is the callback name the great-circle distance is registered under.
const distanceName = "great_circle"

type citiesCommander struct {
	configPath string
	file       string
	city       string
	useSQL     bool
	debug      bool
	pretty     bool

	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	list     []cities.City
	query    cities.City
}

func newCitiesCmd() *cobra.Command {
	cmder := &citiesCommander{}
	cmd := &cobra.Command{
		Use:          "cities",
		Short:        citiesShortDesc,
		Long:         citiesLongDesc,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.init(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cmder.configPath, "config", "", "Config file (toml, yaml or json)")
	flags.StringVarP(&cmder.file, "file", "f", "cities.txt", "City list")
	flags.StringVarP(&cmder.city, "city", "c", "", "Query city name (random when empty)")
	flags.BoolVar(&cmder.useSQL, "sql", false, "Run through the SQLite host")
	flags.BoolVarP(&cmder.debug, "debug", "d", false, "Enable debug logging")
	flags.BoolVar(&cmder.pretty, "pretty", false, "Human friendly log output")
	flags.String("engine", config.EngineVPTree, "Engine: vptree or brute")
	flags.String("dsn", "", "SQLite DSN used with --sql")

	cmd.AddCommand(newKnnCmd(cmder))
	cmd.AddCommand(newApproxCmd(cmder))
	cmd.AddCommand(newWithinCmd(cmder))
	cmd.AddCommand(newWalkCmd(cmder))
	return cmd
}

// flagKeys maps flags onto config keys.
var flagKeys = map[string]string{
	"engine":    "engine",
	"dsn":       "sql.dsn",
	"k":         "query.k",
	"max-nodes": "query.max_nodes",
	"radius":    "query.radius",
}

func (c *citiesCommander) init(cmd *cobra.Command) error {
	v, err := config.InitViper(c.configPath)
	if err != nil {
		return err
	}
	if err := config.BindFlags(v, cmd.Flags(), flagKeys); err != nil {
		return err
	}
	if c.debug {
		v.Set("log.level", "debug")
	}
	if c.pretty {
		v.Set("log.format", "pretty")
	}
	if c.cfg, err = config.Load(v); err != nil {
		return err
	}
	c.logger = logger.New(logger.WithLevel(c.cfg.Log.Level), logger.WithFormat(c.cfg.Log.Format))
	c.registry = prometheus.NewRegistry()

	if c.list, err = cities.LoadFile(c.file, c.logger); err != nil {
		return fmt.Errorf("loading cities: %w", err)
	}
	if len(c.list) == 0 {
		return fmt.Errorf("no cities in %s", c.file)
	}
	c.logger.Debug("cities loaded", "count", len(c.list), "file", c.file)

	if c.city == "" {
		c.query = c.list[rand.IntN(len(c.list))]
		return nil
	}
	var ok bool
	if c.query, ok = cities.Find(c.list, c.city); !ok {
		return fmt.Errorf("unknown city %q", c.city)
	}
	return nil
}

func (c *citiesCommander) bridgeOptions() []bridge.Option {
	var factory index.Factory = vptree.Factory
	if c.cfg.Engine == config.EngineBrute {
		factory = bruteforce.Factory
	}
	return []bridge.Option{
		bridge.WithEngine(factory),
		bridge.WithAllocator(alloc.NewPersistent(alloc.Config{MemoryLimitBytes: c.cfg.MemoryLimitBytes})),
		bridge.WithLogger(c.logger),
		bridge.WithRegisterer(c.registry),
	}
}

// open builds the tree over every loaded city.
func (c *citiesCommander) open(ctx context.Context) (cityTree, error) {
	var (
		tree cityTree
		err  error
	)
	if c.useSQL {
		tree, err = openSQLTree(ctx, c.cfg.SQL.DSN, c.bridgeOptions())
	} else {
		tree, err = openBridgeTree(ctx, c.bridgeOptions())
	}
	if err != nil {
		return nil, err
	}
	if err := tree.addAll(ctx, c.list); err != nil {
		_ = tree.close(ctx)
		return nil, err
	}
	return tree, nil
}

// reportMetrics logs the bridge counters at debug level.
func (c *citiesCommander) reportMetrics() {
	families, err := c.registry.Gather()
	if err != nil {
		c.logger.Debug("gathering metrics failed", "error", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if counter := m.GetCounter(); counter != nil {
				attrs := []any{"name", mf.GetName(), "value", counter.GetValue()}
				for _, label := range m.GetLabel() {
					attrs = append(attrs, label.GetName(), label.GetValue())
				}
				c.logger.Debug("metric", attrs...)
			}
		}
	}
}
