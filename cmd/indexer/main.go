// Command indexer wires spec.md's components — store, cache, legacy
// oracle, validator, processor registry, and block pipeline — into a
// runnable polling loop. Per spec.md §1, the node-RPC client and the
// read-only query API are external collaborators out of scope for this
// repo; this binary's BlockSource seam (blocksource.go) stands in for the
// former with a file replay source suitable for local runs and
// integration tests.
package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bitcoin-sv/brc20indexer/brconfig"
	"github.com/bitcoin-sv/brc20indexer/indexer"
	"github.com/bitcoin-sv/brc20indexer/opi"
	"github.com/bitcoin-sv/brc20indexer/opi/builtin"
	"github.com/bitcoin-sv/brc20indexer/opi/poisson"
	"github.com/bitcoin-sv/brc20indexer/opi/swap"
	"github.com/bitcoin-sv/brc20indexer/opi/vault"
	"github.com/bitcoin-sv/brc20indexer/state"
	"github.com/bitcoin-sv/brc20indexer/stores/cache"
	"github.com/bitcoin-sv/brc20indexer/stores/kafka"
	"github.com/bitcoin-sv/brc20indexer/stores/legacyoracle"
	sqlstore "github.com/bitcoin-sv/brc20indexer/stores/sql"
	"github.com/bitcoin-sv/brc20indexer/ulogger"
	"github.com/bitcoin-sv/brc20indexer/util/retry"
	"github.com/bitcoin-sv/brc20indexer/validator"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "indexer",
		Usage: "derive BRC-20 token state from a Bitcoin block stream",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "store-dsn", Usage: "persistence DSN, e.g. postgres://... or sqlite:///name (opens <dataFolder>/name.db)"},
			&cli.UintFlag{Name: "start-height", Usage: "overrides start_block_height"},
			&cli.UintFlag{Name: "max-reorg-depth", Usage: "overrides max_reorg_depth"},
			&cli.StringFlag{Name: "blocks-file", Required: true, Usage: "newline-delimited JSON RPCBlock replay file"},
			&cli.StringFlag{Name: "cache-redis-addr", Usage: "overrides cache_redis_addr"},
			&cli.StringFlag{Name: "legacy-oracle-url", Usage: "overrides legacy_oracle_url"},
			&cli.BoolFlag{Name: "enable-opi", Usage: "overrides enable_opi"},
			&cli.StringSliceFlag{Name: "kafka-brokers", Usage: "overrides kafka_brokers"},
			&cli.StringFlag{Name: "log-level", Value: "info"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger := ulogger.New("indexer", c.String("log-level"))

	cfg := brconfig.Load()
	applyFlagOverrides(cfg, c)

	storeURL, err := url.Parse(cfg.StoreDSN)
	if err != nil {
		return fmt.Errorf("parsing store_dsn %q: %w", cfg.StoreDSN, err)
	}

	store, err := sqlstore.New(logger, storeURL)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	var reads state.PersistentStore = cache.NewCachedStore(store, buildCache(cfg), time.Duration(cfg.CacheTTLSecs)*time.Second)

	var oracle validator.LegacyOracle
	if cfg.LegacyOracleURL != "" {
		oracle = legacyoracle.New(cfg.LegacyOracleURL, logger)
	}
	v := validator.New(cfg, oracle)

	registry := buildRegistry(cfg, v, store)

	var audit indexer.AuditPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher, perr := kafka.New(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaPartitions)
		if perr != nil {
			logger.Warnf("kafka audit publisher disabled: %v", perr)
		} else {
			audit = publisher
		}
	}

	pipeline := indexer.New(cfg, store, registry, logger, audit, nil).WithReadStore(reads)

	source, err := newFileBlockSource(c.String("blocks-file"))
	if err != nil {
		return fmt.Errorf("loading block source: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return pollLoop(ctx, logger, pipeline, source, cfg.StartBlockHeight)
}

// applyFlagOverrides lets explicit CLI flags win over gocore.Config()'s
// defaults/env/file-backed values, without giving the CLI layer any say
// over knobs spec.md §6 doesn't enumerate.
func applyFlagOverrides(cfg *brconfig.Config, c *cli.Context) {
	if c.IsSet("store-dsn") {
		cfg.StoreDSN = c.String("store-dsn")
	}
	if c.IsSet("start-height") {
		cfg.StartBlockHeight = uint32(c.Uint("start-height"))
	}
	if c.IsSet("max-reorg-depth") {
		cfg.MaxReorgDepth = uint32(c.Uint("max-reorg-depth"))
	}
	if c.IsSet("cache-redis-addr") {
		cfg.CacheRedisAddr = c.String("cache-redis-addr")
	}
	if c.IsSet("legacy-oracle-url") {
		cfg.LegacyOracleURL = c.String("legacy-oracle-url")
	}
	if c.IsSet("enable-opi") {
		cfg.EnableOPI = c.Bool("enable-opi")
	}
	if c.IsSet("kafka-brokers") {
		cfg.KafkaBrokers = c.StringSlice("kafka-brokers")
	}
}

// buildCache constructs §6's best-effort TTL cache: Redis layered over an
// in-process fallback when cache_redis_addr is set, the in-process cache
// alone otherwise. Never returns nil when local-only caching still applies
// — the in-process layer has no external dependency to be absent.
func buildCache(cfg *brconfig.Config) cache.Cache {
	local := cache.NewLocal()
	if cfg.CacheRedisAddr == "" {
		return local
	}
	remote := cache.NewRedis(cfg.CacheRedisAddr, "", 0)
	return cache.NewLayered(remote, local)
}

// buildRegistry registers the built-in deploy/mint/transfer processors
// unconditionally (spec.md §4.7: "the pipeline does not special-case them
// beyond ordering") and the configured extensions when enable_opi is set.
func buildRegistry(cfg *brconfig.Config, v *validator.Validator, store *sqlstore.Store) *opi.Registry {
	registry := opi.NewRegistry()
	registry.Register("deploy", builtin.NewDeployFactory(v))
	registry.Register("mint", builtin.NewMintFactory(v))
	registry.Register("transfer", builtin.NewTransferFactory(v))

	if !cfg.EnableOPI {
		return registry
	}
	if _, ok := cfg.EnabledOPIs["swap"]; ok {
		registry.Register("swap", swap.NewBlockEndFactory(store))
	}
	if _, ok := cfg.EnabledOPIs["vault"]; ok {
		registry.Register("vault", vault.NewFactory(store))
	}
	if _, ok := cfg.EnabledOPIs["poisson"]; ok {
		registry.Register("poisson", poisson.NewFactory())
	}
	return registry
}

// pollLoop drives blocks through pipeline in ascending height order
// (spec.md §5: "commit order is strict ascending height"), retrying a
// missing block with backoff before treating the tip as not-yet-mined and
// sleeping, rather than failing the process.
func pollLoop(ctx context.Context, logger ulogger.Logger, pipeline *indexer.Pipeline, source BlockSource, startHeight uint32) error {
	height := startHeight

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		found, err := retry.Retry(ctx, logger, func() (bool, error) {
			_, ok, ferr := source.GetBlock(ctx, height)
			if ferr == nil && !ok {
				ferr = fmt.Errorf("block %d not available yet", height)
			}
			return ok, ferr
		}, retry.WithMessage(fmt.Sprintf("fetching block %d, ", height)), retry.WithRetryCount(3), retry.WithBackoffDurationType(time.Second))
		if err != nil || !found {
			if ctx.Err() != nil {
				return nil
			}
			logger.Debugf("no block at height %d yet: %v", height, err)
			time.Sleep(2 * time.Second)
			continue
		}

		rpcBlock, _, err := source.GetBlock(ctx, height)
		if err != nil {
			return fmt.Errorf("re-fetching block %d: %w", height, err)
		}

		outcome, err := pipeline.ProcessBlock(ctx, rpcBlock)
		if err != nil {
			return fmt.Errorf("processing block %d: %w", height, err)
		}

		switch outcome.Status {
		case indexer.StatusReorged:
			logger.Warnf("reorg detected at height %d, rolled back to %d", height, outcome.RollbackHeight)
			height = outcome.RollbackHeight + 1
		case indexer.StatusDuplicate:
			logger.Debugf("block %d already processed, skipping", height)
			height++
		default:
			logger.Infof("committed block %d: %d ops found, %d valid", height, outcome.OpsFound, outcome.OpsValid)
			height++
		}
	}
}
