// Package brconfig centralizes the core's startup configuration (spec.md
// §6), read through github.com/ordishs/gocore's Config() accessor the same
// way the teacher reads every runtime knob (utxostore_dbTimeoutMillis,
// blockvalidation_txMetaCacheBatchSize, ...) in stores/utxo/sql/sql.go and
// services/validator/Validator.go.
package brconfig

import (
	"github.com/ordishs/gocore"
)

// Config is the enumerated set of options that affect core behavior. No
// other knob is read by the pipeline, validator, or processor runtime.
type Config struct {
	StartBlockHeight               uint32
	BatchSize                      int
	MaxReorgDepth                  uint32
	OpReturnFirstPositionThreshold uint32
	EnableOPI                      bool
	EnabledOPIs                    map[string]string
	LegacyOracleURL                string
	BitcoinGenesisTimestamp        int64

	StoreDSN string

	CacheRedisAddr string
	CacheTTLSecs   int

	KafkaBrokers    []string
	KafkaTopic      string
	KafkaPartitions int32

	NodeRPCURL     string
	NodeRPCTimeout int
}

// Load reads the core configuration from gocore.Config(), applying the
// defaults documented in spec.md §6.
func Load() *Config {
	c := &Config{}

	startHeight, _ := gocore.Config().GetInt("start_block_height", 0)
	c.StartBlockHeight = uint32(startHeight)

	c.BatchSize, _ = gocore.Config().GetInt("batch_size", 100)

	maxReorg, _ := gocore.Config().GetInt("max_reorg_depth", 6)
	c.MaxReorgDepth = uint32(maxReorg)

	threshold, _ := gocore.Config().GetInt("op_return_first_position_threshold_height", 780000)
	c.OpReturnFirstPositionThreshold = uint32(threshold)

	c.EnableOPI = gocore.Config().GetBool("enable_opi", true)

	c.EnabledOPIs = map[string]string{
		"swap":    "builtin:swap",
		"vault":   "builtin:vault",
		"poisson": "builtin:poisson",
	}

	c.LegacyOracleURL, _ = gocore.Config().Get("legacy_oracle_url", "")

	genesis, _ := gocore.Config().GetInt("bitcoin_genesis_timestamp", 1231006505)
	c.BitcoinGenesisTimestamp = int64(genesis)

	c.StoreDSN, _ = gocore.Config().Get("store_dsn", "sqlitememory://brc20indexer")

	c.CacheRedisAddr, _ = gocore.Config().Get("cache_redis_addr", "")
	c.CacheTTLSecs, _ = gocore.Config().GetInt("cache_ttl_secs", 30)

	brokersCSV, _ := gocore.Config().Get("kafka_brokers", "")
	c.KafkaBrokers = splitNonEmpty(brokersCSV)
	c.KafkaTopic, _ = gocore.Config().Get("kafka_audit_topic", "brc20-indexer-ops")
	partitions, _ := gocore.Config().GetInt("kafka_partitions", 1)
	c.KafkaPartitions = int32(partitions)

	c.NodeRPCURL, _ = gocore.Config().Get("node_rpc_url", "")
	c.NodeRPCTimeout, _ = gocore.Config().GetInt("node_rpc_timeout_secs", 30)

	return c
}

func splitNonEmpty(csv string) []string {
	if csv == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(csv); i++ {
		if i == len(csv) || csv[i] == ',' {
			if i > start {
				out = append(out, csv[start:i])
			}
			start = i + 1
		}
	}
	return out
}
