// Package sql implements the indexer's persistence layer (spec.md §6):
// deploy/balance/operation-log/processed-block/swap/vault storage over
// Postgres or sqlite, chosen by the scheme of the configured store URL -
// exactly the dual-engine posture of the teacher's
// stores/utxo/sql/sql.go and util/sql.go (InitSQLDB dispatching on
// storeUrl.Scheme between lib/pq and modernc.org/sqlite).
package sql

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"

	"github.com/bitcoin-sv/brc20indexer/ulogger"
	"github.com/google/uuid"
	"github.com/ordishs/gocore"

	_ "github.com/lib/pq"
	"modernc.org/sqlite"
)

// Engine identifies which SQL dialect backs a Store.
type Engine string

const (
	Postgres     Engine = "postgres"
	Sqlite       Engine = "sqlite"
	SqliteMemory Engine = "sqlitememory"
)

// initSQLDB opens a *sql.DB for storeURL, dispatching on its scheme.
func initSQLDB(logger ulogger.Logger, storeURL *url.URL) (*sql.DB, Engine, error) {
	switch storeURL.Scheme {
	case string(Postgres):
		db, err := initPostgresDB(logger, storeURL)
		return db, Postgres, err
	case string(Sqlite), string(SqliteMemory):
		db, err := initSQLiteDB(logger, storeURL)
		return db, Engine(storeURL.Scheme), err
	default:
		return nil, "", fmt.Errorf("unknown database engine: %s", storeURL.Scheme)
	}
}

func initPostgresDB(logger ulogger.Logger, storeURL *url.URL) (*sql.DB, error) {
	dbHost := storeURL.Hostname()
	dbPort, _ := strconv.Atoi(storeURL.Port())
	dbName := storeURL.Path[1:]
	dbUser, dbPassword := "", ""
	if storeURL.User != nil {
		dbUser = storeURL.User.Username()
		dbPassword, _ = storeURL.User.Password()
	}

	dsn := fmt.Sprintf("user=%s password=%s dbname=%s sslmode=disable host=%s port=%d", dbUser, dbPassword, dbName, dbHost, dbPort)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres DB: %w", err)
	}
	logger.Infof("using postgres DB: %s@%s:%d/%s", dbUser, dbHost, dbPort, dbName)

	idleConns, _ := gocore.Config().GetInt("indexer_postgresMaxIdleConns", 10)
	db.SetMaxIdleConns(idleConns)
	maxOpenConns, _ := gocore.Config().GetInt("indexer_postgresMaxOpenConns", 40)
	db.SetMaxOpenConns(maxOpenConns)

	return db, nil
}

// registerSqliteRegexpOnce guards the one-time registration of a "regexp"
// scalar function: sqlite has no built-in REGEXP operator, unlike
// Postgres's native `~`, so `X REGEXP Y` only works once an application
// function named "regexp" exists for the engine to dispatch to (sqlite
// translates `X REGEXP Y` into a call to regexp(Y, X)). Grounded on
// src/services/token_supply_service.py's get_regex_operator, which picks
// between Postgres's `~` and sqlite's `regexp` the same way.
var (
	registerSqliteRegexpOnce sync.Once
	registerSqliteRegexpErr  error
)

func registerSqliteRegexp() error {
	registerSqliteRegexpOnce.Do(func() {
		registerSqliteRegexpErr = sqlite.RegisterDeterministicScalarFunction("regexp", 2,
			func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
				pattern, ok := args[0].(string)
				if !ok {
					return nil, fmt.Errorf("regexp: pattern argument must be text")
				}
				value, ok := args[1].(string)
				if !ok {
					return int64(0), nil
				}
				matched, err := regexp.MatchString(pattern, value)
				if err != nil {
					return nil, err
				}
				if matched {
					return int64(1), nil
				}
				return int64(0), nil
			})
	})
	return registerSqliteRegexpErr
}

func initSQLiteDB(logger ulogger.Logger, storeURL *url.URL) (*sql.DB, error) {
	if err := registerSqliteRegexp(); err != nil {
		return nil, fmt.Errorf("registering sqlite regexp function: %w", err)
	}

	var filename string

	if storeURL.Scheme == string(SqliteMemory) {
		filename = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	} else {
		folder, _ := gocore.Config().Get("dataFolder", "data")
		if err := os.MkdirAll(folder, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data folder %s: %w", folder, err)
		}
		dbName := storeURL.Path[1:]
		abs, err := filepath.Abs(path.Join(folder, fmt.Sprintf("%s.db", dbName)))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve sqlite DB path: %w", err)
		}
		filename = fmt.Sprintf("%s?cache=shared&_pragma=busy_timeout=5000&_pragma=journal_mode=WAL", abs)
	}

	logger.Infof("using sqlite DB: %s", filename)
	return sql.Open("sqlite", filename)
}
