package sql

import "database/sql"

const postgresSchema = `
CREATE TABLE IF NOT EXISTS deploys (
	id SERIAL PRIMARY KEY,
	ticker TEXT UNIQUE NOT NULL,
	max_supply TEXT NOT NULL,
	remaining_supply TEXT NOT NULL,
	limit_per_op TEXT,
	deploy_txid TEXT NOT NULL,
	deploy_height BIGINT NOT NULL,
	deploy_timestamp TIMESTAMPTZ NOT NULL,
	deployer_address TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS balances (
	address TEXT NOT NULL,
	ticker TEXT NOT NULL,
	balance TEXT NOT NULL,
	PRIMARY KEY (address, ticker)
);

CREATE TABLE IF NOT EXISTS operation_log (
	id BIGSERIAL PRIMARY KEY,
	txid TEXT NOT NULL,
	vout_index INT NOT NULL,
	operation_kind TEXT NOT NULL,
	ticker TEXT,
	amount TEXT,
	from_address TEXT,
	to_address TEXT,
	block_height BIGINT NOT NULL,
	block_hash TEXT NOT NULL,
	tx_index INT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL,
	is_valid BOOLEAN NOT NULL,
	error_code TEXT,
	error_message TEXT,
	raw_payload BYTEA,
	parsed_payload BYTEA,
	is_marketplace BOOLEAN NOT NULL DEFAULT FALSE,
	is_multi_transfer BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS processed_blocks (
	height BIGINT PRIMARY KEY,
	block_hash TEXT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL,
	tx_count INT NOT NULL,
	ops_found INT NOT NULL,
	ops_valid INT NOT NULL
);

CREATE TABLE IF NOT EXISTS swap_positions (
	id SERIAL PRIMARY KEY,
	owner_address TEXT NOT NULL,
	pool_id TEXT NOT NULL,
	src_ticker TEXT NOT NULL,
	dst_ticker TEXT NOT NULL,
	amount_locked TEXT NOT NULL,
	lock_duration_blocks BIGINT NOT NULL,
	lock_start_height BIGINT NOT NULL,
	unlock_height BIGINT NOT NULL,
	status TEXT NOT NULL,
	init_txid TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS vaults (
	id SERIAL PRIMARY KEY,
	p2tr_address TEXT UNIQUE NOT NULL,
	owner_address TEXT NOT NULL,
	collateral_sats BIGINT NOT NULL,
	remaining_blocks BIGINT,
	w_proof_commitment TEXT NOT NULL,
	status TEXT NOT NULL,
	reveal_txid TEXT NOT NULL,
	reveal_height BIGINT NOT NULL,
	closing_txid TEXT,
	closing_height BIGINT
);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS deploys (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ticker TEXT UNIQUE NOT NULL,
	max_supply TEXT NOT NULL,
	remaining_supply TEXT NOT NULL,
	limit_per_op TEXT,
	deploy_txid TEXT NOT NULL,
	deploy_height INTEGER NOT NULL,
	deploy_timestamp DATETIME NOT NULL,
	deployer_address TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS balances (
	address TEXT NOT NULL,
	ticker TEXT NOT NULL,
	balance TEXT NOT NULL,
	PRIMARY KEY (address, ticker)
);

CREATE TABLE IF NOT EXISTS operation_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	txid TEXT NOT NULL,
	vout_index INTEGER NOT NULL,
	operation_kind TEXT NOT NULL,
	ticker TEXT,
	amount TEXT,
	from_address TEXT,
	to_address TEXT,
	block_height INTEGER NOT NULL,
	block_hash TEXT NOT NULL,
	tx_index INTEGER NOT NULL,
	timestamp DATETIME NOT NULL,
	is_valid INTEGER NOT NULL,
	error_code TEXT,
	error_message TEXT,
	raw_payload BLOB,
	parsed_payload BLOB,
	is_marketplace INTEGER NOT NULL DEFAULT 0,
	is_multi_transfer INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS processed_blocks (
	height INTEGER PRIMARY KEY,
	block_hash TEXT NOT NULL,
	timestamp DATETIME NOT NULL,
	tx_count INTEGER NOT NULL,
	ops_found INTEGER NOT NULL,
	ops_valid INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS swap_positions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_address TEXT NOT NULL,
	pool_id TEXT NOT NULL,
	src_ticker TEXT NOT NULL,
	dst_ticker TEXT NOT NULL,
	amount_locked TEXT NOT NULL,
	lock_duration_blocks INTEGER NOT NULL,
	lock_start_height INTEGER NOT NULL,
	unlock_height INTEGER NOT NULL,
	status TEXT NOT NULL,
	init_txid TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS vaults (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	p2tr_address TEXT UNIQUE NOT NULL,
	owner_address TEXT NOT NULL,
	collateral_sats INTEGER NOT NULL,
	remaining_blocks INTEGER,
	w_proof_commitment TEXT NOT NULL,
	status TEXT NOT NULL,
	reveal_txid TEXT NOT NULL,
	reveal_height INTEGER NOT NULL,
	closing_txid TEXT,
	closing_height INTEGER
);
`

func createPostgresSchema(db *sql.DB) error {
	_, err := db.Exec(postgresSchema)
	return err
}

func createSqliteSchema(db *sql.DB) error {
	_, err := db.Exec(sqliteSchema)
	return err
}
