package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

type Store struct {
	db      *sql.DB
	dialect dialect
	ops
}

// Tx is a transaction-bound view over the same operation set as Store.
type Tx struct {
	tx *sql.Tx
	ops
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type dialect struct {
	name   string
	schema []string
	// uniqueField reports which unique column a driver error violated, or "".
	uniqueField func(err error) string
}

var sqliteDialect = dialect{
	name: DriverSQLite,
	schema: []string{`CREATE TABLE IF NOT EXISTS tarefas (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    nome TEXT NOT NULL UNIQUE,
    custo REAL NOT NULL CHECK (custo >= 0),
    data_limite TEXT NOT NULL,
    ordem INTEGER NOT NULL UNIQUE
)`, `CREATE TABLE IF NOT EXISTS trocas (
    tarefa_id INTEGER PRIMARY KEY,
    ordem_origem INTEGER NOT NULL,
    vizinho_id INTEGER NOT NULL,
    ordem_destino INTEGER NOT NULL
)`},
	uniqueField: func(err error) string {
		e := err.Error()
		if !strings.Contains(e, "UNIQUE constraint failed") {
			return ""
		}
		switch {
		case strings.Contains(e, "tarefas.nome"):
			return FieldName
		case strings.Contains(e, "tarefas.ordem"):
			return FieldRank
		}
		return ""
	},
}

var mysqlDialect = dialect{
	name: DriverMySQL,
	schema: []string{`CREATE TABLE IF NOT EXISTS tarefas (
    id BIGINT PRIMARY KEY AUTO_INCREMENT,
    nome VARCHAR(255) NOT NULL,
    custo DOUBLE NOT NULL,
    data_limite CHAR(10) NOT NULL,
    ordem BIGINT NOT NULL,
    UNIQUE KEY uniq_tarefas_nome (nome),
    UNIQUE KEY uniq_tarefas_ordem (ordem),
    CHECK (custo >= 0)
)`, `CREATE TABLE IF NOT EXISTS trocas (
    tarefa_id BIGINT PRIMARY KEY,
    ordem_origem BIGINT NOT NULL,
    vizinho_id BIGINT NOT NULL,
    ordem_destino BIGINT NOT NULL
)`},
	uniqueField: func(err error) string {
		var me *mysql.MySQLError
		if !errors.As(err, &me) || me.Number != 1062 {
			return ""
		}
		switch {
		case strings.Contains(me.Message, "uniq_tarefas_nome"):
			return FieldName
		case strings.Contains(me.Message, "uniq_tarefas_ordem"):
			return FieldRank
		}
		return ""
	},
}

// Open connects to the given driver and bootstraps the tarefas table.
// For sqlite the dsn is a file path; for mysql a go-sql-driver DSN.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case "", DriverSQLite:
		return openSQLite(ctx, dsn)
	case DriverMySQL:
		return openMySQL(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
}

func openSQLite(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = "database.sqlite"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection: a transaction excludes every other statement
	db.SetMaxOpenConns(1)
	return newStore(ctx, db, sqliteDialect)
}

func openMySQL(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	// RowsAffected must count matched rows, not changed rows
	cfg.ClientFoundRows = true
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return newStore(ctx, sql.OpenDB(connector), mysqlDialect)
}

func newStore(ctx context.Context, db *sql.DB, d dialect) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	s := &Store{db: db, dialect: d, ops: ops{q: db, d: d}}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Driver returns the driver name the store was opened with.
func (s *Store) Driver() string { return s.dialect.name }

func (s *Store) migrate(ctx context.Context) error {
	for _, ddl := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}

// WithTx runs fn inside a transaction and commits when it returns nil.
// fn must only use the Queries it is given.
func (s *Store) WithTx(ctx context.Context, fn func(Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(&Tx{tx: tx, ops: ops{q: tx, d: s.dialect}}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
