// Package postgres runs SQL queries and returns the results as datasets.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/lib/pq"

	"github.com/go-scripts/dqcheck/internal/dataset"
	"github.com/go-scripts/dqcheck/internal/normalize"
)

// Config holds the connection settings
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN builds a lib/pq key=value connection string
func (c Config) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}

	parts := []string{
		"host=" + quote(c.Host),
		fmt.Sprintf("port=%d", port),
		"dbname=" + quote(c.Name),
		"user=" + quote(c.User),
		"sslmode=" + quote(sslMode),
	}
	if c.Password != "" {
		parts = append(parts, "password="+quote(c.Password))
	}
	return strings.Join(parts, " ")
}

func quote(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Connector is an open database connection
type Connector struct {
	db *sql.DB
}

// Open connects to Postgres and verifies the connection
func Open(ctx context.Context, cfg Config) (*Connector, error) {
	log.Debug("Connecting to database", "host", cfg.Host, "port", cfg.Port, "db", cfg.Name, "user", cfg.User)
	return OpenDriver(ctx, "postgres", cfg.DSN())
}

// OpenDriver connects through any registered database/sql driver
func OpenDriver(ctx context.Context, driver, dsn string) (*Connector, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Connector{db: db}, nil
}

// With opens a connection, passes it to fn and closes it afterwards
func With(ctx context.Context, cfg Config, fn func(*Connector) error) error {
	c, err := Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

// Close closes the connection
func (c *Connector) Close() error {
	return c.db.Close()
}

// Exec runs a statement that returns no rows
func (c *Connector) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to execute statement: %w", err)
	}
	return nil
}

// Query runs a query and returns its rows as a dataset
func (c *Connector) Query(ctx context.Context, query string, args ...any) (*dataset.Dataset, error) {
	start := time.Now()
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	cols := make([]dataset.Column, len(types))
	numeric := make([]bool, len(types))
	for i, ct := range types {
		cols[i] = dataset.Column{Name: ct.Name(), Values: []any{}}
		switch strings.ToUpper(ct.DatabaseTypeName()) {
		case "NUMERIC", "DECIMAL":
			numeric[i] = true
		}
	}

	raw := make([]any, len(types))
	ptrs := make([]any, len(types))
	for i := range raw {
		ptrs[i] = &raw[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range raw {
			v = cellValue(v)
			if numeric[i] && v != nil {
				v = normalize.Float(v)
			}
			cols[i].Values = append(cols[i].Values, v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	ds := &dataset.Dataset{Columns: cols}
	log.Debug("Query finished", "rows", ds.NumRows(), "took", time.Since(start))
	return ds, nil
}

func cellValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC()
	default:
		return dataset.Normalize(v)
	}
}
