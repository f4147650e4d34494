// Package sqlsource loads reference and sales lists straight from a database table.
package sqlsource

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/contact-scrub/internal/schema"
)

// drivers maps accepted driver names to the registered database/sql driver and its flavor.
var drivers = map[string]struct {
	name   string
	flavor sqlbuilder.Flavor
}{
	"postgres":   {"postgres", sqlbuilder.PostgreSQL},
	"postgresql": {"postgres", sqlbuilder.PostgreSQL},
	"sqlite":     {"sqlite", sqlbuilder.SQLite},
	"sqlite3":    {"sqlite", sqlbuilder.SQLite},
}

// Source is an open database holding contact tables.
type Source struct {
	db     *sqlx.DB
	flavor sqlbuilder.Flavor
}

// Open connects and pings the database.
func Open(ctx context.Context, driver, dsn string) (*Source, error) {
	d, ok := drivers[strings.ToLower(driver)]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q (expected postgres or sqlite)", driver)
	}

	db, err := sqlx.ConnectContext(ctx, d.name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", d.name, err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	return &Source{db: db, flavor: d.flavor}, nil
}

// Close closes the database connection
func (s *Source) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle.
func (s *Source) DB() *sqlx.DB {
	return s.db
}

func (s *Source) quote(ident string) string {
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		parts[i] = s.flavor.Quote(strings.TrimSpace(p))
	}
	return strings.Join(parts, ".")
}

// SelectQuery builds the SELECT for table. No columns means every column.
func (s *Source) SelectQuery(table string, columns []string) (string, []interface{}) {
	sb := s.flavor.NewSelectBuilder()
	if len(columns) == 0 {
		sb.Select("*")
	} else {
		quoted := make([]string, len(columns))
		for i, c := range columns {
			quoted[i] = s.quote(c)
		}
		sb.Select(quoted...)
	}
	sb.From(s.quote(table))
	return sb.Build()
}

// Load reads table into a raw table. Column names become the header; NULL becomes "".
func (s *Source) Load(ctx context.Context, table string, columns []string) (schema.Table, error) {
	if strings.TrimSpace(table) == "" {
		return schema.Table{}, fmt.Errorf("table name is required")
	}

	query, args := s.SelectQuery(table, columns)
	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return schema.Table{}, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	header, err := rows.Columns()
	if err != nil {
		return schema.Table{}, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}

	var data [][]string
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return schema.Table{}, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = text(v)
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return schema.Table{}, fmt.Errorf("failed to read %s: %w", table, err)
	}

	return schema.Table{Name: "sql:" + table, Header: header, Rows: data}, nil
}

// text renders a scanned value the way a spreadsheet export would.
func text(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(x)
	}
}
