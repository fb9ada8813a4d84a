// Package postgres implements the gateway and change feed directly against
// a self-hosted postgres, for deployments that skip the hosted platform.
// The schema, including the likes uniqueness constraint and the change
// triggers, ships as embedded goose migrations.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/framefeed/internal/client/backend"
	"github.com/dmitrijs2005/framefeed/internal/client/backend/postgres/migrations"
	"github.com/dmitrijs2005/framefeed/internal/common"
	"github.com/dmitrijs2005/framefeed/internal/logging"
)

// gooseUpContext is a seam for testing RunMigrations.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Gateway implements backend.Gateway over database/sql with the pgx driver.
// Rows travel as JSON (row_to_json server-side) so the decode path is the
// same one every other backend uses.
type Gateway struct {
	db  *sql.DB
	log logging.Logger
}

func Open(ctx context.Context, dsn string, log logging.Logger) (*Gateway, error) {
	if log == nil {
		log = logging.Discard()
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	g := &Gateway{db: db, log: log}
	if err := g.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return g, nil
}

func (g *Gateway) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, g.db, ".")
}

func (g *Gateway) Close() error { return g.db.Close() }

func (g *Gateway) Select(ctx context.Context, table string, filter backend.Filter, order backend.Order, dest any) error {
	query, args := buildSelect(table, filter, order)

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("select %s: %w", table, mapError(err))
	}
	defer rows.Close()

	raw := []json.RawMessage{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return fmt.Errorf("select %s: %w", table, err)
		}
		raw = append(raw, json.RawMessage(doc))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("select %s: %w", table, mapError(err))
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (g *Gateway) Count(ctx context.Context, table string, filter backend.Filter) (int, error) {
	where, args := buildWhere(filter)
	query := fmt.Sprintf("SELECT count(*) FROM %s%s", sanitize(table), where)

	var n int
	if err := g.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, mapError(err))
	}
	return n, nil
}

func (g *Gateway) Insert(ctx context.Context, table string, row any, dest any) error {
	values, err := insertValues(row)
	if err != nil {
		return err
	}

	cols := make([]string, 0, len(values))
	for c := range values {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = sanitize(c)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = values[c]
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING row_to_json(%s.*)",
		sanitize(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "), sanitize(table))

	var doc []byte
	if err := g.db.QueryRowContext(ctx, query, args...).Scan(&doc); err != nil {
		return fmt.Errorf("insert %s: %w", table, mapError(err))
	}
	if dest == nil {
		return nil
	}
	return json.Unmarshal(doc, dest)
}

func (g *Gateway) Update(ctx context.Context, table string, filter backend.Filter, delta map[string]any) (int64, error) {
	cols := make([]string, 0, len(delta))
	for c := range delta {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(filter))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", sanitize(c), i+1)
		args = append(args, delta[c])
	}

	where, whereArgs := buildWhereOffset(filter, len(args))
	args = append(args, whereArgs...)

	query := fmt.Sprintf("UPDATE %s SET %s%s", sanitize(table), strings.Join(sets, ", "), where)
	res, err := g.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, mapError(err))
	}
	return res.RowsAffected()
}

func (g *Gateway) Delete(ctx context.Context, table string, filter backend.Filter) (int64, error) {
	where, args := buildWhere(filter)
	query := fmt.Sprintf("DELETE FROM %s%s", sanitize(table), where)

	res, err := g.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, mapError(err))
	}
	return res.RowsAffected()
}

// sanitize quotes an identifier coming from the table/column constants, so
// a filter key can never smuggle SQL into the statement.
func sanitize(identifier string) string {
	return pgx.Identifier{identifier}.Sanitize()
}

func buildSelect(table string, filter backend.Filter, order backend.Order) (string, []any) {
	where, args := buildWhere(filter)

	var orderBy string
	if order.Column != "" {
		dir := "ASC"
		if order.Descending {
			dir = "DESC"
		}
		orderBy = fmt.Sprintf(" ORDER BY %s %s, %s ASC", sanitize(order.Column), dir, sanitize("id"))
	}

	t := sanitize(table)
	return fmt.Sprintf("SELECT row_to_json(%s.*) FROM %s%s%s", t, t, where, orderBy), args
}

func buildWhere(filter backend.Filter) (string, []any) {
	return buildWhereOffset(filter, 0)
}

func buildWhereOffset(filter backend.Filter, offset int) (string, []any) {
	if len(filter) == 0 {
		return "", nil
	}
	preds := make([]string, 0, len(filter))
	args := make([]any, 0, len(filter))
	for _, col := range filter.Columns() {
		preds = append(preds, fmt.Sprintf("%s = $%d", sanitize(col), offset+len(args)+1))
		args = append(args, filter[col])
	}
	return " WHERE " + strings.Join(preds, " AND "), args
}

// insertValues flattens the row into column values, dropping the id and
// created_at the server assigns.
func insertValues(row any) (map[string]any, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	var values map[string]any
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}

	if id, ok := values["id"].(string); !ok || id == "" {
		delete(values, "id")
	}
	if ts, ok := values["created_at"].(string); !ok || ts == "" || strings.HasPrefix(ts, "0001-01-01") {
		delete(values, "created_at")
	}
	return values, nil
}

func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return fmt.Errorf("unique violation on %s: %w", pgErr.ConstraintName, common.ErrConflict)
		case pgErr.Code == "23503":
			return fmt.Errorf("missing referenced row: %w", common.ErrNotFound)
		case strings.HasPrefix(pgErr.Code, "08"):
			return fmt.Errorf("connection failure: %w", common.ErrUnavailable)
		}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	return err
}
