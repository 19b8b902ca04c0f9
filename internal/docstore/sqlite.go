package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/starford/insighthink/internal/apperr"
)

const collectionSchemaSQL = `
CREATE TABLE IF NOT EXISTS %[1]s (
	id  TEXT PRIMARY KEY,
	doc TEXT NOT NULL
);
`

// SQLite is a Store keeping each collection as a table of JSON documents.
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the database and a table per collection.
func OpenSQLite(dsn string, collections ...string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("docstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore: ping: %w", err)
	}
	for _, name := range collections {
		if !collectionNameRe.MatchString(name) {
			conn.Close()
			return nil, fmt.Errorf("docstore: invalid collection name %q", name)
		}
		if _, err := conn.Exec(fmt.Sprintf(collectionSchemaSQL, name)); err != nil {
			conn.Close()
			return nil, fmt.Errorf("docstore: create %s: %w", name, err)
		}
	}
	return &SQLite{conn: conn}, nil
}

// Collection returns the named collection. The table must have been
// created by OpenSQLite.
func (s *SQLite) Collection(name string) Collection {
	return &sqliteCollection{conn: s.conn, name: name}
}

// Ping checks the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *SQLite) Close(context.Context) error {
	return s.conn.Close()
}

type sqliteCollection struct {
	conn *sql.DB
	name string
}

func (c *sqliteCollection) Name() string { return c.name }

func (c *sqliteCollection) op(name string) string {
	return "docstore." + name + " " + c.name
}

func (c *sqliteCollection) FindOne(ctx context.Context, id primitive.ObjectID, out any) error {
	var doc string
	err := c.conn.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT doc FROM %s WHERE id = ?`, c.name), id.Hex()).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return errNoDocument()
	}
	if err != nil {
		return apperr.Storage(c.op("findOne"), err)
	}
	return apperr.Storage(c.op("findOne"), json.Unmarshal([]byte(doc), out))
}

func (c *sqliteCollection) FindOneBy(ctx context.Context, q Query, out any) error {
	where, args, err := sqliteWhere(q)
	if err != nil {
		return err
	}
	var doc string
	err = c.conn.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT doc FROM %s%s ORDER BY id DESC LIMIT 1`, c.name, where), args...).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return errNoDocument()
	}
	if err != nil {
		return apperr.Storage(c.op("findOneBy"), err)
	}
	return apperr.Storage(c.op("findOneBy"), json.Unmarshal([]byte(doc), out))
}

func (c *sqliteCollection) InsertOne(ctx context.Context, doc any) (primitive.ObjectID, error) {
	fields, err := toFields(doc)
	if err != nil {
		return primitive.NilObjectID, apperr.Storage(c.op("insertOne"), err)
	}
	id := primitive.NewObjectID()
	fields["id"] = id.Hex()
	data, err := json.Marshal(fields)
	if err != nil {
		return primitive.NilObjectID, apperr.Storage(c.op("insertOne"), err)
	}
	if _, err := c.conn.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES (?, ?)`, c.name), id.Hex(), string(data)); err != nil {
		return primitive.NilObjectID, apperr.Storage(c.op("insertOne"), err)
	}
	return id, nil
}

func (c *sqliteCollection) UpdateOne(ctx context.Context, id primitive.ObjectID, set any) error {
	patch, err := toFields(set)
	if err != nil {
		return apperr.Storage(c.op("updateOne"), err)
	}
	return c.mutate(ctx, "updateOne", id, func(fields map[string]any) error {
		for k, v := range patch {
			if k == "id" {
				continue
			}
			fields[k] = v
		}
		return nil
	})
}

func (c *sqliteCollection) Increment(ctx context.Context, id primitive.ObjectID, field string, delta int) error {
	if !fieldNameRe.MatchString(field) {
		return apperr.Validation("invalid field %q", field)
	}
	return c.mutate(ctx, "increment", id, func(fields map[string]any) error {
		var cur float64
		switch v := fields[field].(type) {
		case nil:
		case float64:
			cur = v
		default:
			return fmt.Errorf("field %s is %T, not a number", field, v)
		}
		fields[field] = int64(cur) + int64(delta)
		return nil
	})
}

// mutate applies fn to the decoded document inside a transaction.
func (c *sqliteCollection) mutate(ctx context.Context, op string, id primitive.ObjectID, fn func(map[string]any) error) error {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Storage(c.op(op), err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var doc string
	err = tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT doc FROM %s WHERE id = ?`, c.name), id.Hex()).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return errNoDocument()
	}
	if err != nil {
		return apperr.Storage(c.op(op), err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal([]byte(doc), &fields); err != nil {
		return apperr.Storage(c.op(op), err)
	}
	if err := fn(fields); err != nil {
		return apperr.Storage(c.op(op), err)
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return apperr.Storage(c.op(op), err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET doc = ? WHERE id = ?`, c.name), string(data), id.Hex()); err != nil {
		return apperr.Storage(c.op(op), err)
	}
	return apperr.Storage(c.op(op), tx.Commit())
}

func (c *sqliteCollection) DeleteOne(ctx context.Context, id primitive.ObjectID) error {
	res, err := c.conn.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, c.name), id.Hex())
	if err != nil {
		return apperr.Storage(c.op("deleteOne"), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Storage(c.op("deleteOne"), err)
	}
	if n == 0 {
		return errNoDocument()
	}
	return nil
}

func (c *sqliteCollection) Find(ctx context.Context, q Query, out any) error {
	where, args, err := sqliteWhere(q)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf(`SELECT doc FROM %s%s ORDER BY id DESC`, c.name, where)
	switch {
	case q.Limit > 0:
		stmt += ` LIMIT ? OFFSET ?`
		args = append(args, q.Limit, q.Skip)
	case q.Skip > 0:
		stmt += ` LIMIT -1 OFFSET ?`
		args = append(args, q.Skip)
	}
	rows, err := c.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return apperr.Storage(c.op("find"), err)
	}
	defer rows.Close()

	// Reassemble the rows as one JSON array so out can be any slice type.
	var buf strings.Builder
	buf.WriteByte('[')
	first := true
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return apperr.Storage(c.op("find"), err)
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.WriteString(doc)
	}
	if err := rows.Err(); err != nil {
		return apperr.Storage(c.op("find"), err)
	}
	buf.WriteByte(']')
	return apperr.Storage(c.op("find"), json.Unmarshal([]byte(buf.String()), out))
}

func (c *sqliteCollection) Count(ctx context.Context, q Query) (int64, error) {
	where, args, err := sqliteWhere(q)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := c.conn.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s%s`, c.name, where), args...).Scan(&n); err != nil {
		return 0, apperr.Storage(c.op("count"), err)
	}
	return n, nil
}

func sqliteWhere(q Query) (string, []any, error) {
	var clauses []string
	var args []any
	for k, v := range q.Filter {
		if !fieldNameRe.MatchString(k) {
			return "", nil, apperr.Validation("invalid field %q", k)
		}
		clauses = append(clauses, fmt.Sprintf(`json_extract(doc, '$.%s') = ?`, k))
		args = append(args, sqliteValue(v))
	}
	for k, v := range q.Contains {
		if !fieldNameRe.MatchString(k) {
			return "", nil, apperr.Validation("invalid field %q", k)
		}
		clauses = append(clauses, fmt.Sprintf(`EXISTS (SELECT 1 FROM json_each(doc, '$.%s') WHERE value = ?)`, k))
		args = append(args, v)
	}
	if q.Search != "" {
		clauses = append(clauses, `json_extract(doc, '$.title') LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(q.Search)+"%")
	}
	if len(clauses) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func sqliteValue(v any) any {
	switch x := v.(type) {
	case primitive.ObjectID:
		return x.Hex()
	case bool:
		if x {
			return 1
		}
		return 0
	}
	return v
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// toFields encodes v (a struct or map) into its JSON object form.
func toFields(v any) (map[string]any, error) {
	switch reflect.Indirect(reflect.ValueOf(v)).Kind() {
	case reflect.Struct, reflect.Map:
	default:
		return nil, fmt.Errorf("cannot store %T", v)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
