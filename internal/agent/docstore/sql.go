package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	serr "github.com/tiomoreno/requiety-sub000/internal/shared/errors"
)

// SQLStore хранит все коллекции в одной таблице:
//
//	documents(seq, collection, id, doc)
//
// seq задаёт порядок вставки, (collection, id) уникален,
// doc — JSON (TEXT в SQLite, JSONB в PostgreSQL).
type SQLStore struct {
	db *sql.DB
	d  dialect
}

// NewSQLiteStore оборачивает открытое SQLite-подключение. Схему создаёт EnsureSQLiteSchema.
func NewSQLiteStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, d: sqliteDialect{}}
}

// NewPostgresStore оборачивает открытое PostgreSQL-подключение. Схему создают миграции.
func NewPostgresStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, d: postgresDialect{}}
}

// Collection реализует Store.
func (s *SQLStore) Collection(name string) Collection {
	return &sqlCollection{store: s, name: name}
}

// Close закрывает подключение к базе.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// DB отдаёт подключение (нужно миграциям и тестам).
func (s *SQLStore) DB() *sql.DB { return s.db }

type sqlCollection struct {
	store *SQLStore
	name  string
}

// where собирает "collection = ? AND <predicates>" в порядке имён полей.
func (c *sqlCollection) where(a *sqlArgs, q Query) (string, error) {
	if err := validateQuery(q); err != nil {
		return "", err
	}
	d := c.store.d
	parts := []string{"collection = " + a.add(c.name)}
	for _, f := range sortedKeys(q) {
		v := q[f]
		if in, ok := v.(In); ok {
			if len(in) == 0 {
				parts = append(parts, "1 = 0")
				continue
			}
			arg, err := d.inArg([]any(in))
			if err != nil {
				return "", err
			}
			parts = append(parts, d.in(f, a.add(arg)))
			continue
		}
		if v == nil {
			parts = append(parts, d.isNull(f))
			continue
		}
		js, err := jsonArg(v)
		if err != nil {
			return "", err
		}
		parts = append(parts, d.eq(f, a.add(js)))
	}
	return strings.Join(parts, " AND "), nil
}

func (c *sqlCollection) Insert(ctx context.Context, doc Document) (Document, error) {
	norm, err := normalizeDoc(doc)
	if err != nil {
		return nil, err
	}
	id, err := docID(norm)
	if err != nil {
		return nil, err
	}
	for f := range norm {
		if err := validateField(f); err != nil {
			return nil, err
		}
	}
	b, err := json.Marshal(norm)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}

	a := &sqlArgs{d: c.store.d}
	query := fmt.Sprintf(
		"INSERT INTO documents (collection, id, doc) VALUES (%s, %s, %s)",
		a.add(c.name), a.add(id), a.addDoc(string(b)),
	)
	if _, err := c.store.db.ExecContext(ctx, query, a.vals...); err != nil {
		if c.store.d.isUniqueViolation(err) {
			return nil, fmt.Errorf("%s %q: %w", c.name, id, serr.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("insert %s: %w", c.name, err)
	}
	return norm, nil
}

func (c *sqlCollection) Update(ctx context.Context, q Query, set Document, opts UpdateOptions) (int, error) {
	if err := validateSet(set); err != nil {
		return 0, err
	}
	if len(set) == 0 {
		return 0, nil
	}
	patch, err := normalizeDoc(set)
	if err != nil {
		return 0, err
	}

	a := &sqlArgs{d: c.store.d}
	setExpr, err := c.store.d.set(a, patch)
	if err != nil {
		return 0, err
	}
	cond, err := c.where(a, q)
	if err != nil {
		return 0, err
	}

	var query string
	if opts.Multi {
		query = fmt.Sprintf("UPDATE documents SET doc = %s WHERE %s", setExpr, cond)
	} else {
		query = fmt.Sprintf(
			"UPDATE documents SET doc = %s WHERE seq = (SELECT seq FROM documents WHERE %s ORDER BY seq LIMIT 1)",
			setExpr, cond,
		)
	}

	res, err := c.store.db.ExecContext(ctx, query, a.vals...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", c.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", c.name, err)
	}
	return int(n), nil
}

func (c *sqlCollection) Remove(ctx context.Context, q Query, opts RemoveOptions) (int, error) {
	a := &sqlArgs{d: c.store.d}
	cond, err := c.where(a, q)
	if err != nil {
		return 0, err
	}

	var query string
	if opts.Multi {
		query = "DELETE FROM documents WHERE " + cond
	} else {
		query = fmt.Sprintf(
			"DELETE FROM documents WHERE seq = (SELECT seq FROM documents WHERE %s ORDER BY seq LIMIT 1)",
			cond,
		)
	}

	res, err := c.store.db.ExecContext(ctx, query, a.vals...)
	if err != nil {
		return 0, fmt.Errorf("remove %s: %w", c.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("remove %s: %w", c.name, err)
	}
	return int(n), nil
}

func (c *sqlCollection) Find(ctx context.Context, q Query, opts FindOptions) ([]Document, error) {
	if err := validateSort(opts.Sort); err != nil {
		return nil, err
	}
	a := &sqlArgs{d: c.store.d}
	cond, err := c.where(a, q)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT doc FROM documents WHERE ")
	sb.WriteString(cond)
	sb.WriteString(" ORDER BY ")
	for _, s := range opts.Sort {
		sb.WriteString(c.store.d.order(s.Field))
		if s.Desc {
			sb.WriteString(" DESC")
		}
		sb.WriteString(", ")
	}
	sb.WriteString("seq")
	if opts.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", opts.Limit)
	}

	rows, err := c.store.db.QueryContext(ctx, sb.String(), a.vals...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.name, err)
	}
	defer rows.Close()

	out := make([]Document, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.name, err)
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("corrupted document in %s: %w", c.name, err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find %s: %w", c.name, err)
	}
	return out, nil
}

func (c *sqlCollection) FindOne(ctx context.Context, q Query) (Document, error) {
	docs, err := c.Find(ctx, q, FindOptions{Limit: 1})
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}
