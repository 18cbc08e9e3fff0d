package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgconn"
	"github.com/lib/pq"
	"github.com/ncruces/go-sqlite3"
)

// dialect — различия SQLite (JSON1) и PostgreSQL (JSONB) для SQLStore.
//
// Имена полей к этому моменту уже прошли validateField,
// поэтому их можно подставлять в JSON-путь напрямую.
type dialect interface {
	name() string
	placeholder(n int) string
	docParam(n int) string
	eq(field, param string) string
	isNull(field string) string
	in(field, param string) string
	inArg(values []any) (any, error)
	set(a *sqlArgs, patch Document) (string, error)
	order(field string) string
	isUniqueViolation(err error) bool
}

// sqlArgs копит аргументы запроса и выдаёт плейсхолдеры нужного диалекта.
type sqlArgs struct {
	d    dialect
	vals []any
}

func (a *sqlArgs) add(v any) string {
	a.vals = append(a.vals, v)
	return a.d.placeholder(len(a.vals))
}

// addDoc — то же, что add, но с приведением к типу документа (jsonb в postgres).
func (a *sqlArgs) addDoc(v any) string {
	a.vals = append(a.vals, v)
	return a.d.docParam(len(a.vals))
}

func jsonArg(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal query value: %w", err)
	}
	return string(b), nil
}

// sortedKeys — детерминированный порядок полей в SQL (удобно для sqlmock).
func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// --- SQLite ---

type sqliteDialect struct{}

func (sqliteDialect) name() string                 { return "sqlite" }
func (sqliteDialect) placeholder(int) string       { return "?" }
func (sqliteDialect) docParam(int) string          { return "?" }
func (sqliteDialect) eq(field, param string) string {
	return fmt.Sprintf("json_extract(doc, '$.%s') = json_extract(%s, '$')", field, param)
}
func (sqliteDialect) isNull(field string) string {
	return fmt.Sprintf("json_extract(doc, '$.%s') IS NULL", field)
}
func (sqliteDialect) in(field, param string) string {
	return fmt.Sprintf("json_extract(doc, '$.%s') IN (SELECT value FROM json_each(%s))", field, param)
}
func (sqliteDialect) inArg(values []any) (any, error) {
	return jsonArg(values)
}

// set строит json_set(doc, '$.a', json(?), '$.b', json(?)).
// json_set заменяет поле целиком, в отличие от json_patch, который сливает
// вложенные объекты и удаляет поля со значением null.
func (sqliteDialect) set(a *sqlArgs, patch Document) (string, error) {
	var sb strings.Builder
	sb.WriteString("json_set(doc")
	for _, k := range sortedKeys(patch) {
		v, err := jsonArg(patch[k])
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, ", '$.%s', json(%s)", k, a.add(v))
	}
	sb.WriteString(")")
	return sb.String(), nil
}
func (sqliteDialect) order(field string) string {
	return fmt.Sprintf("json_extract(doc, '$.%s')", field)
}
func (sqliteDialect) isUniqueViolation(err error) bool {
	return errors.Is(err, sqlite3.CONSTRAINT_UNIQUE) || errors.Is(err, sqlite3.CONSTRAINT_PRIMARYKEY)
}

// --- PostgreSQL ---

type postgresDialect struct{}

func (postgresDialect) name() string             { return "postgres" }
func (postgresDialect) placeholder(n int) string { return fmt.Sprintf("$%d", n) }
func (postgresDialect) docParam(n int) string    { return fmt.Sprintf("$%d::jsonb", n) }
func (postgresDialect) eq(field, param string) string {
	return fmt.Sprintf("doc->'%s' = %s::jsonb", field, param)
}
func (postgresDialect) isNull(field string) string {
	return fmt.Sprintf("(doc->'%s' IS NULL OR doc->'%s' = 'null'::jsonb)", field, field)
}
func (postgresDialect) in(field, param string) string {
	return fmt.Sprintf("doc->'%s' = ANY(%s::jsonb[])", field, param)
}

// inArg передаёт значения как text[] из JSON-литералов; postgres
// приводит массив к jsonb[] на своей стороне.
func (postgresDialect) inArg(values []any) (any, error) {
	lits := make([]string, 0, len(values))
	for _, v := range values {
		s, err := jsonArg(v)
		if err != nil {
			return nil, err
		}
		lits = append(lits, s)
	}
	return pq.Array(lits), nil
}

// set — конкатенация jsonb: поля справа заменяют поля слева целиком.
func (postgresDialect) set(a *sqlArgs, patch Document) (string, error) {
	v, err := jsonArg(patch)
	if err != nil {
		return "", err
	}
	return "doc || " + a.addDoc(v), nil
}
func (postgresDialect) order(field string) string {
	return fmt.Sprintf("doc->'%s'", field)
}
func (postgresDialect) isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
