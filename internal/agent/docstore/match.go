package docstore

import (
	"reflect"
	"sort"
	"strings"
)

type predicate struct {
	field  string
	value  any
	values []any
	isIn   bool
}

// compileQuery проверяет и нормализует Query один раз перед проходом по документам.
func compileQuery(q Query) ([]predicate, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	preds := make([]predicate, 0, len(q))
	for f, v := range q {
		if in, ok := v.(In); ok {
			vals := make([]any, 0, len(in))
			for _, x := range in {
				n, err := normalize(x)
				if err != nil {
					return nil, err
				}
				vals = append(vals, n)
			}
			preds = append(preds, predicate{field: f, values: vals, isIn: true})
			continue
		}
		n, err := normalize(v)
		if err != nil {
			return nil, err
		}
		preds = append(preds, predicate{field: f, value: n})
	}
	return preds, nil
}

func matches(doc Document, preds []predicate) bool {
	for _, p := range preds {
		got := doc[p.field] // отсутствующее поле ведёт себя как null
		if p.isIn {
			found := false
			for _, v := range p.values {
				if reflect.DeepEqual(got, v) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(got, p.value) {
			return false
		}
	}
	return true
}

// rank задаёт порядок типов при сортировке: null < bool < число < строка < прочее.
func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}

func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case float64:
		y := b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case string:
		return strings.Compare(x, b.(string))
	}
	return 0
}

// sortDocs сортирует устойчиво, поэтому при равных ключах сохраняется порядок вставки.
func sortDocs(docs []Document, fields []SortField) {
	if len(fields) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, f := range fields {
			c := compareValues(docs[i][f.Field], docs[j][f.Field])
			if c == 0 {
				continue
			}
			if f.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}
