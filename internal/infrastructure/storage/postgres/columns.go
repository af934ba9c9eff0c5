package postgres

import (
	"reflect"
	"sync"
)

// Columns lists the "db" tags of T in field order, descending into embedded structs.
func Columns[T any]() []string {
	return columnsOf(reflect.TypeOf((*T)(nil)).Elem())
}

func columnsOf(t reflect.Type) []string {
	fields := fieldsOf(t)
	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		cols = append(cols, f.column)
	}
	return cols
}

type columnField struct {
	index  []int
	column string
}

var fieldCache sync.Map // reflect.Type -> []columnField

func fieldsOf(t reflect.Type) []columnField {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]columnField)
	}

	var out []columnField
	if t.Kind() == reflect.Struct {
		for _, f := range reflect.VisibleFields(t) {
			if f.Anonymous {
				continue
			}
			tag := f.Tag.Get("db")
			if tag == "" || tag == "-" {
				continue
			}
			out = append(out, columnField{index: f.Index, column: tag})
		}
	}
	fieldCache.Store(t, out)
	return out
}

// ToMap maps each "db"-tagged field of v to its value, skipping the named columns.
func ToMap(v any, skip ...string) map[string]any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	skipped := make(map[string]struct{}, len(skip))
	for _, s := range skip {
		skipped[s] = struct{}{}
	}

	fields := fieldsOf(rv.Type())
	res := make(map[string]any, len(fields))
	for _, f := range fields {
		if _, ok := skipped[f.column]; ok {
			continue
		}
		res[f.column] = rv.FieldByIndex(f.index).Interface()
	}
	return res
}
