package sqlite

import (
	"reflect"
	"sync"
)

// ExtractDBColumns returns the "db" tag names of T in declaration order,
// flattening embedded structs (entity.BaseEntity, entity.BaseDocument).
// It is called once per repository, at construction.
func ExtractDBColumns[T any]() []string {
	var zero T
	return columnsOf(reflect.TypeOf(zero))
}

func columnsOf(t reflect.Type) []string {
	if t.Kind() != reflect.Ptr {
		t = reflect.PointerTo(t)
	}
	meta := metadataFor(t)
	if meta == nil {
		return nil
	}
	var cols []string
	for _, f := range meta.fields {
		if f.embedded {
			cols = append(cols, columnsOf(t.Elem().Field(f.index).Type)...)
			continue
		}
		cols = append(cols, f.column)
	}
	return cols
}

type fieldMeta struct {
	index    int
	column   string
	embedded bool
}

type structMeta struct {
	fields []fieldMeta
}

// structCache maps reflect.Type to *structMeta.
var structCache sync.Map

// metadataFor returns cached field metadata of a struct (or pointer to
// struct) type, or nil for other kinds. The returned type is always
// addressed through a pointer: callers use t.Elem() for pointer input.
func metadataFor(t reflect.Type) *structMeta {
	if t.Kind() != reflect.Ptr {
		t = reflect.PointerTo(t)
	}
	if t.Elem().Kind() != reflect.Struct {
		return nil
	}
	if cached, ok := structCache.Load(t); ok {
		return cached.(*structMeta)
	}

	st := t.Elem()
	meta := &structMeta{}
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			meta.fields = append(meta.fields, fieldMeta{index: i, embedded: true})
			continue
		}
		tag := f.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		meta.fields = append(meta.fields, fieldMeta{index: i, column: tag})
	}

	structCache.Store(t, meta)
	return meta
}

// StructToMap converts a struct (or pointer to one) into column -> value
// using "db" tags, flattening embedded structs.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	res := make(map[string]any)
	fillMap(rv, res)
	return res
}

func fillMap(rv reflect.Value, out map[string]any) {
	meta := metadataFor(rv.Type())
	for _, f := range meta.fields {
		fv := rv.Field(f.index)
		if f.embedded {
			fillMap(fv, out)
			continue
		}
		out[f.column] = fv.Interface()
	}
}

// pick keeps the entries of data whose column is in cols and not in skip.
func pick(data map[string]any, cols []string, skip ...string) map[string]any {
	out := make(map[string]any, len(cols))
	for _, c := range cols {
		if contains(skip, c) {
			continue
		}
		if v, ok := data[c]; ok {
			out[c] = v
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
