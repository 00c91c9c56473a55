package script

import (
	"reflect"
	"sort"

	"github.com/dop251/goja"
)

// ToValue converts payloads into plain JavaScript values: maps become objects with sorted keys, slices become
// arrays and byte slices become ArrayBuffers. Anything else goes through goja's own conversion.
func (h *Host) ToValue(v any) goja.Value {
	switch x := v.(type) {
	case nil:
		return goja.Null()
	case goja.Value:
		return x
	case []byte:
		return h.rt.ToValue(h.rt.NewArrayBuffer(append([]byte(nil), x...)))
	case map[string]any:
		return h.object(x)
	case []map[string]any:
		items := make([]any, len(x))
		for i, m := range x {
			items[i] = h.object(m)
		}
		return h.rt.NewArray(items...)
	case []any:
		return h.array(x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = h.ToValue(rv.Index(i).Interface())
		}
		return h.rt.NewArray(items...)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return h.object(m)
	}
	return h.rt.ToValue(v)
}

func (h *Host) object(m map[string]any) *goja.Object {
	obj := h.rt.NewObject()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_ = obj.Set(k, h.ToValue(m[k]))
	}
	return obj
}

func (h *Host) array(items []any) *goja.Object {
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = h.ToValue(it)
	}
	return h.rt.NewArray(out...)
}
