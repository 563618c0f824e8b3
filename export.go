package gojabridge

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/dop251/goja"
	"google.golang.org/protobuf/types/known/structpb"
)

// Export deep-copies v, which is consumed, into a JSON-compatible protobuf
// value. Dates are exported as RFC 3339 strings, non-finite numbers and
// undefined as null. Objects contribute their own enumerable string keys,
// and may run script via getters. Functions, symbols, bigints, and cyclic
// structures result in an error wrapping [ErrNotExportable].
func (i *Instance) Export(v Value) (*structpb.Value, error) {
	switch v.kind {
	case KindUndefined, KindNull:
		return structpb.NewNullValue(), nil
	case KindNumber:
		return exportNumber(v.number), nil
	case KindBoolean:
		return structpb.NewBoolValue(v.Bool()), nil
	case KindDate:
		return exportDate(v.number), nil
	}

	var (
		result *structpb.Value
		err    error
	)
	out := i.TryCatch(func(rt *goja.Runtime, tc *TryCatch) Outcome {
		e := exporter{seen: make(map[*goja.Object]struct{})}
		result, err = e.export(i.decode(v), `$`)
		return Ok(Undefined())
	})
	if out.IsException {
		return nil, out.Err()
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

type exporter struct {
	seen map[*goja.Object]struct{}
}

func (e *exporter) export(v goja.Value, path string) (*structpb.Value, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return structpb.NewNullValue(), nil
	}

	if _, ok := v.(*goja.Symbol); ok {
		return nil, fmt.Errorf("%w: %s: symbol", ErrNotExportable, path)
	}

	obj, ok := v.(*goja.Object)
	if !ok {
		switch x := v.Export().(type) {
		case bool:
			return structpb.NewBoolValue(x), nil
		case int64:
			return structpb.NewNumberValue(float64(x)), nil
		case float64:
			return exportNumber(x), nil
		case string:
			return structpb.NewStringValue(x), nil
		}
		return nil, fmt.Errorf("%w: %s: unsupported primitive", ErrNotExportable, path)
	}

	if obj.ClassName() == classDate {
		return exportDate(dateMillis(obj)), nil
	}
	if _, ok := goja.AssertFunction(obj); ok {
		return nil, fmt.Errorf("%w: %s: function", ErrNotExportable, path)
	}

	if _, ok := e.seen[obj]; ok {
		return nil, fmt.Errorf("%w: %s: cycle", ErrNotExportable, path)
	}
	e.seen[obj] = struct{}{}
	defer delete(e.seen, obj)

	if obj.ClassName() == classArray {
		n := obj.Get(`length`).ToInteger()
		values := make([]*structpb.Value, 0, n)
		for idx := int64(0); idx < n; idx++ {
			key := strconv.FormatInt(idx, 10)
			elem, err := e.export(obj.Get(key), path+`[`+key+`]`)
			if err != nil {
				return nil, err
			}
			values = append(values, elem)
		}
		return structpb.NewListValue(&structpb.ListValue{Values: values}), nil
	}

	keys := obj.Keys()
	fields := make(map[string]*structpb.Value, len(keys))
	for _, key := range keys {
		field, err := e.export(obj.Get(key), path+`.`+key)
		if err != nil {
			return nil, err
		}
		fields[key] = field
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: fields}), nil
}

func exportNumber(f float64) *structpb.Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return structpb.NewNullValue()
	}
	return structpb.NewNumberValue(f)
}

func exportDate(ms float64) *structpb.Value {
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return structpb.NewNullValue()
	}
	return structpb.NewStringValue(time.UnixMilli(int64(ms)).UTC().Format(time.RFC3339Nano))
}
