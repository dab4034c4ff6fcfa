package basic

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	dbcore "outerjoin/data/db"
	"outerjoin/data/orm"
)

var (
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	timeType    = reflect.TypeOf(time.Time{})
)

// columnIndex 列名到字段索引路径的映射，按结构体类型缓存。
type columnIndex map[string][]int

func (o *Orm) columnsOf(t reflect.Type) columnIndex {
	o.mu.RLock()
	idx, ok := o.structMap[t]
	o.mu.RUnlock()
	if ok {
		return idx
	}

	idx = buildColumnIndex(t)
	o.mu.Lock()
	o.structMap[t] = idx
	o.mu.Unlock()
	return idx
}

// buildColumnIndex 展开内嵌结构体，外层同名列覆盖内层。
func buildColumnIndex(t reflect.Type) columnIndex {
	idx := make(columnIndex)
	depth := make(map[string]int)
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || !scannable(f.Type) {
			continue
		}
		col := columnName(f)
		if col == "-" {
			continue
		}
		if d, seen := depth[col]; seen && d <= len(f.Index) {
			continue
		}
		idx[col] = f.Index
		depth[col] = len(f.Index)
	}
	return idx
}

// scannable 判断字段能否直接作为 Scan 目标
func scannable(t reflect.Type) bool {
	if reflect.PointerTo(t).Implements(scannerType) {
		return true
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Struct:
		return t == timeType || reflect.PointerTo(t).Implements(scannerType)
	case reflect.Slice:
		return t.Elem().Kind() == reflect.Uint8
	case reflect.Map, reflect.Chan, reflect.Func, reflect.Interface, reflect.Array:
		return false
	default:
		return true
	}
}

// columnName 依次读取 db、gorm column:、json 标签，均缺省时为字段名的下划线形式。
func columnName(f reflect.StructField) string {
	if tag := f.Tag.Get("db"); tag != "" {
		return strings.Split(tag, ",")[0]
	}
	for _, part := range strings.Split(f.Tag.Get("gorm"), ";") {
		if part = strings.TrimSpace(part); strings.HasPrefix(part, "column:") {
			return strings.TrimPrefix(part, "column:")
		}
	}
	if tag := f.Tag.Get("json"); tag != "" {
		if name := strings.Split(tag, ",")[0]; name != "" {
			return name
		}
	}
	return orm.Underscore(f.Name)
}

// scanInto 将 rows 扫描到 dest，dest 为 *T 或 *[]T（T 为结构体）。
//
// dest 为 *T 时只扫描当前行，调用方须已调用过 rows.Next()。
func (o *Orm) scanInto(rows dbcore.IRows, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("basic: dest must be a non-nil pointer, got %T", dest)
	}
	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	elem := rv.Elem()
	switch {
	case elem.Kind() == reflect.Struct:
		return rows.Scan(o.targets(elem, cols)...)
	case elem.Kind() == reflect.Slice && elem.Type().Elem().Kind() == reflect.Struct:
		for rows.Next() {
			item := reflect.New(elem.Type().Elem()).Elem()
			if err := rows.Scan(o.targets(item, cols)...); err != nil {
				return err
			}
			elem.Set(reflect.Append(elem, item))
		}
		return rows.Err()
	default:
		return fmt.Errorf("basic: unsupported dest %T", dest)
	}
}

// targets 为每一列准备 Scan 目标，未映射的列丢弃。
func (o *Orm) targets(v reflect.Value, cols []string) []any {
	idx := o.columnsOf(v.Type())
	out := make([]any, len(cols))
	for i, col := range cols {
		if path, ok := idx[col]; ok {
			if fv, err := v.FieldByIndexErr(path); err == nil && fv.CanSet() {
				out[i] = fv.Addr().Interface()
				continue
			}
		}
		out[i] = new(any)
	}
	return out
}
