package dialect

import (
	"strconv"
	"strings"

	core "outerjoin/data/db"
)

// Name 标准化的数据库方言名称
type Name string

const (
	NameMySQL    Name = "mysql"
	NameSQLite   Name = "sqlite"
	NamePostgres Name = "postgres"
	NameUnknown  Name = ""
)

// Dialect 表示当前数据库的方言能力
//
// 只抽象 JOIN 片段渲染与执行实际用到的能力：
//   - QuoteIdentifier: 表名/列名转义
//   - Rebind: 占位符风格转换
type Dialect struct {
	name Name
}

// New 根据字符串构造方言（大小写不敏感）
func New(name string) Dialect {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mysql":
		return Dialect{name: NameMySQL}
	case "sqlite", "sqlite3":
		return Dialect{name: NameSQLite}
	case "postgres", "postgresql", "pgx":
		return Dialect{name: NamePostgres}
	default:
		return Dialect{name: NameUnknown}
	}
}

// FromDatabase 从 IDatabase 实例推断方言
//
// 需要 IDatabase 可选实现 IDialectNameProvider 接口；否则返回 Unknown。
func FromDatabase(db core.IDatabase) Dialect {
	if db == nil {
		return Dialect{name: NameUnknown}
	}
	if p, ok := db.(core.IDialectNameProvider); ok {
		return New(p.GetDialectName())
	}
	return Dialect{name: NameUnknown}
}

// Name 返回标准化方言名
func (d Dialect) Name() Name {
	return d.name
}

// QuoteIdentifier 根据方言对标识符进行转义（如表名/列名）。
//
// 约定：
//   - 支持 schema.table、table.column 等带点形式，会对每一段分别加引号；
//   - MySQL 使用反引号 `name`，Postgres/SQLite 使用双引号 "name"；
//   - Unknown 方言返回原始字符串，不做修改；
//   - 该方法不负责校验标识符语法，校验见 IsSafeIdentifier。
func (d Dialect) QuoteIdentifier(name string) string {
	if name == "" {
		return ""
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = d.quotePart(p)
	}
	return strings.Join(parts, ".")
}

// QuoteColumn 渲染 table.column 形式的限定列名。
//
// table 本身可以是 schema.table，此时三段分别加引号。
func (d Dialect) QuoteColumn(table, column string) string {
	if table == "" {
		return d.QuoteIdentifier(column)
	}
	return d.QuoteIdentifier(table) + "." + d.quotePart(column)
}

func (d Dialect) quotePart(p string) string {
	switch d.name {
	case NameMySQL:
		return "`" + p + "`"
	case NameSQLite, NamePostgres:
		return `"` + p + `"`
	default:
		return p
	}
}

// Rebind 将通用占位符 ? 转换为方言特定形式。
//
// 目前仅对 Postgres 做替换，将 ? 依次替换为 $1、$2...；其他方言保持原样。
// 实现为简单字符扫描，字符串字面量中的 ? 也会被替换，应通过参数传值。
func (d Dialect) Rebind(query string) string {
	if query == "" || d.name != NamePostgres {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 4)
	argIndex := 1
	for i := 0; i < len(query); i++ {
		ch := query[i]
		if ch == '?' {
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(argIndex))
			argIndex++
		} else {
			sb.WriteByte(ch)
		}
	}
	return sb.String()
}

// IsSafeIdentifier 判断标识符是否为“安全的数据库标识符”。
//
// 允许形式：
//   - 单一标识符：foo, bar_1
//   - 带点的限定名：schema.table, table.column
//
// 每段不能为空，首字符为 [A-Za-z_]，后续字符为 [A-Za-z0-9_]。
// 只做 ASCII 校验，足以拦截空格、分号、引号等注入片段。
func IsSafeIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for _, part := range strings.Split(name, ".") {
		if part == "" {
			return false
		}
		for i := 0; i < len(part); i++ {
			ch := part[i]
			letter := (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
			digit := ch >= '0' && ch <= '9'
			if !letter && (i == 0 || !digit) {
				return false
			}
		}
	}
	return true
}
