// Package join 根据关联元信息合成 LEFT OUTER JOIN 链。
//
// 支持三种关联形状：
//   - belongs_to：外键在源表，     target.pk = source.fk
//   - has_many / has_one：外键在目标表，target.fk = source.pk
//   - has_many_through：经中间实体两次外连接，
//     through.fk = source.pk，随后 target.pk = through.target_fk
//
// 合成是纯函数：不访问数据库、不缓存结果，相同输入得到结构相同的 Chain。
package join

import (
	"errors"
	"fmt"
	"strings"

	"outerjoin/data/db/dialect"
	"outerjoin/data/orm"
)

// ErrUnsafeIdentifier 表示表名或列名无法安全地拼入 SQL。
var ErrUnsafeIdentifier = errors.New("join: unsafe identifier")

// Type JOIN 类型
type Type int

const (
	Inner Type = iota
	LeftOuter
)

// String 返回 SQL 关键字
func (t Type) String() string {
	switch t {
	case LeftOuter:
		return "LEFT OUTER JOIN"
	default:
		return "INNER JOIN"
	}
}

// Column 表示限定列 table.column
type Column struct {
	Table string
	Name  string
}

func (c Column) String() string {
	return c.Table + "." + c.Name
}

// Predicate 等值连接条件：Right = Left。
//
// Right 总是本步被连接进来的表上的列，Left 是已在查询中的表上的列。
type Predicate struct {
	Right Column
	Left  Column
}

func (p Predicate) String() string {
	return p.Right.String() + " = " + p.Left.String()
}

// Step 两表连接的一步
type Step struct {
	Left  string
	Right string
	Type  Type
	On    Predicate
}

func (s Step) String() string {
	return s.Type.String() + " " + s.Right + " ON " + s.On.String()
}

// Chain 一次合成的完整 JOIN 链，Steps 按连接顺序排列。
type Chain struct {
	Entity      string
	Association string
	Kind        orm.AssociationKind
	Source      string
	Steps       []Step
}

// Len 返回步数
func (c Chain) Len() int { return len(c.Steps) }

// Target 返回最终被连接进来的表，空链返回空串
func (c Chain) Target() string {
	if len(c.Steps) == 0 {
		return ""
	}
	return c.Steps[len(c.Steps)-1].Right
}

// Tables 按出现顺序返回链上所有表（含源表）
func (c Chain) Tables() []string {
	out := make([]string, 0, len(c.Steps)+1)
	out = append(out, c.Source)
	for _, s := range c.Steps {
		out = append(out, s.Right)
	}
	return out
}

// String 以未转义形式渲染整条链，用于日志与调试
func (c Chain) String() string {
	parts := make([]string, len(c.Steps))
	for i, s := range c.Steps {
		parts[i] = s.String()
	}
	return strings.Join(parts, " ")
}

// Joins 按方言渲染每一步，返回可合并进查询的 JOIN 来源。
func (c Chain) Joins(d dialect.Dialect) ([]orm.Join, error) {
	joins := make([]orm.Join, 0, len(c.Steps))
	for _, s := range c.Steps {
		expr, err := s.render(d)
		if err != nil {
			return nil, err
		}
		joins = append(joins, orm.Join{Expr: expr})
	}
	return joins, nil
}

// SQL 按方言渲染整条链，各步之间以空格分隔。
func (c Chain) SQL(d dialect.Dialect) (string, error) {
	joins, err := c.Joins(d)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(joins))
	for i, j := range joins {
		parts[i] = j.Expr
	}
	return strings.Join(parts, " "), nil
}

// Option 将整条链包装为 QueryOption，按顺序追加到查询的 JOIN 来源之后。
func (c Chain) Option(d dialect.Dialect) (orm.QueryOption, error) {
	joins, err := c.Joins(d)
	if err != nil {
		return nil, err
	}
	return orm.WithJoins(joins...), nil
}

func (s Step) render(d dialect.Dialect) (string, error) {
	for _, ident := range []string{s.Right, s.On.Right.Table, s.On.Right.Name, s.On.Left.Table, s.On.Left.Name} {
		if !dialect.IsSafeIdentifier(ident) {
			return "", fmt.Errorf("%w: %q", ErrUnsafeIdentifier, ident)
		}
	}
	var sb strings.Builder
	sb.WriteString(s.Type.String())
	sb.WriteByte(' ')
	sb.WriteString(d.QuoteIdentifier(s.Right))
	sb.WriteString(" ON ")
	sb.WriteString(d.QuoteColumn(s.On.Right.Table, s.On.Right.Name))
	sb.WriteString(" = ")
	sb.WriteString(d.QuoteColumn(s.On.Left.Table, s.On.Left.Name))
	return sb.String(), nil
}
