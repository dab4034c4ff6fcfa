// Package sql 提供基于 data/db 的最小 SQL 构建器
package sql

import (
	"context"

	core "outerjoin/data/db"
	"outerjoin/data/db/dialect"
)

// ISql 提供统一的 SQL 构建与执行入口。
type ISql interface {
	Select(columns ...string) ISelectBuilder

	// Dialect 返回构建器绑定的方言
	Dialect() dialect.Dialect
	// GetDB 返回底层 IDatabase（仅特殊场景使用）
	GetDB() core.IDatabase
}

// ISelectBuilder 构建 SELECT 语句。
type ISelectBuilder interface {
	From(table string) ISelectBuilder
	// Join 追加完整 JOIN 片段（如 "LEFT OUTER JOIN t ON ..."），args 按出现顺序排在 WHERE 参数之前
	Join(clause string, args ...any) ISelectBuilder
	Where(cond string, args ...any) ISelectBuilder
	And(cond string, args ...any) ISelectBuilder
	Or(cond string, args ...any) ISelectBuilder
	GroupBy(cols ...string) ISelectBuilder
	OrderBy(expr string) ISelectBuilder
	Limit(n int) ISelectBuilder
	Offset(n int) ISelectBuilder
	Build() (query string, args []any)
	Query(ctx context.Context) (core.IRows, error)
	QueryRow(ctx context.Context) core.IRow
}

type sqlImpl struct {
	db      core.IDatabase
	dialect dialect.Dialect
}

// New 基于 IDatabase 构造 ISql，方言由 db 推断。
func New(db core.IDatabase) ISql {
	return &sqlImpl{db: db, dialect: dialect.FromDatabase(db)}
}

func (s *sqlImpl) Select(columns ...string) ISelectBuilder {
	if len(columns) == 0 {
		columns = []string{"*"}
	}
	return &selectBuilder{db: s.db, dialect: s.dialect, cols: columns}
}

func (s *sqlImpl) Dialect() dialect.Dialect { return s.dialect }
func (s *sqlImpl) GetDB() core.IDatabase    { return s.db }
