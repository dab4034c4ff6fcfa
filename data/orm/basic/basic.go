// Package basic 提供基于 data/db + data/db/sql 的只读 IOrm 实现，
// 并通过 data/orm/join 支持按关联名追加 LEFT OUTER JOIN。
package basic

import (
	"context"
	"reflect"
	"strings"
	"sync"

	dbcore "outerjoin/data/db"
	dbsql "outerjoin/data/db/sql"
	"outerjoin/data/orm"
	"outerjoin/data/orm/join"
	gerrors "outerjoin/errors"
	"outerjoin/logging"
)

// Orm 是不依赖具体 ORM 框架的轻量查询适配器。
type Orm struct {
	db     dbcore.IDatabase
	sql    dbsql.ISql
	caps   orm.Capabilities
	synth  *join.Synthesizer
	logger logging.Logger

	mu        sync.RWMutex
	structMap map[reflect.Type]columnIndex
}

// Option 配置 Orm
type Option func(*options)

type options struct {
	resolver orm.IResolver
	joinOpts []join.Option
	logger   logging.Logger
}

// WithRegistry 绑定实体注册表，启用 LeftOuterJoins。
func WithRegistry(resolver orm.IResolver, opts ...join.Option) Option {
	return func(o *options) {
		o.resolver = resolver
		o.joinOpts = append(o.joinOpts, opts...)
	}
}

// WithLogger 指定日志实例
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New 创建一个基于指定 IDatabase 的 Orm 适配器。
func New(db dbcore.IDatabase, opts ...Option) orm.IOrm {
	var cfg options
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	logger := cfg.logger
	if logger == nil {
		logger = logging.ComponentLogger("orm.basic")
	}

	o := &Orm{
		db:        db,
		sql:       dbsql.New(db),
		caps:      orm.NewCapabilities(orm.CapabilityQuery),
		logger:    logger,
		structMap: make(map[reflect.Type]columnIndex),
	}
	if cfg.resolver != nil {
		joinOpts := append([]join.Option{join.WithLogger(logger)}, cfg.joinOpts...)
		o.synth = join.NewSynthesizer(cfg.resolver, joinOpts...)
		o.caps[orm.CapabilityOuterJoin] = true
	}
	return o
}

// Capabilities 返回适配器支持的能力。
func (o *Orm) Capabilities() orm.Capabilities { return o.caps }

// Database 返回底层数据库抽象。
func (o *Orm) Database() dbcore.IDatabase { return o.db }

// Model 返回模型级操作入口，meta 为 nil 或无法确定表名时 panic。
func (o *Orm) Model(meta *orm.ModelMeta) orm.IModel {
	if meta == nil {
		panic("basic.Orm: ModelMeta cannot be nil")
	}
	if meta.Table == "" {
		table, _ := tryGetTableName(meta.Model)
		if table == "" {
			panic("basic.Orm: table name is empty")
		}
		cp := *meta
		cp.Table = table
		meta = &cp
	}
	return &model{orm: o, meta: meta}
}

type model struct {
	orm  *Orm
	meta *orm.ModelMeta
}

func (m *model) Meta() *orm.ModelMeta           { return m.meta }
func (m *model) Capabilities() orm.Capabilities { return m.orm.caps }

// LeftOuterJoins 合成关联的 JOIN 链并按当前数据库方言渲染。
func (m *model) LeftOuterJoins(association string) (orm.QueryOption, error) {
	if m.orm.synth == nil {
		return nil, gerrors.WrapError(orm.ErrUnsupported, gerrors.ErrCodeUnsupported,
			"outer joins require a registry").
			WithContext("entity", m.meta.Name).
			WithContext("association", association)
	}
	chain, err := m.orm.synth.Synthesize(m.meta, association)
	if err != nil {
		return nil, err
	}
	return chain.Option(m.orm.sql.Dialect())
}

// First 查询单条记录，未命中返回 orm.ErrNotFound。
func (m *model) First(ctx context.Context, dest any, opts ...orm.QueryOption) error {
	qo := orm.CollectQueryOptions(opts...)
	if qo.Limit <= 0 {
		qo.Limit = 1
	}

	rows, err := m.selectBuilder(qo).Query(ctx)
	if err != nil {
		return gerrors.WrapDatabaseError(ctx, err, "first "+m.meta.Table)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return gerrors.WrapDatabaseError(ctx, err, "first "+m.meta.Table)
		}
		return orm.ErrNotFound
	}
	return m.orm.scanInto(rows, dest)
}

// Find 查询多条记录。
func (m *model) Find(ctx context.Context, dest any, opts ...orm.QueryOption) error {
	qo := orm.CollectQueryOptions(opts...)

	rows, err := m.selectBuilder(qo).Query(ctx)
	if err != nil {
		return gerrors.WrapDatabaseError(ctx, err, "find "+m.meta.Table)
	}
	defer rows.Close()

	if err := m.orm.scanInto(rows, dest); err != nil {
		return gerrors.WrapDatabaseError(ctx, err, "scan "+m.meta.Table)
	}
	return nil
}

// Count 统计数量（忽略 Select/GroupBy/OrderBy，只做 COUNT(*)）。
//
// 带外连接时统计的是连接后的行数：无匹配的源行计为一行。
func (m *model) Count(ctx context.Context, opts ...orm.QueryOption) (int64, error) {
	qo := orm.CollectQueryOptions(opts...)

	builder := m.orm.sql.Select("COUNT(*)").From(m.meta.Table)
	for _, j := range qo.Joins {
		builder = builder.Join(j.Expr, j.Args...)
	}
	for _, w := range qo.Where {
		builder = builder.Where(w.Expr, w.Args...)
	}

	var count int64
	if err := builder.QueryRow(ctx).Scan(&count); err != nil {
		return 0, gerrors.WrapDatabaseError(ctx, err, "count "+m.meta.Table)
	}
	return count, nil
}

func (m *model) selectBuilder(qo orm.QueryOptions) dbsql.ISelectBuilder {
	columns := qo.Select
	if len(columns) == 0 {
		columns = []string{"*"}
		// 连接进来的表与源表可能有同名列，默认只取源表的列
		if len(qo.Joins) > 0 {
			columns = []string{m.orm.sql.Dialect().QuoteIdentifier(m.meta.Table) + ".*"}
		}
	}
	builder := m.orm.sql.Select(columns...).From(m.meta.Table)
	for _, j := range qo.Joins {
		builder = builder.Join(j.Expr, j.Args...)
	}
	for _, w := range qo.Where {
		builder = builder.Where(w.Expr, w.Args...)
	}
	if len(qo.GroupBy) > 0 {
		builder = builder.GroupBy(qo.GroupBy...)
	}
	if len(qo.OrderBy) > 0 {
		builder = builder.OrderBy(buildOrderByExpr(qo.OrderBy))
	}
	if qo.Limit > 0 {
		builder = builder.Limit(qo.Limit)
	}
	if qo.Offset > 0 {
		builder = builder.Offset(qo.Offset)
	}
	return builder
}

func buildOrderByExpr(orders []orm.OrderBy) string {
	parts := make([]string, 0, len(orders))
	for _, o := range orders {
		if o.Column == "" {
			continue
		}
		if o.Desc {
			parts = append(parts, o.Column+" DESC")
		} else {
			parts = append(parts, o.Column+" ASC")
		}
	}
	return strings.Join(parts, ", ")
}

// tryGetTableName 尝试从模型实例（值或指针接收者）上调用 TableName()。
func tryGetTableName(model any) (string, bool) {
	if model == nil {
		return "", false
	}
	v := reflect.ValueOf(model)
	if v.Kind() != reflect.Ptr || !v.IsNil() {
		if tn, ok := model.(interface{ TableName() string }); ok {
			return tn.TableName(), true
		}
	}
	t := v.Type()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if tn, ok := reflect.New(t).Interface().(interface{ TableName() string }); ok {
		return tn.TableName(), true
	}
	return "", false
}
