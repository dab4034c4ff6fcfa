package orm

// Condition 表示基础查询条件，Expr 使用占位符 ?，Args 对应参数列表。
type Condition struct {
	Expr string
	Args []any
}

// OrderBy 表示排序字段。
type OrderBy struct {
	Column string
	Desc   bool
}

// Join 表示一段 JOIN 来源，Expr 为完整片段（含 JOIN 关键字与 ON 条件）。
type Join struct {
	Expr string
	Args []any
}

// QueryOptions 描述查询的通用选项。
type QueryOptions struct {
	Where   []Condition
	Joins   []Join
	OrderBy []OrderBy
	GroupBy []string
	Limit   int
	Offset  int
	Select  []string
}

// QueryOption 用于配置 QueryOptions。
type QueryOption func(*QueryOptions)

// WithWhere 追加查询条件。
func WithWhere(expr string, args ...any) QueryOption {
	return func(opts *QueryOptions) {
		if expr == "" {
			return
		}
		opts.Where = append(opts.Where, Condition{Expr: expr, Args: args})
	}
}

// WithJoin 追加 JOIN 片段。
func WithJoin(expr string, args ...any) QueryOption {
	return func(opts *QueryOptions) {
		if expr == "" {
			return
		}
		opts.Joins = append(opts.Joins, Join{Expr: expr, Args: args})
	}
}

// WithJoins 按顺序追加多段 JOIN 来源（例如关联合成的 JOIN 链）。
func WithJoins(joins ...Join) QueryOption {
	return func(opts *QueryOptions) {
		for _, j := range joins {
			if j.Expr == "" {
				continue
			}
			opts.Joins = append(opts.Joins, j)
		}
	}
}

// WithGroupBy 追加分组字段。
func WithGroupBy(columns ...string) QueryOption {
	return func(opts *QueryOptions) {
		if len(columns) == 0 {
			return
		}
		opts.GroupBy = append(opts.GroupBy, columns...)
	}
}

// WithOrderBy 追加排序。
func WithOrderBy(column string, desc bool) QueryOption {
	return func(opts *QueryOptions) {
		if column == "" {
			return
		}
		opts.OrderBy = append(opts.OrderBy, OrderBy{Column: column, Desc: desc})
	}
}

// WithLimit 设置查询条数上限。
func WithLimit(limit int) QueryOption {
	return func(opts *QueryOptions) {
		if limit > 0 {
			opts.Limit = limit
		}
	}
}

// WithOffset 设置查询偏移。
func WithOffset(offset int) QueryOption {
	return func(opts *QueryOptions) {
		if offset > 0 {
			opts.Offset = offset
		}
	}
}

// WithSelect 指定返回列。
func WithSelect(columns ...string) QueryOption {
	return func(opts *QueryOptions) {
		if len(columns) == 0 {
			return
		}
		opts.Select = append(opts.Select, columns...)
	}
}

// CollectQueryOptions 聚合 QueryOption，方便适配器读取。
func CollectQueryOptions(options ...QueryOption) QueryOptions {
	var opts QueryOptions
	for _, opt := range options {
		if opt != nil {
			opt(&opts)
		}
	}
	return opts
}
