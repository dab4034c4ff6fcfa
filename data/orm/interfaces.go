package orm

import (
	"context"

	"outerjoin/data/db"
)

// IOrm 表示 ORM 适配器入口。
type IOrm interface {
	Capabilities() Capabilities
	// Model 返回指定模型的操作入口。
	Model(meta *ModelMeta) IModel
	// Database 返回适配器绑定的通用数据库。
	Database() db.IDatabase
}

// IModel 封装模型级别的查询操作。
type IModel interface {
	Meta() *ModelMeta
	Capabilities() Capabilities

	First(ctx context.Context, dest any, opts ...QueryOption) error
	Find(ctx context.Context, dest any, opts ...QueryOption) error
	Count(ctx context.Context, opts ...QueryOption) (int64, error)

	// LeftOuterJoins 为指定关联合成 LEFT OUTER JOIN 链，并以 QueryOption 形式返回，
	// 可直接传给 First/Find/Count。适配器未配置注册表时返回 ErrUnsupported。
	LeftOuterJoins(association string) (QueryOption, error)
}
