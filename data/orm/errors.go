package orm

import "errors"

var (
	// ErrNotFound 表示记录未找到。
	ErrNotFound = errors.New("orm: record not found")
	// ErrUnsupported 表示当前适配器或关联形状不支持请求的能力。
	ErrUnsupported = errors.New("orm: capability unsupported")
	// ErrUnknownAssociation 表示实体上不存在指定名称的关联。
	ErrUnknownAssociation = errors.New("orm: unknown association")
	// ErrUnknownEntity 表示注册表中不存在指定实体。
	ErrUnknownEntity = errors.New("orm: unknown entity")
	// ErrDuplicateEntity 表示重复注册同名实体。
	ErrDuplicateEntity = errors.New("orm: duplicate entity")
	// ErrMissingForeignKey 表示关联未声明外键且不允许按约定推导。
	ErrMissingForeignKey = errors.New("orm: missing foreign key")
)
