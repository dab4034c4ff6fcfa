package errors

import (
	stdErrors "errors"

	"outerjoin/data/orm"
)

// Normalize 将 ORM 元信息层的哨兵错误规范化为 AppError。
//
// 注意：
//   - 如果传入的 err 已经是 IError，则原样返回；
//   - 未识别的错误保持原样，不强行包装，交由调用方决定是否 Wrap。
func Normalize(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(IError); ok {
		return err
	}

	switch {
	case stdErrors.Is(err, orm.ErrUnknownAssociation):
		return WrapError(err, ErrCodeAssociation, "关联未定义")
	case stdErrors.Is(err, orm.ErrMissingForeignKey):
		return WrapError(err, ErrCodeAssociation, "关联缺少外键")
	case stdErrors.Is(err, orm.ErrUnknownEntity), stdErrors.Is(err, orm.ErrDuplicateEntity):
		return WrapError(err, ErrCodeSchema, "实体注册表错误")
	case stdErrors.Is(err, orm.ErrUnsupported):
		return WrapError(err, ErrCodeUnsupported, "能力不受支持")
	case stdErrors.Is(err, orm.ErrNotFound):
		return WrapError(err, ErrCodeNotFound, "记录未找到")
	}
	return err
}
