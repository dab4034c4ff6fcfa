package orm

import (
	"strings"

	"github.com/go-openapi/inflect"
)

// Underscore 返回实体名的小写下划线形式，例如 "BlogPost" → "blog_post"。
func Underscore(name string) string {
	return inflect.Underscore(strings.TrimSpace(name))
}

// DefaultTableName 按约定由实体名推导表名：下划线形式的复数，例如 "Tagging" → "taggings"。
func DefaultTableName(entity string) string {
	return inflect.Pluralize(Underscore(entity))
}

// DefaultForeignKey 按约定由关联名推导外键列，例如 "author" → "author_id"。
func DefaultForeignKey(association string) string {
	return Underscore(association) + "_id"
}
