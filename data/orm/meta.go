package orm

import "strings"

// AssociationKind 表示关联类型。
type AssociationKind string

const (
	// AssociationBelongsTo 外键位于源表，引用目标主键。
	AssociationBelongsTo AssociationKind = "belongs_to"
	// AssociationHasOne 外键位于目标表，引用源主键；形状与 has_many 相同。
	AssociationHasOne AssociationKind = "has_one"
	// AssociationHasMany 外键位于目标表，引用源主键。
	AssociationHasMany AssociationKind = "has_many"
	// AssociationHasManyThrough 经由中间实体关联目标，中间表同时持有指向源与目标的外键。
	AssociationHasManyThrough AssociationKind = "has_many_through"
	// AssociationManyToMany 仅有裸中间表（无中间实体），JOIN 合成不支持。
	AssociationManyToMany AssociationKind = "many_to_many"
)

// ParseAssociationKind 解析关联类型名称，兼容常见别名（大小写不敏感）。
func ParseAssociationKind(s string) (AssociationKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "belongs_to", "belongsto", "direct_reference":
		return AssociationBelongsTo, true
	case "has_one", "hasone":
		return AssociationHasOne, true
	case "has_many", "hasmany", "to_many":
		return AssociationHasMany, true
	case "has_many_through", "through", "to_many_through_join":
		return AssociationHasManyThrough, true
	case "many_to_many", "many2many", "habtm":
		return AssociationManyToMany, true
	default:
		return "", false
	}
}

// AssociationMeta 描述模型关联元信息。
//
// Target、Through 均为注册表中的实体名（见 Registry），而非表名。
// 外键为空时由 JOIN 合成按命名约定推导。
type AssociationMeta struct {
	Name   string
	Kind   AssociationKind
	Target string
	// ForeignKey belongs_to 时为源表列，has_many/has_one 时为目标表列
	ForeignKey string
	// ReferenceKey 被外键引用的列，为空时取被引用实体的主键；has_many_through 忽略该字段
	ReferenceKey string

	Through          string // has_many_through 的中间实体
	JoinTable        string // many_to_many 的裸中间表
	JoinForeignKey   string // 中间表上指向源的外键
	JoinReferenceKey string // 中间表上指向目标的外键

	Polymorphic bool
	Tags        map[string]string
}

// FieldMeta 描述字段元信息。
type FieldMeta struct {
	Name          string
	Column        string
	PrimaryKey    bool
	AutoIncrement bool
	Nullable      bool
	Tags          map[string]string
}

// ModelMeta 描述模型级别元信息。
//
// Name 是实体在注册表中的键（如 "Post"），也是 has_many 反向关联命名约定的来源。
// 注册后视为只读快照，不应再修改。
type ModelMeta struct {
	Name         string
	Model        any
	Table        string
	Fields       []FieldMeta
	Associations []AssociationMeta
	Tags         map[string]string
}

// DefaultPrimaryKey 未显式声明主键时使用的列名。
const DefaultPrimaryKey = "id"

// Tag 返回模型级别的标签内容。
func (m *ModelMeta) Tag(key string) string {
	if m == nil || m.Tags == nil {
		return ""
	}
	return m.Tags[key]
}

// PrimaryKey 返回主键列名，未声明时为 DefaultPrimaryKey。
func (m *ModelMeta) PrimaryKey() string {
	if m != nil {
		for _, f := range m.Fields {
			if f.PrimaryKey && f.Column != "" {
				return f.Column
			}
		}
	}
	return DefaultPrimaryKey
}

// Association 按名称查找关联。
func (m *ModelMeta) Association(name string) (*AssociationMeta, bool) {
	if m == nil {
		return nil, false
	}
	for i := range m.Associations {
		if m.Associations[i].Name == name {
			return &m.Associations[i], true
		}
	}
	return nil, false
}
