package join

import (
	"context"
	"fmt"

	"github.com/go-openapi/inflect"

	"outerjoin/data/orm"
	gerrors "outerjoin/errors"
	"outerjoin/logging"
)

// IEntity 由显式接入 JOIN 合成的模型类型实现，返回其在注册表中的实体名。
type IEntity interface {
	EntityName() string
}

// Synthesizer 根据注册表中的关联元信息合成 JOIN 链。
//
// 无内部状态，可被多个 goroutine 并发使用。
type Synthesizer struct {
	resolver orm.IResolver
	strict   bool
	logger   logging.Logger
}

// Option 配置 Synthesizer
type Option func(*Synthesizer)

// WithLogger 指定日志实例，nil 被忽略
func WithLogger(l logging.Logger) Option {
	return func(s *Synthesizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStrictKeys 禁止按命名约定推导外键：关联必须显式声明所需外键，
// 否则返回 orm.ErrMissingForeignKey。
func WithStrictKeys() Option {
	return func(s *Synthesizer) { s.strict = true }
}

// NewSynthesizer 创建合成器
func NewSynthesizer(resolver orm.IResolver, opts ...Option) *Synthesizer {
	s := &Synthesizer{resolver: resolver}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.logger == nil {
		s.logger = logging.ComponentLogger("orm.join")
	}
	return s
}

// For 以实现 IEntity 的模型为源合成 JOIN 链
func (s *Synthesizer) For(entity IEntity, association string) (Chain, error) {
	return s.SynthesizeByName(entity.EntityName(), association)
}

// SynthesizeByName 先从注册表解析源实体，再合成 JOIN 链
func (s *Synthesizer) SynthesizeByName(entity, association string) (Chain, error) {
	source, err := s.resolve(entity)
	if err != nil {
		return Chain{}, err
	}
	return s.Synthesize(source, association)
}

// Synthesize 为 source 上名为 association 的关联合成 LEFT OUTER JOIN 链。
//
// 关联不存在返回包装 orm.ErrUnknownAssociation 的错误；
// 失败时不返回部分结果。
func (s *Synthesizer) Synthesize(source *orm.ModelMeta, association string) (Chain, error) {
	if source == nil {
		return Chain{}, gerrors.WrapError(orm.ErrUnknownEntity, gerrors.ErrCodeSchema, "source entity is nil")
	}
	assoc, ok := source.Association(association)
	if !ok {
		return Chain{}, unknownAssociation(source, association)
	}
	if assoc.Polymorphic {
		return Chain{}, unsupported(source, assoc, "polymorphic associations cannot be outer joined")
	}

	var (
		steps []Step
		err   error
	)
	switch assoc.Kind {
	case orm.AssociationBelongsTo:
		steps, err = s.belongsTo(source, assoc)
	case orm.AssociationHasMany, orm.AssociationHasOne:
		steps, err = s.hasMany(source, assoc)
	case orm.AssociationHasManyThrough:
		steps, err = s.hasManyThrough(source, assoc)
	case orm.AssociationManyToMany:
		return Chain{}, unsupported(source, assoc, "join-table associations without an intermediate entity are not supported")
	default:
		return Chain{}, unsupported(source, assoc, fmt.Sprintf("unknown association kind %q", assoc.Kind))
	}
	if err != nil {
		return Chain{}, err
	}
	if table, repeated := repeatedTable(source.Table, steps); repeated {
		return Chain{}, unsupported(source, assoc,
			fmt.Sprintf("table %s appears more than once in the join; self-referential associations need aliases", table))
	}

	chain := Chain{
		Entity:      source.Name,
		Association: assoc.Name,
		Kind:        assoc.Kind,
		Source:      source.Table,
		Steps:       steps,
	}
	s.logger.Debug(context.Background(), "outer join synthesized",
		logging.String("entity", chain.Entity),
		logging.String("association", chain.Association),
		logging.String("kind", string(chain.Kind)),
		logging.Int("steps", chain.Len()),
		logging.String("join", chain.String()),
	)
	return chain, nil
}

// belongsTo: target.pk = source.fk
func (s *Synthesizer) belongsTo(source *orm.ModelMeta, assoc *orm.AssociationMeta) ([]Step, error) {
	target, err := s.resolve(assoc.Target)
	if err != nil {
		return nil, err
	}
	fk := assoc.ForeignKey
	if fk == "" {
		if s.strict {
			return nil, missingKey(source, assoc, "foreign_key")
		}
		fk = orm.DefaultForeignKey(assoc.Name)
		s.warnDerived(source, assoc, "foreign_key", fk)
	}
	ref := assoc.ReferenceKey
	if ref == "" {
		ref = target.PrimaryKey()
	}
	return []Step{outerJoin(source.Table, target.Table, ref, fk)}, nil
}

// hasMany: target.fk = source.pk
func (s *Synthesizer) hasMany(source *orm.ModelMeta, assoc *orm.AssociationMeta) ([]Step, error) {
	target, err := s.resolve(assoc.Target)
	if err != nil {
		return nil, err
	}
	fk := assoc.ForeignKey
	if fk == "" {
		if s.strict {
			return nil, missingKey(source, assoc, "foreign_key")
		}
		if fk, err = reverseForeignKey(target, source); err != nil {
			return nil, err
		}
		s.warnDerived(source, assoc, "foreign_key", fk)
	}
	ref := assoc.ReferenceKey
	if ref == "" {
		ref = source.PrimaryKey()
	}
	return []Step{outerJoin(source.Table, target.Table, fk, ref)}, nil
}

// hasManyThrough: through.fk = source.pk，随后 target.pk = through.target_fk
//
// ReferenceKey 对经由关联无效：两端均使用各自实体的主键。
func (s *Synthesizer) hasManyThrough(source *orm.ModelMeta, assoc *orm.AssociationMeta) ([]Step, error) {
	through, joinFK, err := s.resolveThrough(source, assoc)
	if err != nil {
		return nil, err
	}
	target, joinRef, err := s.resolveThroughTarget(through, assoc)
	if err != nil {
		return nil, err
	}

	if joinFK == "" {
		if s.strict {
			return nil, missingKey(source, assoc, "join_foreign_key")
		}
		if joinFK, err = reverseForeignKey(through, source); err != nil {
			return nil, err
		}
		s.warnDerived(source, assoc, "join_foreign_key", joinFK)
	}
	if joinRef == "" {
		if s.strict {
			return nil, missingKey(source, assoc, "join_reference_key")
		}
		if joinRef, err = reverseForeignKey(through, target); err != nil {
			return nil, err
		}
		s.warnDerived(source, assoc, "join_reference_key", joinRef)
	}

	return []Step{
		outerJoin(source.Table, through.Table, joinFK, source.PrimaryKey()),
		outerJoin(through.Table, target.Table, target.PrimaryKey(), joinRef),
	}, nil
}

// resolveThrough 解析中间实体。
//
// Through 优先视为源实体上的关联名（如 "taggings"），此时中间实体取该关联的目标，
// 外键取该关联声明的外键，该关联必须是 has_many 或 has_one；否则视为实体名。
func (s *Synthesizer) resolveThrough(source *orm.ModelMeta, assoc *orm.AssociationMeta) (*orm.ModelMeta, string, error) {
	if assoc.Through == "" {
		return nil, "", missingKey(source, assoc, "through")
	}
	joinFK := assoc.JoinForeignKey
	if via, ok := source.Association(assoc.Through); ok && via.Name != assoc.Name {
		if via.Kind != orm.AssociationHasMany && via.Kind != orm.AssociationHasOne {
			return nil, "", unsupported(source, via,
				fmt.Sprintf("%s.%s goes through %s, which must be has_many or has_one", source.Name, assoc.Name, via.Name))
		}
		through, err := s.resolve(via.Target)
		if err != nil {
			return nil, "", err
		}
		if joinFK == "" {
			joinFK = via.ForeignKey
		}
		return through, joinFK, nil
	}
	through, err := s.resolve(assoc.Through)
	if err != nil {
		return nil, "", err
	}
	return through, joinFK, nil
}

// resolveThroughTarget 解析目标实体。
//
// Target 为空时，取中间实体上与关联名单数形式同名的关联（如 tags → tag）作为来源关联。
func (s *Synthesizer) resolveThroughTarget(through *orm.ModelMeta, assoc *orm.AssociationMeta) (*orm.ModelMeta, string, error) {
	joinRef := assoc.JoinReferenceKey
	if assoc.Target != "" {
		target, err := s.resolve(assoc.Target)
		return target, joinRef, err
	}
	name := inflect.Singularize(assoc.Name)
	src, ok := through.Association(name)
	if !ok {
		return nil, "", unknownAssociation(through, name)
	}
	target, err := s.resolve(src.Target)
	if err != nil {
		return nil, "", err
	}
	if joinRef == "" {
		joinRef = src.ForeignKey
	}
	return target, joinRef, nil
}

func (s *Synthesizer) resolve(name string) (*orm.ModelMeta, error) {
	if s.resolver != nil {
		if m, ok := s.resolver.Resolve(name); ok && m != nil {
			return m, nil
		}
	}
	return nil, gerrors.WrapError(orm.ErrUnknownEntity, gerrors.ErrCodeSchema,
		fmt.Sprintf("entity %q is not registered", name)).
		WithContext("entity", name)
}

func (s *Synthesizer) warnDerived(source *orm.ModelMeta, assoc *orm.AssociationMeta, key, value string) {
	s.logger.Warn(context.Background(), "association key derived by naming convention",
		logging.String("entity", source.Name),
		logging.String("association", assoc.Name),
		logging.String("key", key),
		logging.String("value", value),
	)
}

// reverseForeignKey 在 owner 上查找以 entity 名下划线形式命名的关联（如 Post → "post"），
// 返回其外键；外键未声明时按关联名推导。
func reverseForeignKey(owner, entity *orm.ModelMeta) (string, error) {
	name := orm.Underscore(entity.Name)
	reverse, ok := owner.Association(name)
	if !ok {
		return "", unknownAssociation(owner, name)
	}
	if reverse.ForeignKey != "" {
		return reverse.ForeignKey, nil
	}
	return orm.DefaultForeignKey(reverse.Name), nil
}

// repeatedTable 返回链上重复出现的表；未使用别名时同一张表只能出现一次
func repeatedTable(source string, steps []Step) (string, bool) {
	seen := map[string]bool{source: true}
	for _, st := range steps {
		if seen[st.Right] {
			return st.Right, true
		}
		seen[st.Right] = true
	}
	return "", false
}

// outerJoin 构造 left 与 right 之间的一步外连接：right.rightCol = left.leftCol
func outerJoin(left, right, rightCol, leftCol string) Step {
	return Step{
		Left:  left,
		Right: right,
		Type:  LeftOuter,
		On: Predicate{
			Right: Column{Table: right, Name: rightCol},
			Left:  Column{Table: left, Name: leftCol},
		},
	}
}

func unknownAssociation(entity *orm.ModelMeta, name string) error {
	return gerrors.WrapError(orm.ErrUnknownAssociation, gerrors.ErrCodeAssociation,
		fmt.Sprintf("%s has no association named %s", entity.Name, name)).
		WithContext("entity", entity.Name).
		WithContext("association", name)
}

func unsupported(entity *orm.ModelMeta, assoc *orm.AssociationMeta, reason string) error {
	return gerrors.WrapError(orm.ErrUnsupported, gerrors.ErrCodeUnsupported, reason).
		WithContext("entity", entity.Name).
		WithContext("association", assoc.Name).
		WithContext("kind", string(assoc.Kind))
}

func missingKey(entity *orm.ModelMeta, assoc *orm.AssociationMeta, key string) error {
	return gerrors.WrapError(orm.ErrMissingForeignKey, gerrors.ErrCodeAssociation,
		fmt.Sprintf("%s.%s requires %s", entity.Name, assoc.Name, key)).
		WithContext("entity", entity.Name).
		WithContext("association", assoc.Name).
		WithContext("key", key)
}
