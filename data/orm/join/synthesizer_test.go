package join

import (
	stdErrors "errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outerjoin/data/orm"
	gerrors "outerjoin/errors"
	"outerjoin/logging"
)

func newTestSynthesizer(t *testing.T, opts ...Option) *Synthesizer {
	t.Helper()
	opts = append([]Option{WithLogger(logging.NewNoopLogger())}, opts...)
	return NewSynthesizer(blogRegistry(t), opts...)
}

// TestSynthesize_Shapes 测试三种关联形状生成的 JOIN 链
func TestSynthesize_Shapes(t *testing.T) {
	tests := []struct {
		name    string
		entity  string
		assoc   string
		kind    orm.AssociationKind
		want    string
		wantLen int
	}{
		{
			name:    "belongs_to 显式外键",
			entity:  "Post",
			assoc:   "author",
			kind:    orm.AssociationBelongsTo,
			want:    "LEFT OUTER JOIN authors ON authors.id = posts.author_id",
			wantLen: 1,
		},
		{
			name:    "belongs_to 自定义主键",
			entity:  "Post",
			assoc:   "category",
			kind:    orm.AssociationBelongsTo,
			want:    "LEFT OUTER JOIN categories ON categories.code = posts.category_code",
			wantLen: 1,
		},
		{
			name:    "belongs_to 外键按关联名推导",
			entity:  "Post",
			assoc:   "editor",
			kind:    orm.AssociationBelongsTo,
			want:    "LEFT OUTER JOIN authors ON authors.id = posts.editor_id",
			wantLen: 1,
		},
		{
			name:    "has_many 显式外键",
			entity:  "Post",
			assoc:   "comments",
			kind:    orm.AssociationHasMany,
			want:    "LEFT OUTER JOIN comments ON comments.post_id = posts.id",
			wantLen: 1,
		},
		{
			name:    "has_many 外键由反向关联推导",
			entity:  "Author",
			assoc:   "posts",
			kind:    orm.AssociationHasMany,
			want:    "LEFT OUTER JOIN posts ON posts.author_id = authors.id",
			wantLen: 1,
		},
		{
			name:    "has_one",
			entity:  "Author",
			assoc:   "profile",
			kind:    orm.AssociationHasOne,
			want:    "LEFT OUTER JOIN profiles ON profiles.author_id = authors.id",
			wantLen: 1,
		},
		{
			name:    "has_many_through 显式键",
			entity:  "Post",
			assoc:   "tags",
			kind:    orm.AssociationHasManyThrough,
			want:    "LEFT OUTER JOIN taggings ON taggings.post_id = posts.id LEFT OUTER JOIN tags ON tags.id = taggings.tag_id",
			wantLen: 2,
		},
		{
			name:    "has_many_through 键由中间实体推导",
			entity:  "Post",
			assoc:   "derived_tags",
			kind:    orm.AssociationHasManyThrough,
			want:    "LEFT OUTER JOIN taggings ON taggings.post_id = posts.id LEFT OUTER JOIN tags ON tags.id = taggings.tag_id",
			wantLen: 2,
		},
		{
			name:    "has_many_through 经由关联名与来源关联",
			entity:  "Post",
			assoc:   "labels",
			kind:    orm.AssociationHasManyThrough,
			want:    "LEFT OUTER JOIN taggings ON taggings.post_id = posts.id LEFT OUTER JOIN tags ON tags.id = taggings.tag_id",
			wantLen: 2,
		},
	}

	s := newTestSynthesizer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain, err := s.SynthesizeByName(tt.entity, tt.assoc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, chain.String())
			assert.Equal(t, tt.wantLen, chain.Len())
			assert.Equal(t, tt.kind, chain.Kind)
			assert.Equal(t, tt.entity, chain.Entity)
			assert.Equal(t, tt.assoc, chain.Association)
			for _, step := range chain.Steps {
				assert.Equal(t, LeftOuter, step.Type)
				assert.Equal(t, step.Right, step.On.Right.Table, "条件右侧应为本步连接进来的表")
				assert.Equal(t, step.Left, step.On.Left.Table, "条件左侧应为已在查询中的表")
			}
		})
	}
}

// TestSynthesize_CommentsExample 测试 Post.comments 的单步外连接
func TestSynthesize_CommentsExample(t *testing.T) {
	chain, err := newTestSynthesizer(t).SynthesizeByName("Post", "comments")
	require.NoError(t, err)

	require.Len(t, chain.Steps, 1)
	assert.Equal(t, Step{
		Left:  "posts",
		Right: "comments",
		Type:  LeftOuter,
		On: Predicate{
			Right: Column{Table: "comments", Name: "post_id"},
			Left:  Column{Table: "posts", Name: "id"},
		},
	}, chain.Steps[0])
}

// TestSynthesize_ThroughChain 测试中间表不会成为最终连接的表
func TestSynthesize_ThroughChain(t *testing.T) {
	chain, err := newTestSynthesizer(t).SynthesizeByName("Post", "tags")
	require.NoError(t, err)

	require.Len(t, chain.Steps, 2)
	assert.Equal(t, "tags", chain.Target())
	assert.Equal(t, []string{"posts", "taggings", "tags"}, chain.Tables())
	assert.Equal(t, chain.Steps[0].Right, chain.Steps[1].Left, "第二步应链接在第一步结果之上")
	assert.Equal(t, Column{Table: "taggings", Name: "post_id"}, chain.Steps[0].On.Right)
	assert.Equal(t, Column{Table: "posts", Name: "id"}, chain.Steps[0].On.Left)
	assert.Equal(t, Column{Table: "tags", Name: "id"}, chain.Steps[1].On.Right)
	assert.Equal(t, Column{Table: "taggings", Name: "tag_id"}, chain.Steps[1].On.Left)
}

// TestSynthesize_UnknownAssociation 测试未知关联
func TestSynthesize_UnknownAssociation(t *testing.T) {
	chain, err := newTestSynthesizer(t).SynthesizeByName("Post", "likes")
	require.Error(t, err)

	assert.True(t, stdErrors.Is(err, orm.ErrUnknownAssociation))
	assert.True(t, gerrors.IsErrorCode(err, gerrors.ErrCodeAssociation))
	assert.Contains(t, err.Error(), "Post has no association named likes")
	entity, _ := gerrors.Detail(err, "entity")
	assoc, _ := gerrors.Detail(err, "association")
	assert.Equal(t, "Post", entity)
	assert.Equal(t, "likes", assoc)
	assert.Zero(t, chain.Len(), "失败时不应返回部分结果")
	assert.Empty(t, chain.Source)
}

// TestSynthesize_MissingReverseAssociation 测试反向关联缺失时错误落在目标实体上
func TestSynthesize_MissingReverseAssociation(t *testing.T) {
	_, err := newTestSynthesizer(t).SynthesizeByName("Post", "notes")
	require.Error(t, err)

	assert.ErrorIs(t, err, orm.ErrUnknownAssociation)
	entity, _ := gerrors.Detail(err, "entity")
	assoc, _ := gerrors.Detail(err, "association")
	assert.Equal(t, "Note", entity)
	assert.Equal(t, "post", assoc)
}

// TestSynthesize_UnknownEntity 测试目标实体未注册
func TestSynthesize_UnknownEntity(t *testing.T) {
	s := newTestSynthesizer(t)

	_, err := s.SynthesizeByName("Post", "ghosts")
	assert.ErrorIs(t, err, orm.ErrUnknownEntity)
	assert.True(t, gerrors.IsErrorCode(err, gerrors.ErrCodeSchema))

	_, err = s.SynthesizeByName("Nobody", "posts")
	assert.ErrorIs(t, err, orm.ErrUnknownEntity)

	_, err = s.Synthesize(nil, "posts")
	assert.ErrorIs(t, err, orm.ErrUnknownEntity)
}

// TestSynthesize_Unsupported 测试裸中间表与多态关联
func TestSynthesize_Unsupported(t *testing.T) {
	s := newTestSynthesizer(t)

	for _, name := range []string{"readers", "attachable"} {
		chain, err := s.SynthesizeByName("Post", name)
		assert.ErrorIs(t, err, orm.ErrUnsupported, name)
		assert.True(t, gerrors.IsErrorCode(err, gerrors.ErrCodeUnsupported), name)
		assert.Zero(t, chain.Len())
	}

	src := &orm.ModelMeta{Name: "Odd", Table: "odds", Associations: []orm.AssociationMeta{
		{Name: "weird", Kind: orm.AssociationKind("sideways"), Target: "Post"},
	}}
	_, err := s.Synthesize(src, "weird")
	assert.ErrorIs(t, err, orm.ErrUnsupported)
}

// TestSynthesize_SelfReferential 测试同一张表在链上重复出现时拒绝合成
func TestSynthesize_SelfReferential(t *testing.T) {
	s := newTestSynthesizer(t)

	for _, name := range []string{"manager", "reports"} {
		chain, err := s.SynthesizeByName("Employee", name)
		require.Error(t, err, name)
		assert.ErrorIs(t, err, orm.ErrUnsupported, name)
		assert.Contains(t, err.Error(), "employees", name)
		assert.Zero(t, chain.Len(), name)
	}
}

// TestSynthesize_ThroughBelongsTo 测试经由 belongs_to 关联时拒绝合成
func TestSynthesize_ThroughBelongsTo(t *testing.T) {
	_, err := newTestSynthesizer(t).SynthesizeByName("Post", "author_posts")
	require.Error(t, err)
	assert.ErrorIs(t, err, orm.ErrUnsupported)
	assoc, _ := gerrors.Detail(err, "association")
	kind, _ := gerrors.Detail(err, "kind")
	assert.Equal(t, "author", assoc)
	assert.Equal(t, string(orm.AssociationBelongsTo), kind)
}

// TestSynthesize_ThroughIgnoresReferenceKey 测试经由关联不使用 ReferenceKey
func TestSynthesize_ThroughIgnoresReferenceKey(t *testing.T) {
	reg := blogRegistry(t)
	post, ok := reg.Resolve("Post")
	require.True(t, ok)
	src := *post
	src.Associations = []orm.AssociationMeta{{
		Name: "tags", Kind: orm.AssociationHasManyThrough, Through: "Tagging", Target: "Tag",
		JoinForeignKey: "post_id", JoinReferenceKey: "tag_id", ReferenceKey: "uuid",
	}}

	chain, err := NewSynthesizer(reg, WithLogger(logging.NewNoopLogger())).Synthesize(&src, "tags")
	require.NoError(t, err)
	assert.Equal(t, "LEFT OUTER JOIN taggings ON taggings.post_id = posts.id LEFT OUTER JOIN tags ON tags.id = taggings.tag_id", chain.String())
}

// TestSynthesize_StrictKeys 测试严格模式下不推导外键
func TestSynthesize_StrictKeys(t *testing.T) {
	s := newTestSynthesizer(t, WithStrictKeys())

	for _, tc := range []struct{ entity, assoc, key string }{
		{"Author", "posts", "foreign_key"},
		{"Post", "editor", "foreign_key"},
		{"Post", "derived_tags", "join_foreign_key"},
	} {
		_, err := s.SynthesizeByName(tc.entity, tc.assoc)
		require.Error(t, err, tc.assoc)
		assert.ErrorIs(t, err, orm.ErrMissingForeignKey, tc.assoc)
		key, _ := gerrors.Detail(err, "key")
		assert.Equal(t, tc.key, key, tc.assoc)
	}

	// 显式声明的键不受影响
	chain, err := s.SynthesizeByName("Post", "tags")
	require.NoError(t, err)
	assert.Equal(t, 2, chain.Len())
}

// TestSynthesize_Idempotent 测试相同输入得到结构相同的结果
func TestSynthesize_Idempotent(t *testing.T) {
	s := newTestSynthesizer(t)

	first, err := s.SynthesizeByName("Post", "tags")
	require.NoError(t, err)
	second, err := s.SynthesizeByName("Post", "tags")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := NewSynthesizer(blogRegistry(t), WithLogger(logging.NewNoopLogger())).SynthesizeByName("Post", "tags")
	require.NoError(t, err)
	assert.Equal(t, first, other)
}

// TestSynthesize_Concurrent 测试并发调用
func TestSynthesize_Concurrent(t *testing.T) {
	s := newTestSynthesizer(t)
	want, err := s.SynthesizeByName("Post", "tags")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]Chain, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = s.SynthesizeByName("Post", "tags")
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

type postModel struct{}

func (postModel) EntityName() string { return "Post" }

// TestSynthesizer_For 测试通过 IEntity 显式接入
func TestSynthesizer_For(t *testing.T) {
	chain, err := newTestSynthesizer(t).For(postModel{}, "comments")
	require.NoError(t, err)
	assert.Equal(t, "comments", chain.Target())
}

// TestSynthesize_Logging 测试合成日志与约定推导告警
func TestSynthesize_Logging(t *testing.T) {
	logger := &recordingLogger{}
	s := NewSynthesizer(blogRegistry(t), WithLogger(logger))

	_, err := s.SynthesizeByName("Post", "comments")
	require.NoError(t, err)
	assert.Empty(t, logger.byLevel("warn"))
	debug := logger.byLevel("debug")
	require.Len(t, debug, 1)
	assert.Equal(t, "Post", debug[0].fields["entity"])
	assert.Equal(t, 1, debug[0].fields["steps"])

	_, err = s.SynthesizeByName("Author", "posts")
	require.NoError(t, err)
	warn := logger.byLevel("warn")
	require.Len(t, warn, 1)
	assert.Equal(t, "foreign_key", warn[0].fields["key"])
	assert.Equal(t, "author_id", warn[0].fields["value"])
}
