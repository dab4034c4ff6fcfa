package join

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"outerjoin/data/orm"
	"outerjoin/logging"
)

func idField() []orm.FieldMeta {
	return []orm.FieldMeta{{Name: "ID", Column: "id", PrimaryKey: true, AutoIncrement: true}}
}

// blogRegistry 博客示例：Author 1:n Post 1:n Comment，Post n:n Tag（经 Tagging）
func blogRegistry(t *testing.T) *orm.Registry {
	t.Helper()
	reg, err := orm.NewRegistry(
		&orm.ModelMeta{
			Name:   "Author",
			Table:  "authors",
			Fields: idField(),
			Associations: []orm.AssociationMeta{
				{Name: "posts", Kind: orm.AssociationHasMany, Target: "Post"},
				{Name: "profile", Kind: orm.AssociationHasOne, Target: "Profile", ForeignKey: "author_id"},
			},
		},
		&orm.ModelMeta{Name: "Profile", Table: "profiles", Fields: idField()},
		&orm.ModelMeta{
			Name:   "Post",
			Table:  "posts",
			Fields: idField(),
			Associations: []orm.AssociationMeta{
				{Name: "author", Kind: orm.AssociationBelongsTo, Target: "Author", ForeignKey: "author_id"},
				{Name: "editor", Kind: orm.AssociationBelongsTo, Target: "Author"},
				{Name: "category", Kind: orm.AssociationBelongsTo, Target: "Category", ForeignKey: "category_code"},
				{Name: "comments", Kind: orm.AssociationHasMany, Target: "Comment", ForeignKey: "post_id"},
				{Name: "taggings", Kind: orm.AssociationHasMany, Target: "Tagging", ForeignKey: "post_id"},
				{Name: "tags", Kind: orm.AssociationHasManyThrough, Through: "Tagging", Target: "Tag",
					JoinForeignKey: "post_id", JoinReferenceKey: "tag_id"},
				{Name: "labels", Kind: orm.AssociationHasManyThrough, Through: "taggings"},
				{Name: "derived_tags", Kind: orm.AssociationHasManyThrough, Through: "Tagging", Target: "Tag"},
				{Name: "readers", Kind: orm.AssociationManyToMany, Target: "Author", JoinTable: "post_readers"},
				{Name: "attachable", Kind: orm.AssociationBelongsTo, Target: "Comment", Polymorphic: true},
				{Name: "ghosts", Kind: orm.AssociationHasMany, Target: "Ghost", ForeignKey: "post_id"},
				{Name: "notes", Kind: orm.AssociationHasMany, Target: "Note"},
				{Name: "author_posts", Kind: orm.AssociationHasManyThrough, Through: "author", Target: "Post"},
			},
		},
		&orm.ModelMeta{
			Name:   "Comment",
			Table:  "comments",
			Fields: idField(),
			Associations: []orm.AssociationMeta{
				{Name: "post", Kind: orm.AssociationBelongsTo, Target: "Post", ForeignKey: "post_id"},
			},
		},
		&orm.ModelMeta{
			Name:  "Tagging",
			Table: "taggings",
			Associations: []orm.AssociationMeta{
				{Name: "post", Kind: orm.AssociationBelongsTo, Target: "Post", ForeignKey: "post_id"},
				{Name: "tag", Kind: orm.AssociationBelongsTo, Target: "Tag", ForeignKey: "tag_id"},
				{Name: "label", Kind: orm.AssociationBelongsTo, Target: "Tag", ForeignKey: "tag_id"},
			},
		},
		&orm.ModelMeta{Name: "Tag", Table: "tags"},
		&orm.ModelMeta{
			Name:   "Category",
			Table:  "categories",
			Fields: []orm.FieldMeta{{Name: "Code", Column: "code", PrimaryKey: true}},
		},
		&orm.ModelMeta{
			Name:   "Employee",
			Table:  "employees",
			Fields: idField(),
			Associations: []orm.AssociationMeta{
				{Name: "manager", Kind: orm.AssociationBelongsTo, Target: "Employee", ForeignKey: "manager_id"},
				{Name: "reports", Kind: orm.AssociationHasMany, Target: "Employee", ForeignKey: "manager_id"},
			},
		},
		// Note 上没有指回 Post 的关联
		&orm.ModelMeta{Name: "Note", Table: "notes", Fields: idField()},
	)
	require.NoError(t, err)
	return reg
}

type logEntry struct {
	level  string
	msg    string
	fields map[string]any
}

// recordingLogger 记录日志条目，便于断言
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) record(level, msg string, fields []logging.Field) {
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, fields: m})
	l.mu.Unlock()
}

func (l *recordingLogger) Debug(_ context.Context, msg string, fields ...logging.Field) {
	l.record("debug", msg, fields)
}
func (l *recordingLogger) Info(_ context.Context, msg string, fields ...logging.Field) {
	l.record("info", msg, fields)
}
func (l *recordingLogger) Warn(_ context.Context, msg string, fields ...logging.Field) {
	l.record("warn", msg, fields)
}
func (l *recordingLogger) Error(_ context.Context, msg string, fields ...logging.Field) {
	l.record("error", msg, fields)
}
func (l *recordingLogger) WithFields(...logging.Field) logging.Logger { return l }

func (l *recordingLogger) byLevel(level string) []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logEntry
	for _, e := range l.entries {
		if e.level == level {
			out = append(out, e)
		}
	}
	return out
}
