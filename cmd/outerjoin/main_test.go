package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outerjoin/data/orm"
	gerrors "outerjoin/errors"
	"outerjoin/logging"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	prev := logging.GetLogger()
	t.Cleanup(func() { logging.SetLogger(prev) })

	var cli CLI
	parser, err := newParser(&cli)
	require.NoError(t, err)
	ctx, err := parser.Parse(args)
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	err = ctx.Run(&runContext{Out: &out})
	return out.String(), err
}

// TestParseTarget 测试 Entity.association 解析
func TestParseTarget(t *testing.T) {
	entity, assoc, err := parseTarget(" Post.comments ")
	require.NoError(t, err)
	assert.Equal(t, "Post", entity)
	assert.Equal(t, "comments", assoc)

	for _, bad := range []string{"Post", "Post.", ".comments", "Post.comments.author", ""} {
		_, _, err := parseTarget(bad)
		assert.True(t, gerrors.IsErrorCode(err, gerrors.ErrCodeInvalidInput), bad)
	}
}

// TestCLI_PrintsJoins 测试每个参数输出一行 JOIN 片段
func TestCLI_PrintsJoins(t *testing.T) {
	out, err := runCLI(t, "--schema", "testdata/blog.yaml", "--log-level", "error", "Post.comments", "Post.tags")
	require.NoError(t, err)
	assert.Equal(t,
		`LEFT OUTER JOIN "comments" ON "comments"."post_id" = "posts"."id"`+"\n"+
			`LEFT OUTER JOIN "taggings" ON "taggings"."post_id" = "posts"."id" `+
			`LEFT OUTER JOIN "tags" ON "tags"."id" = "taggings"."tag_id"`+"\n",
		out)
}

// TestCLI_Dialect 测试方言参数与环境变量
func TestCLI_Dialect(t *testing.T) {
	t.Setenv("OUTERJOIN_SCHEMA", "testdata/blog.yaml")
	t.Setenv("OUTERJOIN_DIALECT", "mysql")

	out, err := runCLI(t, "--log-level", "error", "Comment.post")
	require.NoError(t, err)
	assert.Equal(t, "LEFT OUTER JOIN `posts` ON `posts`.`id` = `comments`.`post_id`\n", out)

	_, err = runCLI(t, "--dialect", "oracle", "Comment.post")
	assert.Error(t, err)
}

// TestCLI_Errors 测试错误传递
func TestCLI_Errors(t *testing.T) {
	_, err := runCLI(t, "--schema", "testdata/blog.yaml", "--log-level", "error", "Post.likes")
	assert.ErrorIs(t, err, orm.ErrUnknownAssociation)

	_, err = runCLI(t, "--schema", "testdata/blog.yaml", "--strict", "--log-level", "error", "Post.comments")
	assert.ErrorIs(t, err, orm.ErrMissingForeignKey)

	_, err = runCLI(t, "--schema", "testdata/missing.yaml", "Post.comments")
	assert.True(t, gerrors.IsErrorCode(err, gerrors.ErrCodeSchema))

	_, err = runCLI(t, "--schema", "testdata/blog.yaml", "comments")
	assert.True(t, gerrors.IsErrorCode(err, gerrors.ErrCodeInvalidInput))
}
