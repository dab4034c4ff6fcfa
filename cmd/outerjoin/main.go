// Command outerjoin 读取 YAML 实体定义，打印指定关联的 LEFT OUTER JOIN 片段。
//
//	outerjoin --schema schema.yaml --dialect postgres Post.comments Post.tags
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"outerjoin/data/db/dialect"
	"outerjoin/data/orm"
	"outerjoin/data/orm/join"
	gerrors "outerjoin/errors"
	"outerjoin/logging"
)

// CLI 命令行参数，均可由环境变量或 .env 提供
type CLI struct {
	Schema   string   `help:"YAML entity schema file" short:"s" required:"" env:"OUTERJOIN_SCHEMA"`
	Dialect  string   `help:"SQL dialect used for quoting" short:"d" default:"sqlite" enum:"sqlite,mysql,postgres" env:"OUTERJOIN_DIALECT"`
	Strict   bool     `help:"Require explicit foreign keys instead of deriving them by naming convention"`
	LogLevel string   `help:"Log level" default:"warn" enum:"debug,info,warn,error" env:"OUTERJOIN_LOG_LEVEL"`
	Targets  []string `arg:"" name:"target" help:"Associations to join, as Entity.association"`
}

type runContext struct {
	Out io.Writer
}

func newParser(cli *CLI) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("outerjoin"),
		kong.Description("Print LEFT OUTER JOIN clauses synthesized from association metadata."),
		kong.UsageOnError(),
	)
}

// Run 实现 kong 命令入口
func (c *CLI) Run(rc *runContext) error {
	level, _ := logging.ParseLevel(c.LogLevel)
	logger := logging.NewStdLogger("[outerjoin]").WithLevel(level)
	logging.SetLogger(logger)

	reg, err := orm.LoadRegistryFile(c.Schema)
	if err != nil {
		return gerrors.WrapError(err, gerrors.ErrCodeSchema, "load schema").
			WithContext("path", c.Schema)
	}

	opts := []join.Option{join.WithLogger(logger)}
	if c.Strict {
		opts = append(opts, join.WithStrictKeys())
	}
	synth := join.NewSynthesizer(reg, opts...)
	d := dialect.New(c.Dialect)

	for _, target := range c.Targets {
		entity, association, err := parseTarget(target)
		if err != nil {
			return err
		}
		chain, err := synth.SynthesizeByName(entity, association)
		if err != nil {
			return err
		}
		sql, err := chain.SQL(d)
		if err != nil {
			return gerrors.WrapError(err, gerrors.ErrCodeInvalidInput, "render "+target)
		}
		if _, err := fmt.Fprintln(rc.Out, sql); err != nil {
			return err
		}
	}
	return nil
}

// parseTarget 拆分 "Entity.association"
func parseTarget(s string) (entity, association string, err error) {
	entity, association, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok || entity == "" || association == "" || strings.Contains(association, ".") {
		return "", "", gerrors.NewError(gerrors.ErrCodeInvalidInput,
			fmt.Sprintf("target %q must be Entity.association", s))
	}
	return entity, association, nil
}

func loadEnvFiles() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("failed to load .env file: %w", err)
	}
	return nil
}

func main() {
	stderr := color.New(color.FgRed)
	if err := loadEnvFiles(); err != nil {
		stderr.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var cli CLI
	parser, err := newParser(&cli)
	if err != nil {
		stderr.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	if err := ctx.Run(&runContext{Out: os.Stdout}); err != nil {
		stderr.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
