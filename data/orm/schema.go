package orm

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// schemaFile 是 YAML 实体定义文件的顶层结构。
type schemaFile struct {
	Entities []entitySpec `yaml:"entities"`
}

type entitySpec struct {
	Name         string            `yaml:"name"`
	Table        string            `yaml:"table"`
	Fields       []fieldSpec       `yaml:"fields"`
	Associations []associationSpec `yaml:"associations"`
	Tags         map[string]string `yaml:"tags"`
}

type fieldSpec struct {
	Name          string `yaml:"name"`
	Column        string `yaml:"column"`
	PrimaryKey    bool   `yaml:"primary_key"`
	AutoIncrement bool   `yaml:"auto_increment"`
	Nullable      bool   `yaml:"nullable"`
}

type associationSpec struct {
	Name             string            `yaml:"name"`
	Kind             string            `yaml:"kind"`
	Target           string            `yaml:"target"`
	ForeignKey       string            `yaml:"foreign_key"`
	ReferenceKey     string            `yaml:"reference_key"`
	Through          string            `yaml:"through"`
	JoinTable        string            `yaml:"join_table"`
	JoinForeignKey   string            `yaml:"join_foreign_key"`
	JoinReferenceKey string            `yaml:"join_reference_key"`
	Polymorphic      bool              `yaml:"polymorphic"`
	Tags             map[string]string `yaml:"tags"`
}

// LoadRegistry 从 YAML 读取实体定义并构建注册表。
//
// 只做结构层面的检查（关联类型可识别、实体名非空且不重复），
// 不校验外键列是否真实存在。
func LoadRegistry(r io.Reader) (*Registry, error) {
	var file schemaFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("orm: decode schema: %w", err)
	}

	reg := &Registry{entities: make(map[string]*ModelMeta, len(file.Entities))}
	for _, es := range file.Entities {
		meta, err := es.toMeta()
		if err != nil {
			return nil, err
		}
		if err := reg.Register(meta); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// LoadRegistryFile 从文件路径读取实体定义。
func LoadRegistryFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("orm: open schema: %w", err)
	}
	defer f.Close()
	return LoadRegistry(f)
}

func (es entitySpec) toMeta() (*ModelMeta, error) {
	meta := &ModelMeta{
		Name:  es.Name,
		Table: es.Table,
		Tags:  es.Tags,
	}
	for _, fs := range es.Fields {
		meta.Fields = append(meta.Fields, FieldMeta{
			Name:          fs.Name,
			Column:        fs.Column,
			PrimaryKey:    fs.PrimaryKey,
			AutoIncrement: fs.AutoIncrement,
			Nullable:      fs.Nullable,
		})
	}
	for _, as := range es.Associations {
		kind, ok := ParseAssociationKind(as.Kind)
		if !ok {
			return nil, fmt.Errorf("orm: entity %s association %s: kind %q: %w", es.Name, as.Name, as.Kind, ErrUnsupported)
		}
		meta.Associations = append(meta.Associations, AssociationMeta{
			Name:             as.Name,
			Kind:             kind,
			Target:           as.Target,
			ForeignKey:       as.ForeignKey,
			ReferenceKey:     as.ReferenceKey,
			Through:          as.Through,
			JoinTable:        as.JoinTable,
			JoinForeignKey:   as.JoinForeignKey,
			JoinReferenceKey: as.JoinReferenceKey,
			Polymorphic:      as.Polymorphic,
			Tags:             as.Tags,
		})
	}
	return meta, nil
}
