package orm

import (
	"fmt"
	"strings"
	"sync"
)

// IResolver 按实体名解析模型元信息。
//
// 取代运行时“字符串 → 类型”的反射解析：所有实体必须在启动期显式注册。
type IResolver interface {
	Resolve(name string) (*ModelMeta, bool)
}

// Registry 实体注册表，启动期写入，之后只读；读写均可并发调用。
type Registry struct {
	mu       sync.RWMutex
	entities map[string]*ModelMeta
	order    []string
}

// NewRegistry 创建注册表并注册给定实体。
func NewRegistry(metas ...*ModelMeta) (*Registry, error) {
	r := &Registry{entities: make(map[string]*ModelMeta, len(metas))}
	for _, m := range metas {
		if err := r.Register(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustNewRegistry 同 NewRegistry，出错时 panic，适用于包级初始化。
func MustNewRegistry(metas ...*ModelMeta) *Registry {
	r, err := NewRegistry(metas...)
	if err != nil {
		panic(err)
	}
	return r
}

// Register 注册实体。
//
// 注册表保存 meta 的副本，调用方传入的 meta 不会被修改。
// Table 为空时优先取 Model 的 TableName()，否则按 DefaultTableName 推导。
// 同名实体重复注册返回 ErrDuplicateEntity。
func (r *Registry) Register(meta *ModelMeta) error {
	if meta == nil {
		return fmt.Errorf("orm.Registry: meta cannot be nil")
	}
	entry := *meta
	entry.Name = strings.TrimSpace(meta.Name)
	if entry.Name == "" {
		return fmt.Errorf("orm.Registry: entity name is empty")
	}
	if entry.Table == "" {
		if tn, ok := entry.Model.(interface{ TableName() string }); ok && tn.TableName() != "" {
			entry.Table = tn.TableName()
		} else {
			entry.Table = DefaultTableName(entry.Name)
		}
	}
	name := entry.Name

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entities == nil {
		r.entities = make(map[string]*ModelMeta)
	}
	if _, exists := r.entities[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEntity, name)
	}
	r.entities[name] = &entry
	r.order = append(r.order, name)
	return nil
}

// Resolve 实现 IResolver。
func (r *Registry) Resolve(name string) (*ModelMeta, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.entities[name]
	return m, ok
}

// Names 按注册顺序返回实体名。
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len 返回已注册实体数量。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}
