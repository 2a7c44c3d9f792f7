// Package naming 为 DTU 号查询显示名称。名称只被查询，从不由网关计算。
package naming

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Resolver 名称查询；未登记的设备返回空字符串
type Resolver interface {
	Lookup(ctx context.Context, dtuNo string) (string, error)
}

// Nop 总是返回空名称
type Nop struct{}

func (Nop) Lookup(context.Context, string) (string, error) { return "", nil }

// FileResolver 从 YAML 文件加载 DTU 号到名称的映射：
//
//	devices:
//	  "13912345678": 一号泵房
type FileResolver struct {
	mu    sync.RWMutex
	path  string
	names map[string]string
}

type namesFile struct {
	Devices map[string]string `yaml:"devices"`
}

// NewFileResolver 读取并解析文件
func NewFileResolver(path string) (*FileResolver, error) {
	r := &FileResolver{path: path}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload 重新读取文件
func (r *FileResolver) Reload() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read names file: %w", err)
	}
	var f namesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse names file %s: %w", r.path, err)
	}
	if f.Devices == nil {
		f.Devices = map[string]string{}
	}
	r.mu.Lock()
	r.names = f.Devices
	r.mu.Unlock()
	return nil
}

// Lookup 实现 Resolver
func (r *FileResolver) Lookup(_ context.Context, dtuNo string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names[strings.TrimRight(dtuNo, "\x00")], nil
}

// Len 已登记的设备数
func (r *FileResolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}
