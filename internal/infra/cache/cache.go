package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/VLIB/internal/domain"
	"github.com/John-Robertt/VLIB/internal/infra/fsx"
)

// Store 提供 <root>/cache/pages/ 下的页面缓存读写。
//
// 生命周期约定：详情页 HTML 属于“过渡产物”——解析成功并写出 sidecar 之后
// 调用 RemovePage 删除；解析失败时保留，便于下次运行不再打网络。
//
// 约束：
// - dry-run：只允许读（ReadOnly=true）
// - apply：允许写（ReadOnly=false）
type Store struct {
	Root     string // 扫描根目录
	ReadOnly bool
}

var ErrReadOnly = errors.New("cache: read-only")

func New(root string, readOnly bool) Store {
	return Store{
		Root:     filepath.Clean(strings.TrimSpace(root)),
		ReadOnly: readOnly,
	}
}

// PagePath 返回外部 id 对应的 HTML 缓存绝对路径。
func (s Store) PagePath(id string) (string, error) {
	id, ok := domain.ParseExternalID(id)
	if !ok {
		return "", fmt.Errorf("非法外部 id：%q", id)
	}
	return filepath.Join(s.Root, "cache", "pages", id+".html"), nil
}

func (s Store) ReadPage(id string) ([]byte, bool, error) {
	path, err := s.PagePath(id)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (s Store) WritePage(id string, html []byte) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	if _, ok := domain.ParseExternalID(id); !ok {
		return fmt.Errorf("非法外部 id：%q", id)
	}
	dir := filepath.Join(s.Root, "cache", "pages")
	return fsx.WriteFileAtomicReplace(dir, id+".html", html)
}

// RemovePage 删除已完成解析的页面缓存；不存在不算错误。
func (s Store) RemovePage(id string) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	path, err := s.PagePath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
