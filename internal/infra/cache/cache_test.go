package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestStore_WriteReadRemovePage(t *testing.T) {
	root := t.TempDir()
	s := New(root, false)

	if err := s.WritePage("tt0796366", []byte("<html/>")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	b, ok, err := s.ReadPage("tt0796366")
	if err != nil || !ok {
		t.Fatalf("读取失败：ok=%v err=%v", ok, err)
	}
	if string(b) != "<html/>" {
		t.Fatalf("内容不一致：%q", string(b))
	}

	if err := s.RemovePage("tt0796366"); err != nil {
		t.Fatalf("删除失败：%v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "cache", "pages", "tt0796366.html")); !os.IsNotExist(err) {
		t.Fatalf("页面缓存应已删除：%v", err)
	}
	// 二次删除不算错误。
	if err := s.RemovePage("tt0796366"); err != nil {
		t.Fatalf("重复删除不应报错：%v", err)
	}
}

func TestStore_ReadOnlyRejectsWrites(t *testing.T) {
	s := New(t.TempDir(), true)

	if err := s.WritePage("tt0796366", []byte("x")); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("期望 ErrReadOnly，实际：%v", err)
	}
	if err := s.RemovePage("tt0796366"); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("期望 ErrReadOnly，实际：%v", err)
	}
}

func TestStore_RejectsBadID(t *testing.T) {
	s := New(t.TempDir(), false)
	if err := s.WritePage("../escape", []byte("x")); err == nil {
		t.Fatalf("非法 id 不应被接受")
	}
	if _, _, err := s.ReadPage("nm123"); err == nil {
		t.Fatalf("非法 id 不应被接受")
	}
}
