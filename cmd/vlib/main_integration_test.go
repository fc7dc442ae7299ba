package main

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/John-Robertt/VLIB/internal/domain"
)

func TestCLI_NoTTY_StdoutOnlyRunReportJSON(t *testing.T) {
	// 这个测试锁定对外契约：stdout 非 TTY 时只能输出一个 RunReport JSON（进度/配置必须走 stderr 或直接禁用）。
	root := t.TempDir()

	// 准备“已整理完成”的输入：子目录 + 视频 + shortcut。
	// 这样 dry-run 直接 skip，不会触发真实的外部查询。
	dir := filepath.Join(root, "Matrix, The (1999)")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "The.Matrix.1999.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatalf("写入视频失败：%v", err)
	}
	sc := "URL=https://www.imdb.com/title/tt0133093/\n"
	if err := os.WriteFile(filepath.Join(dir, "Matrix, The (1999).url"), []byte(sc), 0o644); err != nil {
		t.Fatalf("写入 shortcut 失败：%v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("读取 cwd 失败：%v", err)
	}
	repoRoot := filepath.Clean(filepath.Join(wd, "..", ".."))

	cmd := exec.Command("go", "run", "./cmd/vlib", "run", root)
	cmd.Dir = repoRoot

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.Fatalf("命令执行失败：%v\nstderr=%s\nstdout=%s", err, stderr.String(), stdout.String())
	}

	// stdout 必须是单个 JSON。
	var rr domain.RunReport
	if err := json.Unmarshal(stdout.Bytes(), &rr); err != nil {
		t.Fatalf("stdout 不是合法的 RunReport JSON：%v\nstdout=%q", err, stdout.String())
	}
	if rr.Summary.Skipped != 1 || rr.Summary.Failed != 0 {
		t.Fatalf("期望 skipped=1 failed=0，实际 summary=%+v", rr.Summary)
	}
	// 进度/配置不应出现在 stdout。
	if strings.Contains(stdout.String(), "配置（生效）") || strings.Contains(stdout.String(), "进度:") {
		t.Fatalf("stdout 不应包含进度/配置输出：%q", stdout.String())
	}

	// stderr 至少应包含最终摘要行。
	if !strings.Contains(stderr.String(), "完成：processed=") {
		t.Fatalf("stderr 缺少完成摘要：%q", stderr.String())
	}
}

func TestParseRunArgs(t *testing.T) {
	ra, err := parseRunArgs([]string{"/some/path", "--apply=false"})
	if err != nil {
		t.Fatalf("解析失败：%v", err)
	}
	if ra.Path != "/some/path" || ra.Apply || !ra.ApplySet {
		t.Fatalf("解析结果不符：%+v", ra)
	}

	if _, err := parseRunArgs([]string{"--apply=maybe"}); err == nil {
		t.Fatalf("期望 --apply=maybe 报错")
	}
	if _, err := parseRunArgs([]string{"a", "b"}); err == nil {
		t.Fatalf("期望重复 path 报错")
	}
	if _, err := parseRunArgs([]string{"--whatever"}); err == nil {
		t.Fatalf("期望未知参数报错")
	}
}

func TestParseMetaArgs(t *testing.T) {
	ma, err := parseMetaArgs([]string{"some/dir", "--refresh"})
	if err != nil {
		t.Fatalf("解析失败：%v", err)
	}
	if !ma.Refresh {
		t.Fatalf("期望 refresh=true")
	}
	if !filepath.IsAbs(ma.Dir) {
		t.Fatalf("期望目录被解析为绝对路径：%q", ma.Dir)
	}

	if _, err := parseMetaArgs([]string{"--refresh"}); err == nil {
		t.Fatalf("期望缺少目录参数报错")
	}
	if _, err := parseMetaArgs([]string{"a", "b"}); err == nil {
		t.Fatalf("期望重复目录报错")
	}
}
