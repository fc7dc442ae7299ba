package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, FileName)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("写入配置失败：%v", err)
	}
	return p
}

func TestLoadEffective_CLIPathWithoutConfig(t *testing.T) {
	root := t.TempDir()

	got, err := LoadEffective(root, CLIArgs{Path: root})
	if err != nil {
		t.Fatalf("CLI 给了 path 时配置文件可选：%v", err)
	}
	if got.Path != filepath.Clean(root) {
		t.Fatalf("path 不符：%q", got.Path)
	}
	if got.Apply {
		t.Fatal("默认应是 dry-run")
	}
}

func TestLoadEffective_NoPathRequiresConfig(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 config_not_found，实际 %v", err)
	}
}

func TestLoadEffective_ConfigMissingPath(t *testing.T) {
	cwd := t.TempDir()
	writeConfig(t, cwd, `{"apply": true}`)

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeMissingPath {
		t.Fatalf("期望 config_missing_path，实际 %v", err)
	}
}

func TestLoadEffective_InvalidJSON(t *testing.T) {
	cwd := t.TempDir()
	writeConfig(t, cwd, `{not json`)

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 config_invalid，实际 %v", err)
	}
}

func TestLoadEffective_MergePriority(t *testing.T) {
	cwd := t.TempDir()
	lib := t.TempDir()
	writeConfig(t, cwd, `{"path": "`+jsonEscape(lib)+`", "apply": true, "exclude_dirs": ["temp"], "imdb_base_url": "https://mirror.example", "ffprobe": "/opt/bin/ffprobe"}`)

	// CLI --apply=false 必须能覆盖 config.apply=true。
	got, err := LoadEffective(cwd, CLIArgs{Apply: false, ApplySet: true})
	if err != nil {
		t.Fatalf("加载失败：%v", err)
	}
	if got.Apply {
		t.Fatal("CLI --apply=false 应覆盖配置")
	}
	if got.Path != filepath.Clean(lib) {
		t.Fatalf("path 应来自配置：%q", got.Path)
	}
	if len(got.ExcludeDirs) != 1 || got.ExcludeDirs[0] != "temp" {
		t.Fatalf("exclude_dirs 不符：%v", got.ExcludeDirs)
	}
	if got.IMDBBaseURL != "https://mirror.example" {
		t.Fatalf("imdb_base_url 不符：%q", got.IMDBBaseURL)
	}
	if got.FFProbe != "/opt/bin/ffprobe" {
		t.Fatalf("ffprobe 不符：%q", got.FFProbe)
	}
}

func TestLoadEffective_ConfigApplyUsedWhenCLIUnset(t *testing.T) {
	cwd := t.TempDir()
	lib := t.TempDir()
	writeConfig(t, cwd, `{"path": "`+jsonEscape(lib)+`", "apply": true}`)

	got, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("加载失败：%v", err)
	}
	if !got.Apply {
		t.Fatal("CLI 未指定时应采用 config.apply")
	}
}

func TestLoadEffective_BadBaseURL(t *testing.T) {
	cwd := t.TempDir()
	writeConfig(t, cwd, `{"path": ".", "imdb_base_url": "ftp://x"}`)

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 config_invalid，实际 %v", err)
	}
}

func TestLoadEffective_RelativeConfigPath(t *testing.T) {
	cwd := t.TempDir()
	if err := os.MkdirAll(filepath.Join(cwd, "library"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	writeConfig(t, cwd, `{"path": "library"}`)

	got, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("加载失败：%v", err)
	}
	want := filepath.Join(cwd, "library")
	if got.Path != want {
		t.Fatalf("相对 path 应基于 cwd 解析：%q != %q", got.Path, want)
	}
}

// jsonEscape 处理 Windows 路径里的反斜杠。
func jsonEscape(s string) string {
	out := ""
	for _, r := range s {
		if r == '\\' {
			out += `\\`
			continue
		}
		out += string(r)
	}
	return out
}
