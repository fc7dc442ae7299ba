package shortcut

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/VLIB/internal/infra/fsx"
)

// shortcut 文件是“身份已确认”的标记：与视频放在同一目录的单行文本，
// 内容形如 URL=https://www.imdb.com/title/tt0796366/。
//
// 识别只看内容，不看文件名：URL 路径必须匹配 /title/tt<digits>/。

const Ext = ".url"

// DefaultBaseURL 是外部数据库的默认域名（测试/镜像可通过配置覆盖）。
const DefaultBaseURL = "https://www.imdb.com"

var titleURLRE = regexp.MustCompile(`/title/(tt[0-9]+)/`)

// Entry 是目录内一个被识别的 shortcut。
type Entry struct {
	Path string
	ID   string
}

// TitleURL 拼出外部 id 的详情页 URL。
func TitleURL(baseURL, id string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return base + "/title/" + id + "/"
}

// Parse 从文件内容解析外部 id；无法识别返回 ok=false（不算错误）。
func Parse(content []byte) (string, bool) {
	line := strings.TrimSpace(string(content))
	if !strings.HasPrefix(line, "URL=") {
		return "", false
	}
	m := titleURLRE.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ScanDir 返回 dir 下所有被识别的 shortcut（按文件名排序稳定）。
// 无法读取/无法识别的 .url 文件直接忽略——它们不是本工具写出的标记。
func ScanDir(dir string) ([]Entry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []Entry
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), Ext) {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		id, ok := Parse(b)
		if !ok {
			continue
		}
		out = append(out, Entry{Path: filepath.Join(dir, e.Name()), ID: id})
	}
	return out, nil
}

// Write 在 dir 下写出名为 <name>.url 的 shortcut（存在即不再写，保证幂等）。
// 返回 written=false 表示目标已存在（不算错误）。
func Write(dir, name, baseURL, id string) (written bool, err error) {
	content := "URL=" + TitleURL(baseURL, id) + "\n"
	err = fsx.WriteFileAtomicNoOverwrite(dir, name+Ext, []byte(content))
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
