package domain

import (
	"regexp"
	"strings"
)

// externalIDRE 是外部数据库 title id 的规范形态（形如 tt1234567）。
var externalIDRE = regexp.MustCompile(`^tt[0-9]+$`)

// ParseExternalID 校验外部 id 的规范形态。
func ParseExternalID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !externalIDRE.MatchString(s) {
		return "", false
	}
	return s, true
}

// Identity 是一次成功解析的最终结果（movie 或 episode）。
//
// 不变量：
// - ExternalID 必须匹配 ^tt[0-9]+$
// - SeriesCode 与 SeriesExternalID 要么都为空（movie），要么都非空（episode）
// - episode 时 ExternalID 指向剧集“头条目”，SeriesExternalID 指向具体单集
type Identity struct {
	MovieName  string // 展示形态，例如 "The Foo (2019)"
	FolderName string // 可排序形态（冠词后置），例如 "Foo, The (2019)"
	ExternalID string

	SeriesCode       string // 例如 "S01E02"
	SeriesExternalID string
}

func (id Identity) IsEpisode() bool {
	return id.SeriesCode != "" && id.SeriesExternalID != ""
}

// invalidPathChars 列出不允许出现在文件/目录名中的字符。
// 按产品契约：所有来自外部数据库的字符串在用作路径片段前必须先过 SanitizeName。
const invalidPathChars = `<>:"/\|?*`

// SanitizeName 把路径非法字符替换为 '_'（不做其它“聪明”归一化）。
func SanitizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || strings.ContainsRune(invalidPathChars, r) {
			b.WriteRune('_')
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// SortableName 把单个前置冠词移到末尾（"The Matrix (1999)" -> "Matrix, The (1999)"）。
//
// 规则（固定）：只检查一次前缀，顺序为 "The " 再 "A "（大小写不敏感）；
// 年份括号保持在末尾。没有匹配前缀时原样返回。
func SortableName(name string) string {
	trimmed := strings.TrimSpace(name)

	// 把 "(YYYY...)" 尾缀剥出来，冠词移动发生在主标题内。
	base := trimmed
	suffix := ""
	if i := strings.LastIndex(trimmed, " ("); i >= 0 && strings.HasSuffix(trimmed, ")") {
		base = trimmed[:i]
		suffix = trimmed[i:]
	}

	for _, art := range []string{"The ", "A "} {
		if len(base) > len(art) && strings.EqualFold(base[:len(art)], art) {
			// 冠词保留输入原有的大小写（只移动位置，不做改写）。
			moved := strings.TrimSpace(base[len(art):]) + ", " + strings.TrimSpace(base[:len(art)])
			return moved + suffix
		}
	}
	return trimmed
}
