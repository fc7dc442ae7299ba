package title

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/John-Robertt/VLIB/internal/domain"
)

// 两种互斥的文件名形态：
// - 剧集：<name>S01E02<junk>（集号标记大小写不敏感，恰好 2+2 位数字）
// - 电影：<name>1999<junk>（4 位年份，要求 (1900, 当前年] 才可信）
//
// 注意：剧集模式优先于电影模式——剧集文件名极少携带年份，
// 即使携带（例如 "Eureka.2006.S01E01"），以集号为准。
var (
	episodeRE = regexp.MustCompile(`(?i)^(.*?)[\s._-]*S([0-9]{2})E([0-9]{2})`)
)

// ParseError 表示文件名不匹配任何已知形态。
type ParseError struct {
	Filename string
}

func (e *ParseError) Error() string {
	return "无法从文件名解析出标题：" + e.Filename + "（期望形如 Name.S01E02.* 或 Name.1999.*）"
}

// nowYear 可替换，让测试不依赖真实时钟。
var nowYear = func() int { return time.Now().Year() }

// Parse 从文件名（不含扩展名）解析出 RawTitle。
// 失败返回 *ParseError（调用方据此跳过该文件，不视为致命错误）。
func Parse(filename string) (domain.RawTitle, error) {
	name := strings.TrimSpace(filename)

	if m := episodeRE.FindStringSubmatch(name); m != nil {
		season, _ := strconv.Atoi(m[2])
		episode, _ := strconv.Atoi(m[3])
		n := cleanName(m[1])
		if n != "" {
			return domain.RawTitle{
				Name:    n,
				Kind:    domain.KindEpisode,
				Season:  season,
				Episode: episode,
			}, nil
		}
	}

	// 电影模式：取“第一个可信年份” token，标题 = 它之前的前缀。
	// 不可信的 4 位数（例如 1080/2160 这类分辨率标记、0000）跳过继续找。
	// 已知限制：形如 "2001 A Space Odyssey 1968" 的标题会把 2001 当成年份，
	// 这类标题与数据库列表间的字面差异不在本工具的修复范围内。
	for _, at := range yearTokens(name) {
		y, _ := strconv.Atoi(name[at : at+4])
		if !plausibleYear(y) {
			continue
		}
		n := cleanName(strings.Trim(name[:at], "([ "))
		if n == "" {
			continue
		}
		return domain.RawTitle{
			Name: n,
			Kind: domain.KindMovie,
			Year: y,
		}, nil
	}

	return domain.RawTitle{}, &ParseError{Filename: filename}
}

func plausibleYear(y int) bool {
	return y > 1900 && y <= nowYear()
}

// yearTokens 返回所有“独立 4 位数字 token”的起始下标（前后均不是数字）。
func yearTokens(s string) []int {
	isDigit := func(b byte) bool { return b >= '0' && b <= '9' }

	var out []int
	for i := 0; i+4 <= len(s); i++ {
		if !isDigit(s[i]) || !isDigit(s[i+1]) || !isDigit(s[i+2]) || !isDigit(s[i+3]) {
			continue
		}
		if i > 0 && isDigit(s[i-1]) {
			continue
		}
		if i+4 < len(s) && isDigit(s[i+4]) {
			// 更长的数字串：整段跳过。
			for i+4 < len(s) && isDigit(s[i+4]) {
				i++
			}
			continue
		}
		out = append(out, i)
		i += 3
	}
	return out
}

// cleanName 把分隔符（. _ -）统一为空格并压缩、修剪。
func cleanName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '.', '_', '-':
			return ' '
		default:
			return r
		}
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
