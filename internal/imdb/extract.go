package imdb

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/VLIB/internal/domain"
)

// 提取层：把详情页 HTML 解析为 MetadataRecord。
//
// 设计：一张有序的字段规则表，每条规则（主选择器 + 回退选择器 + 归一化）
// 独立作用在同一个文档上；某条规则没命中就让字段保持零值，绝不中断后续规则。
// 站点改版只需要增改表项，而不是改一串条件分支。

// EpisodeSeparator 是“剧名 — 集名”之间保留的分隔符（em dash）。
// 其余文本在归一化时不会产生该字符，因此上层可以安全地按它切分。
const EpisodeSeparator = " — "

type extractRule struct {
	name  string
	apply func(doc *goquery.Document, r *domain.MetadataRecord)
}

var extractRules = []extractRule{
	{"title", extractTitle},
	{"summary", extractSummary},
	{"plot", extractPlot},
	{"credits", extractCredits},
	{"genres", extractGenres},
	{"release", extractRelease},
	{"episode_count", extractEpisodeCount},
	{"season_episode", extractSeasonEpisode},
	{"rating", extractRating},
}

// Extract 解析详情页。返回元数据与页面的规范 tt id（可能为空）。
// 只有 HTML 完全无法构建文档时才返回错误；字段级缺失不是错误。
func Extract(html []byte) (domain.MetadataRecord, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return domain.MetadataRecord{}, "", err
	}

	var r domain.MetadataRecord
	for _, rule := range extractRules {
		rule.apply(doc, &r)
	}
	return r, canonicalID(doc), nil
}

// canonicalID 从规范链接取 tt id，回退到社交分享 URL。
// 用于校验缓存页面与请求 id 一致（页面可能被站点重定向到别的条目）。
func canonicalID(doc *goquery.Document) string {
	if href, ok := doc.Find("link[rel='canonical']").First().Attr("href"); ok {
		if id := idFromHref(href); id != "" {
			return id
		}
	}
	if href, ok := doc.Find("meta[property='og:url']").First().Attr("content"); ok {
		return idFromHref(href)
	}
	return ""
}

// titleTagRE 匹配 <title> 文本：
//
//	The Matrix (1999) - IMDb
//	The Wire (TV Series 2002–2008) - IMDb
//	"Eureka" Pilot (TV Episode 2006) - IMDb
var titleTagRE = regexp.MustCompile(`^(.*?)\s*\(([A-Za-z ]*?)\s?([0-9]{4})(?:[\x{2013}-]([0-9]{4}))?[^)]*\)`)

func extractTitle(doc *goquery.Document, r *domain.MetadataRecord) {
	text := strings.TrimSpace(doc.Find("title").First().Text())
	if text == "" {
		text, _ = doc.Find("meta[property='og:title']").First().Attr("content")
		text = strings.TrimSpace(text)
	}
	if text == "" {
		return
	}

	m := titleTagRE.FindStringSubmatch(text)
	if m == nil {
		// 没有年份括注的标题也要保留（例如尚未定档的条目）。
		r.Title = normalizeTitle(strings.TrimSuffix(text, " - IMDb"))
		return
	}

	r.Title = normalizeTitle(m[1])
	r.MovieClass = strings.TrimSpace(m[2])
	if r.MovieClass == "" {
		r.MovieClass = domain.DefaultMovieClass
	}
	r.Year, _ = strconv.Atoi(m[3])
	if m[4] != "" {
		r.YearEnd, _ = strconv.Atoi(m[4])
	}
}

// normalizeTitle 统一引号/横线写法，并把前导引号段（单集标题）
// 转成“剧名 — 集名”（em dash 为保留分隔符）。
func normalizeTitle(s string) string {
	s = strings.NewReplacer(
		"‘", "'", "’", "'",
		"“", `"`, "”", `"`,
	).Replace(strings.TrimSpace(s))

	if strings.HasPrefix(s, `"`) {
		if end := strings.Index(s[1:], `"`); end >= 0 {
			series := strings.TrimSpace(s[1 : end+1])
			episode := strings.TrimSpace(s[end+2:])
			if series != "" && episode != "" {
				return series + EpisodeSeparator + episode
			}
			if series != "" {
				return series
			}
		}
	}
	return s
}

var fullSummaryRE = regexp.MustCompile(`(?i)(\.\.\.|\x{2026})?\s*see full summary\s*(\x{bb})?\s*$`)

func extractSummary(doc *goquery.Document, r *domain.MetadataRecord) {
	if s := doc.Find("div.summary_text").First(); s.Length() > 0 {
		if text := stripLinks(s); text != "" {
			r.Summary = text
			return
		}
	}
	if content, ok := doc.Find("meta[name='description']").First().Attr("content"); ok {
		r.Summary = trimTruncation(strings.TrimSpace(content))
	}
}

func extractPlot(doc *goquery.Document, r *domain.MetadataRecord) {
	p := doc.Find("#titleStoryLine p").First()
	if p.Length() == 0 {
		return
	}
	r.Plot = stripLinks(p)
}

// stripLinks 只保留选区内不在链接里的文本（截断提示和“更多”链接随之消失），
// 再清理可能残留的截断后缀。
func stripLinks(s *goquery.Selection) string {
	clone := s.Clone()
	clone.Find("a").Remove()
	return trimTruncation(strings.Join(strings.Fields(clone.Text()), " "))
}

func trimTruncation(s string) string {
	s = fullSummaryRE.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	// 链接被剥掉后可能只剩指向箭头与省略号。
	s = strings.TrimSpace(strings.TrimSuffix(s, "»"))
	s = strings.TrimSuffix(s, "...")
	s = strings.TrimRight(s, "…")
	return strings.TrimSpace(s)
}

var moreCreditsRE = regexp.MustCompile(`(?i)^[0-9]+ more credits?`)

func extractCredits(doc *goquery.Document, r *domain.MetadataRecord) {
	doc.Find("div.credit_summary_item").Each(func(_ int, s *goquery.Selection) {
		label := strings.ToLower(strings.TrimSpace(s.Find("h4").First().Text()))
		label = strings.TrimSuffix(label, ":")

		var names []string
		s.Find("a").Each(func(_ int, a *goquery.Selection) {
			name := strings.Join(strings.Fields(a.Text()), " ")
			if name == "" || moreCreditsRE.MatchString(name) {
				return
			}
			if strings.Contains(strings.ToLower(name), "see full cast") {
				return
			}
			names = append(names, name)
		})
		joined := joinNames(names)
		if joined == "" {
			return
		}

		switch label {
		case "creator", "creators":
			r.Creators = joined
		case "director", "directors":
			r.Directors = joined
		case "writer", "writers":
			r.Writers = joined
		case "star", "stars":
			r.Cast = joined
		}
	})
}

// joinNames 大小写不敏感地去重（保持首见顺序），用 ", " 连接。
func joinNames(names []string) string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		k := strings.ToLower(n)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, n)
	}
	return strings.Join(out, ", ")
}

func extractGenres(doc *goquery.Document, r *domain.MetadataRecord) {
	seen := make(map[string]struct{})
	doc.Find("a[href*='genres=']").Each(func(_ int, a *goquery.Selection) {
		g := strings.Join(strings.Fields(a.Text()), " ")
		if g == "" || strings.HasPrefix(g, "Most ") {
			return
		}
		if _, ok := seen[g]; ok {
			return
		}
		seen[g] = struct{}{}
		r.Genres = append(r.Genres, g)
	})
}

var releaseDateFormats = []string{"2 January 2006", "January 2006", "2006-01-02"}

func extractRelease(doc *goquery.Document, r *domain.MetadataRecord) {
	var earliest time.Time

	consider := func(text string) {
		// 去掉 "(USA)" 之类的地区括注。
		if i := strings.IndexByte(text, '('); i >= 0 {
			text = text[:i]
		}
		text = strings.Join(strings.Fields(text), " ")
		for _, layout := range releaseDateFormats {
			t, err := time.Parse(layout, text)
			if err != nil {
				continue
			}
			if earliest.IsZero() || t.Before(earliest) {
				earliest = t
			}
			return
		}
	}

	doc.Find("a[href*='releaseinfo']").Each(func(_ int, a *goquery.Selection) {
		consider(a.Text())
	})
	consider(doc.Find("time[datetime]").First().AttrOr("datetime", ""))

	if earliest.IsZero() {
		return
	}
	r.ReleaseDate = earliest.Format("2006-01-02")
	if r.Year == 0 {
		r.Year = earliest.Year()
	}
}

var episodeCountRE = regexp.MustCompile(`([0-9]+)\s+episodes`)

func extractEpisodeCount(doc *goquery.Document, r *domain.MetadataRecord) {
	doc.Find("span.bp_sub_heading").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		m := episodeCountRE.FindStringSubmatch(s.Text())
		if m == nil {
			return true
		}
		r.EpisodeCount, _ = strconv.Atoi(m[1])
		return false
	})
}

var seasonEpisodeRE = regexp.MustCompile(`Season\s+([0-9]+).*?Episode\s+([0-9]+)`)

func extractSeasonEpisode(doc *goquery.Document, r *domain.MetadataRecord) {
	text := strings.Join(strings.Fields(doc.Find("div.bp_heading").First().Text()), " ")
	m := seasonEpisodeRE.FindStringSubmatch(text)
	if m == nil {
		return
	}
	r.Season, _ = strconv.Atoi(m[1])
	r.Episode, _ = strconv.Atoi(m[2])
}

func extractRating(doc *goquery.Document, r *domain.MetadataRecord) {
	if text := strings.TrimSpace(doc.Find("span[itemprop='ratingValue']").First().Text()); text != "" {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", "."), 64); err == nil && v > 0 {
			// "82/100" 风格的整数分值归一到 0–10。
			if v > 10 {
				v /= 10
			}
			r.Rating = v
			return
		}
	}
	// 回退：聚合评分站的百分制，恒除以 10。
	if text := strings.TrimSpace(doc.Find("div.metacriticScore span").First().Text()); text != "" {
		if v, err := strconv.ParseFloat(text, 64); err == nil && v > 0 {
			r.Rating = v / 10
		}
	}
}
