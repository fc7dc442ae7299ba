package imdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/VLIB/internal/domain"
)

// Client 封装外部影片数据库的搜索与页面抓取。
//
// 约束：
// - 不做缓存、不做限速（缓存由 infra/cache 层统一实现，重试在 http.Transport 层）
// - 解析函数必须是纯函数：相同输入 => 相同输出
// - BaseURL 可指定镜像域名（测试用 httptest 服务地址），为空时使用官方站点
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func (c *Client) baseURL() string {
	u := strings.TrimSpace(c.BaseURL)
	if u == "" {
		return "https://www.imdb.com"
	}
	return strings.TrimRight(u, "/")
}

// SearchRow 是搜索结果的一行（按站点排序，首行即最优匹配）。
// 剧集条目可能带年份区间（YearEnd==0 表示单年或连载中）。
type SearchRow struct {
	Title   string
	Year    int
	YearEnd int
	ID      string
}

// EpisodeRow 是剧集列表页的一行。
type EpisodeRow struct {
	Season  int
	Episode int
	ID      string
	Title   string
}

// HTTPStatusError 表示站点返回了非 2xx 的 HTTP 状态码。
// 上层据此生成更可操作的 error_msg（fetch_failed）。
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	return fmt.Sprintf("HTTP %d url=%s", e.StatusCode, e.URL)
}

// SearchTitle 按标题搜索，返回站点排好序的结果行。
// kind 是分类提示：剧集搜索限定 TV 类型，电影搜索限定 Feature 类型。
func (c *Client) SearchTitle(ctx context.Context, query string, kind domain.TitleKind) ([]SearchRow, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query 不能为空")
	}

	u := c.baseURL() + "/find?s=tt&exact=true&q=" + url.QueryEscape(query)
	switch kind {
	case domain.KindEpisode:
		u += "&ttype=tv"
	case domain.KindMovie:
		u += "&ttype=ft"
	}

	html, err := c.fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	return parseSearchRows(html)
}

// EpisodeList 抓取指定季的分集列表。
func (c *Client) EpisodeList(ctx context.Context, seriesID string, season int) ([]EpisodeRow, error) {
	if _, ok := domain.ParseExternalID(seriesID); !ok {
		return nil, fmt.Errorf("外部 id 非法：%q", seriesID)
	}
	if season <= 0 {
		return nil, fmt.Errorf("season 非法：%d", season)
	}

	u := fmt.Sprintf("%s/title/%s/episodes?season=%d", c.baseURL(), seriesID, season)
	html, err := c.fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	return parseEpisodeRows(html, season)
}

// TitlePage 抓取详情页原始 HTML。
func (c *Client) TitlePage(ctx context.Context, id string) ([]byte, string, error) {
	if _, ok := domain.ParseExternalID(id); !ok {
		return nil, "", fmt.Errorf("外部 id 非法：%q", id)
	}
	u := c.baseURL() + "/title/" + id + "/"
	b, err := c.fetch(ctx, u)
	return b, u, err
}

func (c *Client) fetch(ctx context.Context, u string) ([]byte, error) {
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPStatusError{URL: u, StatusCode: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

var resultYearRE = regexp.MustCompile(`\(([0-9]{4})(?:[\x{2013}-]([0-9]{4}))?\)`)

// parseSearchRows 解析搜索页的结果表。
// 行结构：<td class="result_text"><a href="/title/tt.../">Title</a> (2009)</td>
func parseSearchRows(html []byte) ([]SearchRow, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	var rows []SearchRow
	doc.Find("table.findList tr.findResult td.result_text").Each(func(_ int, s *goquery.Selection) {
		a := s.Find("a").First()
		href, _ := a.Attr("href")
		id := idFromHref(href)
		if id == "" {
			return
		}
		title := strings.TrimSpace(a.Text())
		if title == "" {
			return
		}
		row := SearchRow{Title: title, ID: id}
		if m := resultYearRE.FindStringSubmatch(s.Text()); m != nil {
			row.Year, _ = strconv.Atoi(m[1])
			if m[2] != "" {
				row.YearEnd, _ = strconv.Atoi(m[2])
			}
		}
		rows = append(rows, row)
	})
	return rows, nil
}

// parseEpisodeRows 解析分集列表页。
// 行结构：<div class="info"><meta itemprop="episodeNumber" content="1">
//
//	<strong><a href="/title/tt.../">Pilot</a></strong></div>
func parseEpisodeRows(html []byte, season int) ([]EpisodeRow, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	var rows []EpisodeRow
	doc.Find("div.info").Each(func(_ int, s *goquery.Selection) {
		numStr, _ := s.Find("meta[itemprop='episodeNumber']").First().Attr("content")
		num, err := strconv.Atoi(strings.TrimSpace(numStr))
		if err != nil || num <= 0 {
			return
		}
		a := s.Find("strong a").First()
		href, _ := a.Attr("href")
		id := idFromHref(href)
		if id == "" {
			return
		}
		rows = append(rows, EpisodeRow{
			Season:  season,
			Episode: num,
			ID:      id,
			Title:   strings.TrimSpace(a.Text()),
		})
	})
	return rows, nil
}

var titleHrefRE = regexp.MustCompile(`/title/(tt[0-9]+)`)

func idFromHref(href string) string {
	m := titleHrefRE.FindStringSubmatch(strings.TrimSpace(href))
	if m == nil {
		return ""
	}
	return m[1]
}
