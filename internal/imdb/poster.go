package imdb

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// 海报解析是两跳流程：详情页内嵌的缩略图分辨率偏低，更大的原图
// 藏在“媒体查看器”页面里，用缩略图的内部 id（rm 开头）作为键。
// 两跳都失败时回退到社交分享图（仅接受 .jpg）。

var mediaViewerRE = regexp.MustCompile(`/mediaviewer/(rm[0-9]+)`)

// ResolvePosterURL 解析更大的海报图地址。titleHTML 是已抓到的详情页
//（避免重复请求）；返回空串表示页面没有可用海报，不算错误。
func (c *Client) ResolvePosterURL(ctx context.Context, titleHTML []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(titleHTML))
	if err != nil {
		return "", err
	}

	href, _ := doc.Find("div.poster a").First().Attr("href")
	m := mediaViewerRE.FindStringSubmatch(href)
	if m != nil {
		viewerURL := resolveRef(c.baseURL(), href)
		viewerHTML, err := c.fetch(ctx, viewerURL)
		if err != nil {
			return "", err
		}
		if u := largeImageForID(viewerHTML, m[1]); u != "" {
			return u, nil
		}
	}

	return socialImageFallback(doc), nil
}

var viewerImageURLRE = regexp.MustCompile(`"url"\s*:\s*"(https://[^"]+\.jpg)"`)

// largeImageForID 在查看器页面的内嵌数据里找 rm id 对应的大图地址。
// 数据是站点内嵌的 JSON 文本，结构不稳定，按“id 出现处之后最近的
// .jpg url”取值即可。
func largeImageForID(viewerHTML []byte, rmID string) string {
	idx := bytes.Index(viewerHTML, []byte(`"`+rmID+`"`))
	if idx < 0 {
		return ""
	}
	m := viewerImageURLRE.FindSubmatch(viewerHTML[idx:])
	if m == nil {
		return ""
	}
	return string(m[1])
}

var socialImageTags = []string{
	"meta[property='og:image']",
	"meta[name='twitter:image']",
	"meta[itemprop='image']",
}

func socialImageFallback(doc *goquery.Document) string {
	for _, sel := range socialImageTags {
		content, ok := doc.Find(sel).First().Attr("content")
		if !ok {
			continue
		}
		content = strings.TrimSpace(content)
		if strings.HasSuffix(strings.ToLower(content), ".jpg") {
			return content
		}
	}
	return ""
}

func resolveRef(base, href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return base + "/" + strings.TrimLeft(href, "/")
}
