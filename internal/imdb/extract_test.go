package imdb

import (
	"testing"
)

const movieFixture = `<html><head>
<title>The Matrix (1999) - IMDb</title>
<link rel="canonical" href="https://www.imdb.com/title/tt0133093/">
<meta name="description" content="A computer hacker learns the truth.">
</head><body>
<div class="ratingValue"><strong><span itemprop="ratingValue">8.7</span></strong></div>
<div class="summary_text">
 A computer hacker learns from mysterious rebels about the true nature of his
 reality...<a href="/x">See full summary</a>&nbsp;&raquo;
</div>
<div class="credit_summary_item">
 <h4 class="inline">Directors:</h4>
 <a href="/name/nm0905154/">Lana Wachowski</a>,
 <a href="/name/nm0905152/">Lilly Wachowski</a>
</div>
<div class="credit_summary_item">
 <h4 class="inline">Stars:</h4>
 <a href="/name/nm0000206/">Keanu Reeves</a>,
 <a href="/name/nm0000401/">Laurence Fishburne</a>,
 <a href="/name/nm0000206/">KEANU REEVES</a>,
 <a href="fullcredits/">See full cast &amp; crew</a>
</div>
<div class="subtext">
 <a href="/search/title?genres=action">Action</a>
 <a href="/search/title?genres=sci-fi">Sci-Fi</a>
 <a href="/search/title?genres=most-popular">Most Popular</a>
 <a href="/title/tt0133093/releaseinfo">31 March 1999 (USA)</a>
</div>
<div id="titleStoryLine">
 <p><span>Thomas A. Anderson is a man living two lives.</span>
 <a href="/plotsummary">See more</a></p>
</div>
</body></html>`

func TestExtract_MovieFixture(t *testing.T) {
	r, id, err := Extract([]byte(movieFixture))
	if err != nil {
		t.Fatalf("Extract 失败：%v", err)
	}
	if id != "tt0133093" {
		t.Fatalf("canonical id=%q，期望 tt0133093", id)
	}
	if r.Title != "The Matrix" || r.Year != 1999 || r.YearEnd != 0 {
		t.Fatalf("标题/年份不符：%q %d–%d", r.Title, r.Year, r.YearEnd)
	}
	if r.MovieClass != "Feature Movie" {
		t.Fatalf("缺省分类应为 Feature Movie，实际 %q", r.MovieClass)
	}
	if r.Rating != 8.7 {
		t.Fatalf("评分 %v，期望 8.7", r.Rating)
	}
	wantSummary := "A computer hacker learns from mysterious rebels about the true nature of his reality"
	if r.Summary != wantSummary {
		t.Fatalf("短简介不符（链接与截断后缀应被剥掉）：%q", r.Summary)
	}
	if r.Plot != "Thomas A. Anderson is a man living two lives." {
		t.Fatalf("长简介不符（行内链接应被剥掉）：%q", r.Plot)
	}
	if r.Directors != "Lana Wachowski, Lilly Wachowski" {
		t.Fatalf("导演不符：%q", r.Directors)
	}
	if r.Cast != "Keanu Reeves, Laurence Fishburne" {
		t.Fatalf("演员应大小写不敏感去重并丢掉样板项：%q", r.Cast)
	}
	if len(r.Genres) != 2 || r.Genres[0] != "Action" || r.Genres[1] != "Sci-Fi" {
		t.Fatalf("类型不符（Most ... 伪类型应被排除）：%v", r.Genres)
	}
	if r.ReleaseDate != "1999-03-31" {
		t.Fatalf("上映日期不符：%q", r.ReleaseDate)
	}
}

const seriesFixture = `<html><head>
<title>The Wire (TV Series 2002–2008) - IMDb</title>
<link rel="canonical" href="https://www.imdb.com/title/tt0306414/">
</head><body>
<span class="bp_sub_heading">60 episodes</span>
<div class="credit_summary_item">
 <h4 class="inline">Creator:</h4>
 <a href="/name/nm0798855/">David Simon</a>
</div>
</body></html>`

func TestExtract_SeriesHeaderFixture(t *testing.T) {
	r, id, err := Extract([]byte(seriesFixture))
	if err != nil {
		t.Fatalf("Extract 失败：%v", err)
	}
	if id != "tt0306414" {
		t.Fatalf("canonical id=%q", id)
	}
	if r.Title != "The Wire" || r.Year != 2002 || r.YearEnd != 2008 {
		t.Fatalf("剧集头标题/年份区间不符：%q %d–%d", r.Title, r.Year, r.YearEnd)
	}
	if r.MovieClass != "TV Series" {
		t.Fatalf("分类应取括注内文字：%q", r.MovieClass)
	}
	if r.EpisodeCount != 60 {
		t.Fatalf("集数 %d，期望 60", r.EpisodeCount)
	}
	if r.Creators != "David Simon" {
		t.Fatalf("创作人不符：%q", r.Creators)
	}
	if r.Season != 0 || r.Episode != 0 {
		t.Fatalf("剧集头不应有季/集号：S%d E%d", r.Season, r.Episode)
	}
}

const episodeFixture = `<html><head>
<title>&quot;Eureka&quot; Pilot (TV Episode 2006) - IMDb</title>
<link rel="canonical" href="https://www.imdb.com/title/tt0796369/">
</head><body>
<div class="bp_heading">Season 1 <span class="ghost">|</span> Episode 1</div>
<div class="ratingValue"><span itemprop="ratingValue">82</span></div>
</body></html>`

func TestExtract_EpisodeFixture(t *testing.T) {
	r, _, err := Extract([]byte(episodeFixture))
	if err != nil {
		t.Fatalf("Extract 失败：%v", err)
	}
	if r.Title != "Eureka"+EpisodeSeparator+"Pilot" {
		t.Fatalf("引号起头的单集标题应转成“剧名 — 集名”：%q", r.Title)
	}
	if r.Season != 1 || r.Episode != 1 {
		t.Fatalf("季/集号不符：S%d E%d", r.Season, r.Episode)
	}
	if r.MovieClass != "TV Episode" || r.Year != 2006 {
		t.Fatalf("分类/年份不符：%q %d", r.MovieClass, r.Year)
	}
	if r.Rating != 8.2 {
		t.Fatalf("超过 10 的评分应除以 10：%v", r.Rating)
	}
}

func TestExtract_RatingFallbackAlwaysDivides(t *testing.T) {
	html := `<html><body><div class="metacriticScore score_favorable"><span>73</span></div></body></html>`
	r, _, err := Extract([]byte(html))
	if err != nil {
		t.Fatalf("Extract 失败：%v", err)
	}
	if r.Rating != 7.3 {
		t.Fatalf("聚合评分应恒除以 10：%v", r.Rating)
	}
}

func TestExtract_SummaryMetaFallback(t *testing.T) {
	html := `<html><head>
<title>Some Film (2014) - IMDb</title>
<meta name="description" content="Short description from meta tag.">
</head><body></body></html>`
	r, _, err := Extract([]byte(html))
	if err != nil {
		t.Fatalf("Extract 失败：%v", err)
	}
	if r.Summary != "Short description from meta tag." {
		t.Fatalf("无 summary 块时应回退 meta description：%q", r.Summary)
	}
}

func TestExtract_YearBackfilledFromRelease(t *testing.T) {
	html := `<html><head><title>Untitled Project - IMDb</title></head><body>
<a href="/title/tt1/releaseinfo">18 July 2006 (USA)</a>
<a href="/title/tt1/releaseinfo">5 January 2007 (UK)</a>
</body></html>`
	r, _, err := Extract([]byte(html))
	if err != nil {
		t.Fatalf("Extract 失败：%v", err)
	}
	if r.ReleaseDate != "2006-07-18" {
		t.Fatalf("应取最早的可解析日期：%q", r.ReleaseDate)
	}
	if r.Year != 2006 {
		t.Fatalf("标题里没有年份时应用上映日期回填：%d", r.Year)
	}
}

func TestNormalizeTitle(t *testing.T) {
	cases := []struct{ in, want string }{
		{`"Eureka" Pilot`, "Eureka" + EpisodeSeparator + "Pilot"},
		{"“Eureka” Pilot", "Eureka" + EpisodeSeparator + "Pilot"},
		{"The Matrix", "The Matrix"},
		{"Don’t Look Up", "Don't Look Up"},
	}
	for _, c := range cases {
		if got := normalizeTitle(c.in); got != c.want {
			t.Fatalf("normalizeTitle(%q) = %q，期望 %q", c.in, got, c.want)
		}
	}
}
