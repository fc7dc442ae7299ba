package domain

import "testing"

func TestSortableName_ArticleMoved(t *testing.T) {
	cases := map[string]string{
		"The Matrix (1999)":    "Matrix, The (1999)",
		"A Bug's Life (1998)":  "Bug's Life, A (1998)",
		"Eureka (2006–2012)":   "Eureka (2006–2012)",
		"Them (2021)":          "Them (2021)", // "The" 必须是独立单词
		"the martian (2015)":   "martian, the (2015)",
		"Avatar":               "Avatar",
		"The Wire":             "Wire, The",
	}
	for in, want := range cases {
		if got := SortableName(in); got != want {
			t.Fatalf("SortableName(%q)：期望 %q，实际 %q", in, want, got)
		}
	}
}

func TestSanitizeName(t *testing.T) {
	if got := SanitizeName(`M*A*S*H: the movie?`); got != "M_A_S_H_ the movie_" {
		t.Fatalf("非法字符未替换为下划线：%q", got)
	}
	if got := SanitizeName("  Eureka  "); got != "Eureka" {
		t.Fatalf("首尾空白未去除：%q", got)
	}
}

func TestParseExternalID(t *testing.T) {
	if _, ok := ParseExternalID("tt0796366"); !ok {
		t.Fatalf("合法 id 被拒绝")
	}
	for _, bad := range []string{"", "tt", "nm0000123", "tt12ab", " tt123x"} {
		if _, ok := ParseExternalID(bad); ok {
			t.Fatalf("非法 id 被接受：%q", bad)
		}
	}
}

func TestRawTitle_SeriesCode(t *testing.T) {
	e := RawTitle{Name: "Eureka", Kind: KindEpisode, Season: 1, Episode: 2}
	if got := e.SeriesCode(); got != "S01E02" {
		t.Fatalf("期望 S01E02，实际 %q", got)
	}
	m := RawTitle{Name: "Avatar", Kind: KindMovie, Year: 2009}
	if got := m.SeriesCode(); got != "" {
		t.Fatalf("movie 不应有 SeriesCode：%q", got)
	}
}
