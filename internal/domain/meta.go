package domain

// DefaultMovieClass 是未标注类型时的默认分类。
const DefaultMovieClass = "Feature Movie"

// MetadataRecord 是从外部数据库页面解析 + 本地探测得到的结构化元数据。
//
// 约束：
// - 字段缺失允许为零值，但结构必须稳定（sidecar 的读写双方共享该结构）
// - EpisodeCount > 0 表示“剧集头条目”（本身没有视频文件）
// - Season > 0 表示单集
// - WatchedUnix == 0 表示“未看过”
type MetadataRecord struct {
	Title      string
	Year       int
	YearEnd    int // 0 = 连载中/单年
	MovieClass string

	ReleaseDate string  // ISO date, e.g. "2006-07-18"
	Rating      float64 // 0.0–10.0；0.0 = 无评分

	Plot    string // 长简介（Storyline）
	Summary string // 短简介

	Genres []string

	// 人员列表：去重后用 ", " 连接（保持首见顺序）。
	Creators  string
	Directors string
	Writers   string
	Cast      string

	Season       int
	Episode      int
	EpisodeCount int

	PosterURL string

	// 本地观测属性（不来自外部页面）。
	DownloadUnix   int64
	RuntimeMinutes int
	DisplayWidth   int
	DisplayHeight  int
	DisplayRatio   string // 最接近的标准画幅标签，例如 "16:9"
	WatchedUnix    int64
}

// Equal 做语义层面的逐字段比较（sidecar 只在“脏”时重写）。
func (r MetadataRecord) Equal(o MetadataRecord) bool {
	if r.Title != o.Title || r.Year != o.Year || r.YearEnd != o.YearEnd ||
		r.MovieClass != o.MovieClass || r.ReleaseDate != o.ReleaseDate ||
		r.Rating != o.Rating || r.Plot != o.Plot || r.Summary != o.Summary ||
		r.Creators != o.Creators || r.Directors != o.Directors ||
		r.Writers != o.Writers || r.Cast != o.Cast ||
		r.Season != o.Season || r.Episode != o.Episode || r.EpisodeCount != o.EpisodeCount ||
		r.PosterURL != o.PosterURL ||
		r.DownloadUnix != o.DownloadUnix || r.RuntimeMinutes != o.RuntimeMinutes ||
		r.DisplayWidth != o.DisplayWidth || r.DisplayHeight != o.DisplayHeight ||
		r.DisplayRatio != o.DisplayRatio || r.WatchedUnix != o.WatchedUnix {
		return false
	}
	if len(r.Genres) != len(o.Genres) {
		return false
	}
	for i := range r.Genres {
		if r.Genres[i] != o.Genres[i] {
			return false
		}
	}
	return true
}
