package domain

import "fmt"

// TitleKind 区分两类输入：正片电影与剧集单集。
type TitleKind string

const (
	KindMovie   TitleKind = "movie"
	KindEpisode TitleKind = "episode"
)

// RawTitle 是从文件名解析出的候选标题（短暂存在，仅用于 resolve 输入）。
//
// 不变量：year 与 (season, episode) 恰好一个有效：
// - Kind==KindMovie   => Year > 0，Season/Episode == 0
// - Kind==KindEpisode => Season/Episode > 0，Year == 0
type RawTitle struct {
	Name string
	Kind TitleKind

	Year int // 仅 movie

	Season  int // 仅 episode
	Episode int // 仅 episode
}

// SeriesCode 返回规范化的集号（形如 S01E02）。仅对 episode 有意义。
func (t RawTitle) SeriesCode() string {
	if t.Kind != KindEpisode {
		return ""
	}
	return fmt.Sprintf("S%02dE%02d", t.Season, t.Episode)
}
