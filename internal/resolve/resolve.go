package resolve

import (
	"context"
	"fmt"

	"github.com/John-Robertt/VLIB/internal/domain"
	"github.com/John-Robertt/VLIB/internal/imdb"
)

// Searcher 是外部搜索协作方的最小接口（imdb.Client 实现它）。
// Resolver 只依赖这两个形状，测试注入假实现统计调用次数。
type Searcher interface {
	SearchTitle(ctx context.Context, query string, kind domain.TitleKind) ([]imdb.SearchRow, error)
	EpisodeList(ctx context.Context, seriesID string, season int) ([]imdb.EpisodeRow, error)
}

// NotFoundError 表示外部搜索没有返回可用的结果行。
// 上层据此归类为 lookup_not_found；剧集会同时写负缓存，电影不会。
type NotFoundError struct {
	Query      string
	SeriesCode string // 非空时表示“剧集找到了，但该季没有这一集”
}

func (e *NotFoundError) Error() string {
	if e.SeriesCode != "" {
		return fmt.Sprintf("剧集 %q 没有 %s 对应的单集", e.Query, e.SeriesCode)
	}
	return fmt.Sprintf("搜索无结果：%q", e.Query)
}

// Resolver 把 RawTitle 解析成确认过的 Identity。
//
// 约束：
// - 同一个规范化剧名在一次运行内最多发起一次“剧集头”搜索
// - 解析失败返回 (nil, err)，绝不 panic；err 由上层转成状态事件
// - Cache 只被当前这一次解析访问（整树处理是串行的，无需加锁）
type Resolver struct {
	Search Searcher
	Cache  *Cache
}

func (r *Resolver) Resolve(ctx context.Context, t domain.RawTitle) (*domain.Identity, error) {
	switch t.Kind {
	case domain.KindEpisode:
		return r.resolveEpisode(ctx, t)
	case domain.KindMovie:
		return r.resolveMovie(ctx, t)
	default:
		return nil, fmt.Errorf("未知标题类型：%q", t.Kind)
	}
}

func (r *Resolver) resolveEpisode(ctx context.Context, t domain.RawTitle) (*domain.Identity, error) {
	key := Key(t.Name)
	code := t.SeriesCode()

	// 负缓存短路：同一部剧之前已经搜过且没找到，不再打扰外部站点。
	if r.Cache.IsNegative(key) {
		return nil, &NotFoundError{Query: t.Name}
	}

	if epID, ok := r.Cache.Get(key + "." + code); ok {
		return r.identityFromCache(key, code, epID)
	}

	if _, ok := r.Cache.Get(key); !ok {
		if err := r.searchSeries(ctx, t, key); err != nil {
			return nil, err
		}
	}

	seriesID, _ := r.Cache.Get(key)
	eps, err := r.Search.EpisodeList(ctx, seriesID, t.Season)
	if err != nil {
		return nil, err
	}
	for _, ep := range eps {
		r.Cache.Put(fmt.Sprintf("%s.S%02dE%02d", key, ep.Season, ep.Episode), ep.ID)
	}

	epID, ok := r.Cache.Get(key + "." + code)
	if !ok {
		return nil, &NotFoundError{Query: t.Name, SeriesCode: code}
	}
	return r.identityFromCache(key, code, epID)
}

// searchSeries 发起剧集头搜索并填充 name / FOLDERNAME / MOVIENAME 三个键。
// 无结果时写负缓存，保证同剧后续单集直接短路。
func (r *Resolver) searchSeries(ctx context.Context, t domain.RawTitle, key string) error {
	rows, err := r.Search.SearchTitle(ctx, t.Name, domain.KindEpisode)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		r.Cache.PutNegative(key)
		return &NotFoundError{Query: t.Name}
	}

	// 站点按匹配度排序，首行即最优，不做二次评分。
	row := rows[0]
	movieName := domain.SanitizeName(displayName(row))
	r.Cache.Put(key, row.ID)
	r.Cache.Put(key+".MOVIENAME", movieName)
	r.Cache.Put(key+".FOLDERNAME", domain.SortableName(movieName))
	return nil
}

func (r *Resolver) identityFromCache(key, code, epID string) (*domain.Identity, error) {
	seriesID, ok := r.Cache.Get(key)
	if !ok {
		return nil, fmt.Errorf("缓存不一致：缺少剧集头 id（%s）", key)
	}
	movieName, _ := r.Cache.Get(key + ".MOVIENAME")
	folderName, _ := r.Cache.Get(key + ".FOLDERNAME")
	return &domain.Identity{
		MovieName:        movieName,
		FolderName:       folderName,
		ExternalID:       seriesID,
		SeriesCode:       code,
		SeriesExternalID: epID,
	}, nil
}

func (r *Resolver) resolveMovie(ctx context.Context, t domain.RawTitle) (*domain.Identity, error) {
	query := fmt.Sprintf("%s (%d)", t.Name, t.Year)
	rows, err := r.Search.SearchTitle(ctx, query, domain.KindMovie)
	if err != nil {
		return nil, err
	}
	// 电影查询失败不写负缓存：文件名各不相同，命中重复查询的概率可忽略。
	if len(rows) == 0 {
		return nil, &NotFoundError{Query: query}
	}

	row := rows[0]
	if row.Year == 0 {
		row.Year = t.Year
	}
	movieName := domain.SanitizeName(displayName(row))
	return &domain.Identity{
		MovieName:  movieName,
		FolderName: domain.SortableName(movieName),
		ExternalID: row.ID,
	}, nil
}

// displayName 组装展示名："Title (2006)" 或区间形态 "Title (2006–2012)"。
func displayName(row imdb.SearchRow) string {
	switch {
	case row.Year > 0 && row.YearEnd > 0:
		return fmt.Sprintf("%s (%d–%d)", row.Title, row.Year, row.YearEnd)
	case row.Year > 0:
		return fmt.Sprintf("%s (%d)", row.Title, row.Year)
	default:
		return row.Title
	}
}
