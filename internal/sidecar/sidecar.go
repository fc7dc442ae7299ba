package sidecar

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/VLIB/internal/domain"
	"github.com/John-Robertt/VLIB/internal/infra/fsx"
)

// sidecar 是每个条目目录下的结构化元数据文件（<externalID>.xml）。
//
// 约束：
// - 字段与 domain.MetadataRecord 一一对应（读写双方共享该结构）
// - 只在“新建”或“语义变化”时落盘（Save 返回 wrote=false 表示内容未变）
// - 写入必须原子（临时文件 + rename），绝不留半个 sidecar

// FileName 返回外部 id 对应的 sidecar 文件名。
func FileName(id string) string { return id + ".xml" }

type record struct {
	XMLName xml.Name `xml:"movie"`

	Title      string  `xml:"title"`
	Year       int     `xml:"year,omitempty"`
	YearEnd    int     `xml:"yearend,omitempty"`
	MovieClass string  `xml:"class,omitempty"`
	Release    string  `xml:"release,omitempty"`
	Rating     float64 `xml:"rating,omitempty"`

	Plot    string `xml:"plot,omitempty"`
	Summary string `xml:"summary,omitempty"`

	Genres []string `xml:"genre,omitempty"`

	Creators  string `xml:"creators,omitempty"`
	Directors string `xml:"directors,omitempty"`
	Writers   string `xml:"writers,omitempty"`
	Cast      string `xml:"cast,omitempty"`

	Season       int `xml:"season,omitempty"`
	Episode      int `xml:"episode,omitempty"`
	EpisodeCount int `xml:"episodecount,omitempty"`

	PosterURL string `xml:"posterurl,omitempty"`

	DownloadUnix   int64  `xml:"downloaddate,omitempty"`
	RuntimeMinutes int    `xml:"runtime,omitempty"`
	DisplayWidth   int    `xml:"displaywidth,omitempty"`
	DisplayHeight  int    `xml:"displayheight,omitempty"`
	DisplayRatio   string `xml:"displayratio,omitempty"`
	WatchedUnix    int64  `xml:"watcheddate,omitempty"`
}

func toXML(m domain.MetadataRecord) record {
	return record{
		Title:          strings.TrimSpace(m.Title),
		Year:           m.Year,
		YearEnd:        m.YearEnd,
		MovieClass:     m.MovieClass,
		Release:        m.ReleaseDate,
		Rating:         m.Rating,
		Plot:           m.Plot,
		Summary:        m.Summary,
		Genres:         m.Genres,
		Creators:       m.Creators,
		Directors:      m.Directors,
		Writers:        m.Writers,
		Cast:           m.Cast,
		Season:         m.Season,
		Episode:        m.Episode,
		EpisodeCount:   m.EpisodeCount,
		PosterURL:      m.PosterURL,
		DownloadUnix:   m.DownloadUnix,
		RuntimeMinutes: m.RuntimeMinutes,
		DisplayWidth:   m.DisplayWidth,
		DisplayHeight:  m.DisplayHeight,
		DisplayRatio:   m.DisplayRatio,
		WatchedUnix:    m.WatchedUnix,
	}
}

func fromXML(r record) domain.MetadataRecord {
	return domain.MetadataRecord{
		Title:          r.Title,
		Year:           r.Year,
		YearEnd:        r.YearEnd,
		MovieClass:     r.MovieClass,
		ReleaseDate:    r.Release,
		Rating:         r.Rating,
		Plot:           r.Plot,
		Summary:        r.Summary,
		Genres:         r.Genres,
		Creators:       r.Creators,
		Directors:      r.Directors,
		Writers:        r.Writers,
		Cast:           r.Cast,
		Season:         r.Season,
		Episode:        r.Episode,
		EpisodeCount:   r.EpisodeCount,
		PosterURL:      r.PosterURL,
		DownloadUnix:   r.DownloadUnix,
		RuntimeMinutes: r.RuntimeMinutes,
		DisplayWidth:   r.DisplayWidth,
		DisplayHeight:  r.DisplayHeight,
		DisplayRatio:   r.DisplayRatio,
		WatchedUnix:    r.WatchedUnix,
	}
}

// Encode 把 MetadataRecord 序列化为稳定的 XML 字节。
func Encode(m domain.MetadataRecord) ([]byte, error) {
	b, err := xml.MarshalIndent(toXML(m), "", "  ")
	if err != nil {
		return nil, err
	}
	// 约定：输出带 standalone="yes" 的 XML 头，便于与常见刮削器产物兼容。
	const header = `<?xml version="1.0" encoding="UTF-8" standalone="yes" ?>` + "\n"
	return append([]byte(header), append(b, '\n')...), nil
}

// Decode 解析 sidecar 字节。
func Decode(b []byte) (domain.MetadataRecord, error) {
	var r record
	if err := xml.Unmarshal(b, &r); err != nil {
		return domain.MetadataRecord{}, err
	}
	return fromXML(r), nil
}

// Load 读取 dir 下外部 id 的 sidecar；不存在返回 ok=false（不算错误）。
func Load(dir, id string) (domain.MetadataRecord, bool, error) {
	b, err := os.ReadFile(filepath.Join(dir, FileName(id)))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.MetadataRecord{}, false, nil
		}
		return domain.MetadataRecord{}, false, err
	}
	m, err := Decode(b)
	if err != nil {
		return domain.MetadataRecord{}, false, err
	}
	return m, true, nil
}

// Save 只在“新建或语义变化”时写盘；返回 wrote=false 表示磁盘内容已是最新。
func Save(dir, id string, m domain.MetadataRecord) (wrote bool, err error) {
	if old, ok, err := Load(dir, id); err == nil && ok && old.Equal(m) {
		return false, nil
	}
	// 读不出来（损坏/缺失）或内容有变：整体重写。
	b, err := Encode(m)
	if err != nil {
		return false, err
	}
	if err := fsx.WriteFileAtomicReplace(dir, FileName(id), b); err != nil {
		return false, err
	}
	return true, nil
}
