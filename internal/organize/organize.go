package organize

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/John-Robertt/VLIB/internal/domain"
	"github.com/John-Robertt/VLIB/internal/infra/fsx"
	"github.com/John-Robertt/VLIB/internal/shortcut"
)

// 目录整理是一台四条终态转移的小状态机：
// (movie | episode) × (根目录直属 | 已在子目录)。
//
// 幂等保证：
// - 每次 shortcut 写入前都有存在性检查（fsx 的 no-overwrite 写）
// - 每次目录重命名前都有“目标不存在”检查
// 对已整理好的树再跑一遍：零变更、零错误。

// Op 是一次具体的文件系统变更类型。
type Op string

const (
	OpMkdir    Op = "mkdir"
	OpMove     Op = "move"
	OpRename   Op = "rename"
	OpShortcut Op = "shortcut"
)

// Mutation 是一次已执行（apply）或已计划（dry-run）的变更。
type Mutation struct {
	Op   Op
	Path string // 变更后的目标路径
}

// Result 描述整理后的条目位置。
type Result struct {
	// EntityDir 是持有 sidecar/海报的条目目录：
	// 电影是影片目录本身，单集是 SxxEyy 子目录。
	EntityDir string
	// HeaderDir 仅剧集有效：剧集头目录。
	HeaderDir string
	// VideoPath 是视频文件的最终位置。
	VideoPath string

	Mutations []Mutation
}

// TargetConflictError 表示重命名目标已被一个不相干的目录占用。
// 绝不覆盖/合并，该条目作为失败上报，由用户裁决。
type TargetConflictError struct {
	From string
	To   string
}

func (e *TargetConflictError) Error() string {
	return fmt.Sprintf("重命名目标已存在：%s -> %s", e.From, e.To)
}

// Reorganizer 把已确认身份的视频文件归位到规范目录结构。
// Apply=false 时只计算变更（dry-run），不碰文件系统。
type Reorganizer struct {
	Root    string
	BaseURL string // shortcut 指向的外部站点域名
	Apply   bool
}

// Reorganize 执行（或演练）一次整理。file 必须已通过身份解析。
func (r *Reorganizer) Reorganize(file domain.VideoFile, id *domain.Identity) (Result, error) {
	if id.IsEpisode() {
		if file.AtRoot {
			return r.episodeAtRoot(file, id)
		}
		return r.episodeInSubfolder(file, id)
	}
	if file.AtRoot {
		return r.movieAtRoot(file, id)
	}
	return r.movieInSubfolder(file, id)
}

func (r *Reorganizer) movieAtRoot(file domain.VideoFile, id *domain.Identity) (Result, error) {
	res := Result{}
	dst := filepath.Join(r.Root, id.FolderName)

	if err := r.ensureDir(&res, dst); err != nil {
		return res, err
	}
	if err := r.moveFile(&res, file.AbsPath, filepath.Join(dst, filepath.Base(file.AbsPath))); err != nil {
		return res, err
	}
	if err := r.writeShortcut(&res, dst, id.MovieName, id.ExternalID); err != nil {
		return res, err
	}

	res.EntityDir = dst
	return res, nil
}

func (r *Reorganizer) movieInSubfolder(file domain.VideoFile, id *domain.Identity) (Result, error) {
	res := Result{}
	cur := filepath.Dir(file.AbsPath)

	if err := r.writeShortcut(&res, cur, id.MovieName, id.ExternalID); err != nil {
		return res, err
	}

	dir := cur
	if filepath.Base(cur) != id.FolderName {
		target := filepath.Join(filepath.Dir(cur), id.FolderName)
		renamed, err := r.renameDir(&res, cur, target)
		if err != nil {
			return res, err
		}
		if !renamed {
			// 电影目录绝不合并：目标被占用即冲突。
			return res, &TargetConflictError{From: cur, To: target}
		}
		dir = target
	}

	res.EntityDir = dir
	res.VideoPath = filepath.Join(dir, filepath.Base(file.AbsPath))
	return res, nil
}

func (r *Reorganizer) episodeAtRoot(file domain.VideoFile, id *domain.Identity) (Result, error) {
	res := Result{}
	header := filepath.Join(r.Root, id.FolderName)
	sub := filepath.Join(header, id.SeriesCode)

	if err := r.ensureDir(&res, header); err != nil {
		return res, err
	}
	if err := r.ensureDir(&res, sub); err != nil {
		return res, err
	}
	if err := r.writeShortcut(&res, header, id.MovieName, id.ExternalID); err != nil {
		return res, err
	}
	if err := r.writeShortcut(&res, sub, episodeName(id), id.SeriesExternalID); err != nil {
		return res, err
	}
	if err := r.moveFile(&res, file.AbsPath, filepath.Join(sub, filepath.Base(file.AbsPath))); err != nil {
		return res, err
	}

	res.HeaderDir = header
	res.EntityDir = sub
	return res, nil
}

func (r *Reorganizer) episodeInSubfolder(file domain.VideoFile, id *domain.Identity) (Result, error) {
	res := Result{}
	cur := filepath.Dir(file.AbsPath)

	// 已就位：文件在 <folderName>/<SxxEyy>/ 里，只需补齐缺失的 shortcut。
	if filepath.Base(cur) == id.SeriesCode && filepath.Base(filepath.Dir(cur)) == id.FolderName {
		header := filepath.Dir(cur)
		if err := r.writeShortcut(&res, header, id.MovieName, id.ExternalID); err != nil {
			return res, err
		}
		if err := r.writeShortcut(&res, cur, episodeName(id), id.SeriesExternalID); err != nil {
			return res, err
		}
		res.HeaderDir = header
		res.EntityDir = cur
		res.VideoPath = file.AbsPath
		return res, nil
	}

	header := cur
	movedWithDir := false
	if filepath.Base(cur) != id.FolderName {
		target := filepath.Join(filepath.Dir(cur), id.FolderName)
		renamed, err := r.renameDir(&res, cur, target)
		if err != nil {
			return res, err
		}
		// 目标已存在时不是冲突：同一部剧的散装目录合并进既有剧集头。
		header = target
		movedWithDir = renamed && r.Apply
	}

	sub := filepath.Join(header, id.SeriesCode)
	if err := r.ensureDir(&res, sub); err != nil {
		return res, err
	}
	if err := r.writeShortcut(&res, header, id.MovieName, id.ExternalID); err != nil {
		return res, err
	}
	if err := r.writeShortcut(&res, sub, episodeName(id), id.SeriesExternalID); err != nil {
		return res, err
	}

	src := file.AbsPath
	if movedWithDir {
		// 目录已重命名，文件跟着新路径走。
		src = filepath.Join(header, filepath.Base(file.AbsPath))
	}
	if err := r.moveFile(&res, src, filepath.Join(sub, filepath.Base(file.AbsPath))); err != nil {
		return res, err
	}

	res.HeaderDir = header
	res.EntityDir = sub
	return res, nil
}

func episodeName(id *domain.Identity) string {
	return id.MovieName + " " + id.SeriesCode
}

func (r *Reorganizer) ensureDir(res *Result, dir string) error {
	if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
		return nil
	}
	res.Mutations = append(res.Mutations, Mutation{Op: OpMkdir, Path: dir})
	if !r.Apply {
		return nil
	}
	return fsx.EnsureDir(dir)
}

func (r *Reorganizer) moveFile(res *Result, src, dst string) error {
	if src == dst {
		res.VideoPath = dst
		return nil
	}
	if _, err := os.Lstat(dst); err == nil {
		return &TargetConflictError{From: src, To: dst}
	}
	res.Mutations = append(res.Mutations, Mutation{Op: OpMove, Path: dst})
	res.VideoPath = dst
	if !r.Apply {
		return nil
	}
	return fsx.RenameNoReplace(src, dst)
}

// renameDir 重命名目录；目标已存在时返回 renamed=false（由调用方决定是冲突还是合并）。
func (r *Reorganizer) renameDir(res *Result, from, to string) (bool, error) {
	if _, err := os.Lstat(to); err == nil {
		return false, nil
	}
	res.Mutations = append(res.Mutations, Mutation{Op: OpRename, Path: to})
	if !r.Apply {
		return true, nil
	}
	if err := fsx.RenameNoReplace(from, to); err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *Reorganizer) writeShortcut(res *Result, dir, name, id string) error {
	path := filepath.Join(dir, domain.SanitizeName(name)+shortcut.Ext)
	if _, err := os.Lstat(path); err == nil {
		return nil
	}
	res.Mutations = append(res.Mutations, Mutation{Op: OpShortcut, Path: path})
	if !r.Apply {
		return nil
	}
	_, err := shortcut.Write(dir, name, r.BaseURL, id)
	return err
}
