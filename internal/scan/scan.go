package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/VLIB/internal/domain"
	"github.com/John-Robertt/VLIB/internal/shortcut"
)

// ScanVideos 扫描 root 下的视频文件，并应用目录排除规则。
//
// 规则（硬约束）：
// - 永久排除：<root>/cache/（页面缓存目录，不属于影片树）
// - excludeDirs：来自配置文件，均视为相对 root 的路径（若是绝对路径，则按绝对路径处理）
//
// 注意：扫描阶段只做 stat（DirEntry.Info），不读文件内容。
func ScanVideos(root string, excludeDirs []string) ([]domain.VideoFile, error) {
	root = filepath.Clean(root)
	excluded := buildExcluded(root, excludeDirs)

	files := make([]domain.VideoFile, 0, 128)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		// 统一的排除判断：目录用 SkipDir，文件则直接跳过。
		if isExcluded(path, excluded) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		name := d.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if !isVideoExt(ext) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		files = append(files, domain.VideoFile{
			AbsPath: path,
			RelPath: rel,
			Base:    strings.TrimSuffix(name, filepath.Ext(name)),
			Ext:     ext,
			Size:    info.Size(),
			ModUnix: info.ModTime().Unix(),
			AtRoot:  !strings.ContainsRune(rel, filepath.Separator),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

func isVideoExt(ext string) bool {
	switch ext {
	case ".mp4", ".mkv", ".avi", ".mov", ".wmv", ".m4v", ".mpg", ".mpeg", ".webm":
		return true
	default:
		return false
	}
}

// AmbiguousStateError 表示一个条目目录的本地状态无法自动裁决：
// 多个被识别的 shortcut 或多个视频文件。只对该条目致命，需要用户手工清理。
type AmbiguousStateError struct {
	Dir       string
	Videos    int
	Shortcuts int
}

func (e *AmbiguousStateError) Error() string {
	return fmt.Sprintf("目录本地状态不明确：%s（视频 %d 个，shortcut %d 个）", e.Dir, e.Videos, e.Shortcuts)
}

// State 是单个条目目录的本地状态快照。
type State struct {
	Dir      string
	Videos   []string        // 目录直属的视频文件名（不递归）
	Shortcut *shortcut.Entry // 至多一个；nil 表示该目录还没确认身份
}

// Inspect 检查 dir 的直接内容：收集视频文件与被识别的 shortcut。
// 其中任一多于一个 => AmbiguousStateError。
func Inspect(dir string) (State, error) {
	st := State{Dir: dir}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return State{}, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if isVideoExt(strings.ToLower(filepath.Ext(e.Name()))) {
			st.Videos = append(st.Videos, e.Name())
		}
	}
	sort.Strings(st.Videos)

	scs, err := shortcut.ScanDir(dir)
	if err != nil {
		return State{}, err
	}

	if len(st.Videos) > 1 || len(scs) > 1 {
		return State{}, &AmbiguousStateError{Dir: dir, Videos: len(st.Videos), Shortcuts: len(scs)}
	}
	if len(scs) == 1 {
		st.Shortcut = &scs[0]
	}
	return st, nil
}

func buildExcluded(root string, excludeDirs []string) []string {
	cacheDir := filepath.Join(root, "cache")

	excluded := make([]string, 0, 1+len(excludeDirs))
	excluded = append(excluded, filepath.Clean(cacheDir))

	for _, x := range excludeDirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if filepath.IsAbs(x) {
			excluded = append(excluded, filepath.Clean(x))
			continue
		}
		// x 是相对路径：相对 root。
		excluded = append(excluded, filepath.Clean(filepath.Join(root, x)))
	}

	// 排除列表排序后，isExcluded 的行为更可预测（且便于测试）。
	sort.Strings(excluded)
	return excluded
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	for _, base := range excluded {
		if isUnder(path, base) {
			return true
		}
	}
	return false
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(path, base+sep)
}
