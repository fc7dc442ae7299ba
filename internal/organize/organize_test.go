package organize

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/VLIB/internal/domain"
	"github.com/John-Robertt/VLIB/internal/shortcut"
)

func movieIdentity() *domain.Identity {
	return &domain.Identity{
		MovieName:  "The Matrix (1999)",
		FolderName: "Matrix, The (1999)",
		ExternalID: "tt0133093",
	}
}

func episodeIdentity() *domain.Identity {
	return &domain.Identity{
		MovieName:        "Eureka (2006–2012)",
		FolderName:       "Eureka (2006–2012)",
		ExternalID:       "tt0796264",
		SeriesCode:       "S01E01",
		SeriesExternalID: "tt0796369",
	}
}

func videoAt(root, rel string) domain.VideoFile {
	return domain.VideoFile{
		AbsPath: filepath.Join(root, rel),
		RelPath: rel,
		Base:    "x",
		Ext:     filepath.Ext(rel),
		AtRoot:  !containsSep(rel),
	}
}

func containsSep(rel string) bool {
	return filepath.Dir(rel) != "."
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte("v"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}

func assertExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("期望存在：%s（%v）", path, err)
	}
}

func TestMovieAtRoot(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "The.Matrix.1999.mkv"))

	r := &Reorganizer{Root: root, Apply: true}
	res, err := r.Reorganize(videoAt(root, "The.Matrix.1999.mkv"), movieIdentity())
	if err != nil {
		t.Fatalf("整理失败：%v", err)
	}

	dir := filepath.Join(root, "Matrix, The (1999)")
	assertExists(t, filepath.Join(dir, "The.Matrix.1999.mkv"))
	assertExists(t, filepath.Join(dir, "The Matrix (1999).url"))
	if res.EntityDir != dir {
		t.Fatalf("EntityDir 不符：%q", res.EntityDir)
	}

	scs, err := shortcut.ScanDir(dir)
	if err != nil || len(scs) != 1 || scs[0].ID != "tt0133093" {
		t.Fatalf("shortcut 不符：%v %v", scs, err)
	}
}

func TestMovieInSubfolder_Rename(t *testing.T) {
	root := t.TempDir()
	rel := filepath.Join("The Matrix 1080p", "The.Matrix.1999.mkv")
	touch(t, filepath.Join(root, rel))

	r := &Reorganizer{Root: root, Apply: true}
	res, err := r.Reorganize(videoAt(root, rel), movieIdentity())
	if err != nil {
		t.Fatalf("整理失败：%v", err)
	}

	dir := filepath.Join(root, "Matrix, The (1999)")
	assertExists(t, filepath.Join(dir, "The.Matrix.1999.mkv"))
	assertExists(t, filepath.Join(dir, "The Matrix (1999).url"))
	if _, err := os.Stat(filepath.Join(root, "The Matrix 1080p")); !os.IsNotExist(err) {
		t.Fatal("原目录应已被重命名")
	}
	if res.VideoPath != filepath.Join(dir, "The.Matrix.1999.mkv") {
		t.Fatalf("VideoPath 不符：%q", res.VideoPath)
	}
}

func TestMovieInSubfolder_TargetConflict(t *testing.T) {
	root := t.TempDir()
	rel := filepath.Join("matrix-rip", "The.Matrix.1999.mkv")
	touch(t, filepath.Join(root, rel))
	// 目标目录已被别的内容占用。
	touch(t, filepath.Join(root, "Matrix, The (1999)", "other.mkv"))

	r := &Reorganizer{Root: root, Apply: true}
	_, err := r.Reorganize(videoAt(root, rel), movieIdentity())
	var tc *TargetConflictError
	if !errors.As(err, &tc) {
		t.Fatalf("期望 TargetConflictError，实际 %v", err)
	}
	// 绝不合并：原目录原样保留。
	assertExists(t, filepath.Join(root, rel))
}

func TestEpisodeAtRoot(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "Eureka.S01E01.720p.mkv"))

	r := &Reorganizer{Root: root, Apply: true}
	res, err := r.Reorganize(videoAt(root, "Eureka.S01E01.720p.mkv"), episodeIdentity())
	if err != nil {
		t.Fatalf("整理失败：%v", err)
	}

	header := filepath.Join(root, "Eureka (2006–2012)")
	sub := filepath.Join(header, "S01E01")
	assertExists(t, filepath.Join(sub, "Eureka.S01E01.720p.mkv"))

	hs, _ := shortcut.ScanDir(header)
	if len(hs) != 1 || hs[0].ID != "tt0796264" {
		t.Fatalf("剧集头 shortcut 不符：%v", hs)
	}
	es, _ := shortcut.ScanDir(sub)
	if len(es) != 1 || es[0].ID != "tt0796369" {
		t.Fatalf("单集 shortcut 不符：%v", es)
	}
	if res.HeaderDir != header || res.EntityDir != sub {
		t.Fatalf("目录结果不符：%+v", res)
	}
}

func TestEpisodeInSubfolder_MergesIntoExistingHeader(t *testing.T) {
	root := t.TempDir()
	header := filepath.Join(root, "Eureka (2006–2012)")

	// 先整理出一个剧集头。
	touch(t, filepath.Join(root, "Eureka.S01E01.720p.mkv"))
	r := &Reorganizer{Root: root, Apply: true}
	if _, err := r.Reorganize(videoAt(root, "Eureka.S01E01.720p.mkv"), episodeIdentity()); err != nil {
		t.Fatalf("首次整理失败：%v", err)
	}

	// 另一个散装目录里的第二集：合并进既有剧集头，不报冲突。
	rel := filepath.Join("eureka-s01e02-rip", "Eureka.S01E02.mkv")
	touch(t, filepath.Join(root, rel))
	id2 := episodeIdentity()
	id2.SeriesCode = "S01E02"
	id2.SeriesExternalID = "tt0821377"

	res, err := r.Reorganize(videoAt(root, rel), id2)
	if err != nil {
		t.Fatalf("合并整理失败：%v", err)
	}
	assertExists(t, filepath.Join(header, "S01E02", "Eureka.S01E02.mkv"))
	if res.HeaderDir != header {
		t.Fatalf("应合并进既有剧集头：%q", res.HeaderDir)
	}
}

func TestReorganize_Idempotent(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "Eureka.S01E01.720p.mkv"))

	r := &Reorganizer{Root: root, Apply: true}
	first, err := r.Reorganize(videoAt(root, "Eureka.S01E01.720p.mkv"), episodeIdentity())
	if err != nil {
		t.Fatalf("首次整理失败：%v", err)
	}
	if len(first.Mutations) == 0 {
		t.Fatal("首次整理应产生变更")
	}

	// 第二遍：文件已在 SxxEyy 子目录里。
	rel := filepath.Join("Eureka (2006–2012)", "S01E01", "Eureka.S01E01.720p.mkv")
	second, err := r.Reorganize(videoAt(root, rel), episodeIdentity())
	if err != nil {
		t.Fatalf("第二遍不应报错：%v", err)
	}
	if len(second.Mutations) != 0 {
		t.Fatalf("第二遍应零变更，实际 %v", second.Mutations)
	}
}

func TestReorganize_DryRunTouchesNothing(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "Eureka.S01E01.720p.mkv"))

	r := &Reorganizer{Root: root, Apply: false}
	res, err := r.Reorganize(videoAt(root, "Eureka.S01E01.720p.mkv"), episodeIdentity())
	if err != nil {
		t.Fatalf("dry-run 失败：%v", err)
	}
	if len(res.Mutations) == 0 {
		t.Fatal("dry-run 应报告计划中的变更")
	}

	// 文件系统原封不动。
	assertExists(t, filepath.Join(root, "Eureka.S01E01.720p.mkv"))
	if _, err := os.Stat(filepath.Join(root, "Eureka (2006–2012)")); !os.IsNotExist(err) {
		t.Fatal("dry-run 不应创建目录")
	}
}
