package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/VLIB/internal/config"
	"github.com/John-Robertt/VLIB/internal/domain"
	"github.com/John-Robertt/VLIB/internal/imdb"
	"github.com/John-Robertt/VLIB/internal/infra/cache"
	"github.com/John-Robertt/VLIB/internal/infra/fsx"
	"github.com/John-Robertt/VLIB/internal/infra/httpx"
	"github.com/John-Robertt/VLIB/internal/infra/imgx"
	"github.com/John-Robertt/VLIB/internal/organize"
	"github.com/John-Robertt/VLIB/internal/probe"
	"github.com/John-Robertt/VLIB/internal/resolve"
	"github.com/John-Robertt/VLIB/internal/scan"
	"github.com/John-Robertt/VLIB/internal/sidecar"
	"github.com/John-Robertt/VLIB/internal/title"
)

// Execute 执行一次 run（dry-run/apply），并返回对外稳定的 RunReport。
// 该函数尽量把错误“降级”为 item 级失败（单条失败不影响其他条目）。
func Execute(ctx context.Context, eff config.EffectiveConfig) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息。
//
// 流程（整树一个后台工作单元）：
// 1) 扫描视频文件（cache/ 与配置排除目录跳过）
// 2) 逐文件串行：孤儿判定 -> 标题解析 -> 身份解析 -> 目录整理
//    （文件间有协作式取消检查；目录移动彼此不独立，绝不并发）
// 3) 逐条目：加载或刷新元数据（页面提取与本地探测并发，双双完成才落盘）
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, obs Observer) domain.RunReport {
	started := time.Now().UTC()

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		Path:      eff.Path,
		DryRun:    !eff.Apply,
		StartedAt: started,
		Items:     make([]domain.ItemResult, 0, 128),
	}
	finish := func() domain.RunReport {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	pageClient, err := httpx.NewPageClient(eff.ProxyURL)
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeConfigInvalid, fmt.Sprintf("proxy.url 无效：%v", err)))
		return finish()
	}
	imageClient, err := httpx.NewImageClient()
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeConfigInvalid, err.Error()))
		return finish()
	}

	r := &runner{
		eff:    eff,
		client: &imdb.Client{BaseURL: eff.IMDBBaseURL, HTTP: pageClient},
		images: imageClient,
		store:  cache.New(eff.Path, !eff.Apply),
		obs:    obs,
	}
	r.resolver = &resolve.Resolver{Search: r.client, Cache: resolve.NewCache()}
	r.org = &organize.Reorganizer{Root: eff.Path, BaseURL: eff.IMDBBaseURL, Apply: eff.Apply}

	scanStarted := time.Now()
	files, err := scan.ScanVideos(eff.Path, eff.ExcludeDirs)
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("扫描失败：%v", err)))
		return finish()
	}
	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{"files": len(files)}, time.Since(scanStarted))
	}

	// 目录整理：严格串行。子目录重命名会改变后续文件的路径，
	// 并发执行无法保证可解释的结果。
	orgStarted := time.Now()
	for i := range files {
		// 协作式取消：只在文件边界检查，绝不在一次整理中途放弃。
		if ctx.Err() != nil {
			break
		}

		oneStarted := time.Now()
		item := r.processFile(ctx, files[i])
		rr.Items = append(rr.Items, item)
		if obs != nil {
			obs.OnItemDone(i+1, len(files), item, time.Since(oneStarted))
		}
	}
	if obs != nil {
		obs.OnPhaseDone("organize", map[string]any{
			"entities": len(r.entities),
		}, time.Since(orgStarted))
	}

	// 元数据阶段：dry-run 不抓取、不落盘。
	if eff.Apply {
		metaStarted := time.Now()
		refreshed := 0
		for _, ent := range r.sortedEntities() {
			if ctx.Err() != nil {
				break
			}
			changed, err := r.ensureMetadata(ctx, ent, false)
			if err != nil {
				rr.Items = append(rr.Items, metadataFailed(eff.Path, ent, err))
				continue
			}
			if changed {
				refreshed++
			}
		}
		if obs != nil {
			obs.OnPhaseDone("metadata", map[string]any{
				"entities":  len(r.entities),
				"refreshed": refreshed,
			}, time.Since(metaStarted))
		}
	}

	return finish()
}

// entity 是元数据阶段的处理单元：一个持有 shortcut 的目录。
type entity struct {
	Dir    string
	ID     string
	Video  string // 条目目录里的视频文件（剧集头为空）
	Header bool
}

type runner struct {
	eff      config.EffectiveConfig
	client   *imdb.Client
	images   *http.Client
	store    cache.Store
	resolver *resolve.Resolver
	org      *organize.Reorganizer
	obs      Observer

	entities map[string]entity // key: 条目目录绝对路径
}

func (r *runner) addEntity(e entity) {
	if e.Dir == "" || e.ID == "" {
		return
	}
	if r.entities == nil {
		r.entities = make(map[string]entity)
	}
	if old, ok := r.entities[e.Dir]; ok {
		// 视频信息择优保留。
		if old.Video != "" && e.Video == "" {
			return
		}
	}
	r.entities[e.Dir] = e
}

func (r *runner) sortedEntities() []entity {
	out := make([]entity, 0, len(r.entities))
	for _, e := range r.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dir < out[j].Dir })
	return out
}

// processFile 处理单个视频文件：孤儿判定 -> 标题解析 -> 身份解析 -> 整理。
// 所有失败降级为 item 级结果，外层循环继续下一个文件。
func (r *runner) processFile(ctx context.Context, f domain.VideoFile) domain.ItemResult {
	item := domain.ItemResult{
		Src:    f.RelPath,
		Status: domain.StatusProcessed,
		Files:  []domain.FileResult{},
	}

	// 孤儿判定：目录里已有被识别的 shortcut => 身份已确认，无需整理。
	if !f.AtRoot {
		st, err := scan.Inspect(filepath.Dir(f.AbsPath))
		if err != nil {
			var ae *scan.AmbiguousStateError
			if errors.As(err, &ae) {
				item.Status = domain.StatusFailed
				item.ErrorCode = domain.ErrCodeAmbiguousLocal
				item.ErrorMsg = err.Error()
				return item
			}
			item.Status = domain.StatusFailed
			item.ErrorCode = domain.ErrCodeIOFailed
			item.ErrorMsg = err.Error()
			return item
		}
		if st.Shortcut != nil {
			item.Status = domain.StatusSkipped
			item.ExternalID = st.Shortcut.ID
			item.Files = append(item.Files, domain.FileResult{
				Src: f.RelPath, Dst: f.RelPath, Status: domain.FileStatusKept,
			})
			r.registerExisting(f, st.Shortcut.ID)
			return item
		}
	}

	raw, err := title.Parse(f.Base)
	if err != nil {
		item.Status = domain.StatusUnmatched
		item.ErrorCode = domain.ErrCodeUnmatchedTitle
		item.ErrorMsg = fmt.Sprintf("无法从文件名解析出标题：%s（需要 SxxEyy 或 4 位年份）", f.Base)
		return item
	}

	id, err := r.resolver.Resolve(ctx, raw)
	if err != nil {
		item.Status = domain.StatusFailed
		var nf *resolve.NotFoundError
		if errors.As(err, &nf) {
			item.ErrorCode = domain.ErrCodeLookupNotFound
		} else {
			item.ErrorCode = domain.ErrCodeFetchFailed
		}
		item.ErrorMsg = err.Error()
		return item
	}

	item.MovieName = id.MovieName
	item.FolderName = id.FolderName
	item.ExternalID = id.ExternalID
	item.SeriesCode = id.SeriesCode

	res, err := r.org.Reorganize(f, id)
	if err != nil {
		item.Status = domain.StatusFailed
		item.ErrorMsg = err.Error()
		var tc *organize.TargetConflictError
		switch {
		case errors.As(err, &tc):
			item.ErrorCode = domain.ErrCodeTargetConflict
		case fsx.IsCrossDevice(err):
			item.ErrorCode = domain.ErrCodeMoveFailed
		default:
			item.ErrorCode = domain.ErrCodeIOFailed
		}
		return item
	}

	fileStatus := domain.FileStatusKept
	for _, m := range res.Mutations {
		if m.Op == organize.OpMove || m.Op == organize.OpRename {
			fileStatus = domain.FileStatusMoved
			if !r.eff.Apply {
				fileStatus = domain.FileStatusPlanned
			}
			break
		}
	}
	item.Files = append(item.Files, domain.FileResult{
		Src:    f.RelPath,
		Dst:    r.rel(res.VideoPath),
		Status: fileStatus,
	})

	entityID := id.ExternalID
	if id.IsEpisode() {
		entityID = id.SeriesExternalID
		r.addEntity(entity{Dir: res.HeaderDir, ID: id.ExternalID, Header: true})
	}
	r.addEntity(entity{Dir: res.EntityDir, ID: entityID, Video: res.VideoPath})
	return item
}

// registerExisting 把一个已确认身份的目录登记进元数据阶段；
// 单集目录的上级（剧集头）若也持有 shortcut，一并登记。
func (r *runner) registerExisting(f domain.VideoFile, id string) {
	dir := filepath.Dir(f.AbsPath)
	r.addEntity(entity{Dir: dir, ID: id, Video: f.AbsPath})

	parent := filepath.Dir(dir)
	if parent == dir || filepath.Clean(parent) == filepath.Clean(r.eff.Path) {
		return
	}
	st, err := scan.Inspect(parent)
	if err != nil || st.Shortcut == nil || st.Shortcut.ID == id {
		return
	}
	r.addEntity(entity{Dir: parent, ID: st.Shortcut.ID, Header: true})
}

func (r *runner) rel(abs string) string {
	if abs == "" {
		return ""
	}
	if rel, err := filepath.Rel(r.eff.Path, abs); err == nil {
		return rel
	}
	return abs
}

// ensureMetadata 保证条目目录有一份完整的 sidecar（以及可得的海报）。
// 返回 changed=true 表示本次发生了抓取/落盘。
func (r *runner) ensureMetadata(ctx context.Context, ent entity, force bool) (bool, error) {
	existing, ok, err := sidecar.Load(ent.Dir, ent.ID)
	if err != nil {
		return false, err
	}
	if ok && !force {
		return false, nil
	}

	meta, err := r.scrapeMetadata(ctx, ent)
	if err != nil {
		return false, err
	}

	// 本地字段跨刷新保留：watchedDate 只属于宿主 UI，downloadDate 只记一次。
	if ok {
		meta.WatchedUnix = existing.WatchedUnix
		if existing.DownloadUnix != 0 {
			meta.DownloadUnix = existing.DownloadUnix
		}
	}

	if meta.PosterURL != "" {
		if err := r.ensurePoster(ctx, ent.Dir, meta.PosterURL); err != nil {
			// 海报失败不阻塞元数据落盘，降级为事件。
			if r.obs != nil {
				r.obs.OnPhaseDone("poster", map[string]any{
					"dir":   r.rel(ent.Dir),
					"error": err.Error(),
				}, 0)
			}
		}
	}

	if _, err := sidecar.Save(ent.Dir, ent.ID, meta); err != nil {
		return false, err
	}
	// 解析成功后，缓存页面即为冗余。
	_ = r.store.RemovePage(ent.ID)
	return true, nil
}

// scrapeMetadata 抓取并解析一个条目：页面提取与本地探测并发执行，
// 双双完成后才组装记录——绝不落盘半成品。
func (r *runner) scrapeMetadata(ctx context.Context, ent entity) (domain.MetadataRecord, error) {
	html, err := r.loadPage(ctx, ent.ID)
	if err != nil {
		return domain.MetadataRecord{}, err
	}

	var (
		wg sync.WaitGroup

		meta       domain.MetadataRecord
		posterURL  string
		extractErr error

		probed   probe.Result
		probeErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		m, canonical, err := imdb.Extract(html)
		if err != nil {
			extractErr = err
			return
		}
		if canonical != "" && canonical != ent.ID {
			extractErr = fmt.Errorf("页面身份不符：期望 %s，页面是 %s", ent.ID, canonical)
			return
		}
		if m.PosterURL == "" {
			if u, perr := r.client.ResolvePosterURL(ctx, html); perr == nil {
				posterURL = u
			}
		}
		meta = m
	}()

	if ent.Video != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			probed, probeErr = probe.Probe(ctx, r.eff.FFProbe, ent.Video)
		}()
	}
	wg.Wait()

	if extractErr != nil {
		return domain.MetadataRecord{}, &parseError{id: ent.ID, err: extractErr}
	}
	if meta.PosterURL == "" {
		meta.PosterURL = posterURL
	}

	if ent.Video != "" {
		if probeErr != nil {
			// 探测失败降级为零值，不阻塞元数据。
			if r.obs != nil {
				r.obs.OnPhaseDone("probe", map[string]any{
					"file":  r.rel(ent.Video),
					"error": probeErr.Error(),
				}, 0)
			}
		} else {
			meta.RuntimeMinutes = probed.RuntimeMinutes
			meta.DisplayWidth = probed.Width
			meta.DisplayHeight = probed.Height
			meta.DisplayRatio = probed.Ratio
		}
		if fi, err := os.Stat(ent.Video); err == nil {
			meta.DownloadUnix = fi.ModTime().Unix()
		}
	}
	return meta, nil
}

// loadPage 取条目详情页：优先页面缓存，未命中走网络并回填缓存。
func (r *runner) loadPage(ctx context.Context, id string) ([]byte, error) {
	if b, ok, err := r.store.ReadPage(id); err == nil && ok {
		return b, nil
	}
	b, _, err := r.client.TitlePage(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = r.store.WritePage(id, b)
	return b, nil
}

const posterFileName = "poster.jpg"

// ensurePoster 下载并缓存海报（存在即跳过，保持幂等）。
func (r *runner) ensurePoster(ctx context.Context, dir, posterURL string) error {
	if _, err := os.Stat(filepath.Join(dir, posterFileName)); err == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, posterURL, nil)
	if err != nil {
		return err
	}
	resp, err := r.images.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("下载海报失败：HTTP %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	b, err := imgx.NormalizePosterJPEG(raw)
	if err != nil {
		return err
	}
	err = fsx.WriteFileAtomicNoOverwrite(dir, posterFileName, b)
	if errors.Is(err, os.ErrExist) {
		return nil
	}
	return err
}

// LoadOrRefreshMetadata 是第二个入口：读取（必要时抓取）单个条目目录的元数据。
// force=true 时忽略既有 sidecar 重新抓取（watchedDate 保留）。
func LoadOrRefreshMetadata(ctx context.Context, eff config.EffectiveConfig, entityDir string, force bool) (domain.MetadataRecord, error) {
	st, err := scan.Inspect(entityDir)
	if err != nil {
		return domain.MetadataRecord{}, err
	}
	if st.Shortcut == nil {
		return domain.MetadataRecord{}, fmt.Errorf("目录没有被识别的 shortcut：%s", entityDir)
	}

	pageClient, err := httpx.NewPageClient(eff.ProxyURL)
	if err != nil {
		return domain.MetadataRecord{}, err
	}
	imageClient, err := httpx.NewImageClient()
	if err != nil {
		return domain.MetadataRecord{}, err
	}

	r := &runner{
		eff:    eff,
		client: &imdb.Client{BaseURL: eff.IMDBBaseURL, HTTP: pageClient},
		images: imageClient,
		store:  cache.New(eff.Path, false),
	}

	ent := entity{Dir: entityDir, ID: st.Shortcut.ID}
	if len(st.Videos) == 1 {
		ent.Video = filepath.Join(entityDir, st.Videos[0])
	}

	if _, err := r.ensureMetadata(ctx, ent, force); err != nil {
		return domain.MetadataRecord{}, err
	}
	meta, ok, err := sidecar.Load(entityDir, st.Shortcut.ID)
	if err != nil {
		return domain.MetadataRecord{}, err
	}
	if !ok {
		return domain.MetadataRecord{}, fmt.Errorf("sidecar 缺失：%s", entityDir)
	}
	return meta, nil
}

// parseError 把“页面解析失败”与“抓取失败”区分开（error_code 不同）。
type parseError struct {
	id  string
	err error
}

func (e *parseError) Error() string {
	return fmt.Sprintf("解析页面失败（%s）：%v", e.id, e.err)
}

func (e *parseError) Unwrap() error { return e.err }

func metadataFailed(root string, ent entity, err error) domain.ItemResult {
	item := domain.ItemResult{
		Src:        relOr(root, ent.Dir),
		ExternalID: ent.ID,
		Status:     domain.StatusFailed,
		ErrorMsg:   err.Error(),
		Files:      []domain.FileResult{},
	}
	var pe *parseError
	var hs *imdb.HTTPStatusError
	switch {
	case errors.As(err, &pe):
		item.ErrorCode = domain.ErrCodeParseFailed
	case errors.As(err, &hs):
		item.ErrorCode = domain.ErrCodeFetchFailed
	default:
		item.ErrorCode = domain.ErrCodeFetchFailed
		if !isNetworkish(err) {
			item.ErrorCode = domain.ErrCodeIOFailed
		}
	}
	return item
}

func isNetworkish(err error) bool {
	if err == nil {
		return false
	}
	low := strings.ToLower(err.Error())
	return errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(low, "timeout") ||
		strings.Contains(low, "connection") ||
		strings.Contains(low, "http")
}

func relOr(root, abs string) string {
	if rel, err := filepath.Rel(root, abs); err == nil {
		return rel
	}
	return abs
}

func syntheticFailed(code, msg string) domain.ItemResult {
	return domain.ItemResult{
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
		Files:     []domain.FileResult{},
	}
}
