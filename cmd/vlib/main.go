package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/John-Robertt/VLIB/internal/app/run"
	"github.com/John-Robertt/VLIB/internal/config"
	"github.com/John-Robertt/VLIB/internal/domain"
	"github.com/John-Robertt/VLIB/internal/infra/fsx"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "run":
		if code := runCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	case "meta":
		if code := metaCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage()
			return 0
		}
	}

	ra, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}
	cwdAbs, _ := filepath.Abs(cwd)

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		Path:     ra.Path,
		Apply:    ra.Apply,
		ApplySet: ra.ApplySet,
	})
	if err != nil {
		rr := reportForConfigError(cwdAbs, ra, err)
		emitReport(rr)
		return 1
	}

	progressW, interactive := pickProgressWriter()
	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	rr := run.ExecuteWithObserver(context.Background(), eff, obs)

	// apply：必须写入 <path>/cache/report.json；dry-run 禁止落盘。
	if eff.Apply {
		if err := writeReportFile(eff.Path, rr); err != nil {
			fmt.Fprintf(os.Stderr, "写入 report.json 失败：%v\n", err)
			emitReport(rr)
			return 1
		}
	}

	emitReport(rr)
	if interactive {
		emitLocations(progressW, eff)
	}
	if rr.Summary.Failed == 0 && rr.Summary.Unmatched == 0 {
		return 0
	}
	return 1
}

// metaCmd 读取（或强制刷新）单个实体目录的元数据，并在 stdout 输出一个 JSON。
func metaCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printMetaUsage()
			return 0
		}
	}

	ma, err := parseMetaArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printMetaUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	// meta 在库根（实体目录的父目录）解析配置；配置缺失时退化为默认值。
	root := filepath.Dir(ma.Dir)
	eff, err := config.LoadEffective(cwd, config.CLIArgs{Path: root})
	if err != nil {
		// 刷新需要网络配置（代理/镜像域名）；只读取本地 sidecar 则不需要。
		if ma.Refresh {
			fmt.Fprintf(os.Stderr, "加载配置失败：%v\n", err)
			return 1
		}
		eff = config.EffectiveConfig{Path: root}
	}
	// meta 总是允许写 sidecar（refresh 的意义就在于落盘）。
	eff.Apply = true

	rec, err := run.LoadOrRefreshMetadata(context.Background(), eff, ma.Dir, ma.Refresh)
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取元数据失败：%v\n", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		fmt.Fprintf(os.Stderr, "输出 JSON 失败：%v\n", err)
		return 1
	}
	return 0
}

type runArgs struct {
	Path     string
	Apply    bool
	ApplySet bool
}

func parseRunArgs(args []string) (runArgs, error) {
	ra := runArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--apply":
			ra.Apply = true
			ra.ApplySet = true
		case strings.HasPrefix(a, "--apply="):
			v := strings.TrimPrefix(a, "--apply=")
			switch v {
			case "true":
				ra.Apply = true
			case "false":
				ra.Apply = false
			default:
				return runArgs{}, fmt.Errorf("--apply 只能是 true 或 false，实际是 %q", v)
			}
			ra.ApplySet = true
		case strings.HasPrefix(a, "-"):
			return runArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if ra.Path != "" {
				return runArgs{}, fmt.Errorf("重复的 path：%q 与 %q", ra.Path, a)
			}
			ra.Path = a
		}
	}

	return ra, nil
}

type metaArgs struct {
	Dir     string
	Refresh bool
}

func parseMetaArgs(args []string) (metaArgs, error) {
	ma := metaArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--refresh":
			ma.Refresh = true
		case strings.HasPrefix(a, "-"):
			return metaArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if ma.Dir != "" {
				return metaArgs{}, fmt.Errorf("重复的目录：%q 与 %q", ma.Dir, a)
			}
			ma.Dir = a
		}
	}

	if ma.Dir == "" {
		return metaArgs{}, fmt.Errorf("meta 需要一个实体目录参数")
	}
	abs, err := filepath.Abs(ma.Dir)
	if err != nil {
		return metaArgs{}, fmt.Errorf("解析目录失败：%w", err)
	}
	ma.Dir = abs

	return ma, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  vlib run [path] [--apply[=true|false]]
  vlib meta <dir> [--refresh]

命令：
  run    扫描并整理视频库（默认 dry-run）
  meta   输出单个影片/剧集目录的元数据 JSON

使用 "vlib <命令> --help" 查看详细说明。
`)
}

func printRunUsage() {
	fmt.Fprint(os.Stdout, `用法：
  vlib run [path] [--apply[=true|false]]

参数：
  --apply     执行落盘与移动（默认 dry-run）；支持 --apply=false 覆盖配置中的 apply=true
  -h, --help  显示帮助
`)
}

func printMetaUsage() {
	fmt.Fprint(os.Stdout, `用法：
  vlib meta <dir> [--refresh]

参数：
  <dir>       实体目录（含 .url shortcut 与 movie.json sidecar）
  --refresh   忽略已有 sidecar，强制重新抓取（保留 watched/download 时间戳）
  -h, --help  显示帮助
`)
}

func emitReport(rr domain.RunReport) {
	if isTTY(os.Stdout) {
		fmt.Fprintf(os.Stdout, "完成：processed=%d skipped=%d failed=%d unmatched=%d\n",
			rr.Summary.Processed, rr.Summary.Skipped, rr.Summary.Failed, rr.Summary.Unmatched,
		)
		if rr.Summary.Failed > 0 || rr.Summary.Unmatched > 0 {
			for _, it := range rr.Items {
				if it.Status != domain.StatusFailed && it.Status != domain.StatusUnmatched {
					continue
				}
				key := it.Src
				if key == "" && len(it.Files) > 0 {
					// 合成条目（config 错误等）：用首个文件路径做定位锚点。
					key = it.Files[0].Src
				}
				if key == "" {
					key = "<unknown>"
				}
				fmt.Fprintf(os.Stderr, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
			}
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintf(os.Stderr, "完成：processed=%d skipped=%d failed=%d unmatched=%d\n",
		rr.Summary.Processed, rr.Summary.Skipped, rr.Summary.Failed, rr.Summary.Unmatched,
	)
}

func reportForConfigError(cwdAbs string, ra runArgs, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		Path:       cwdAbs,
		DryRun:     !(ra.ApplySet && ra.Apply),
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.ItemResult{{
			Status:    domain.StatusFailed,
			ErrorCode: config.Code(err),
			ErrorMsg:  err.Error(),
			Files:     []domain.FileResult{},
		}},
	}
	rr.Finalize()
	return rr
}

func writeReportFile(root string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(filepath.Join(root, "cache"), "report.json", b)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, eff config.EffectiveConfig) {
	// 这两行用于降低“完成后不知道产物在哪”的摩擦，且不影响 stdout JSON 契约。
	if w == nil {
		return
	}
	if eff.Apply {
		fmt.Fprintf(w, "report: %s\n", filepath.Join(eff.Path, "cache", "report.json"))
	}
	fmt.Fprintf(w, "cache: %s\n", filepath.Join(eff.Path, "cache"))
}
