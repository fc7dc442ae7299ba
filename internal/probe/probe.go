package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// 本地视频属性探测：时长、像素尺寸、最接近的标准画幅标签。
//
// 实现方式：调用 ffprobe（JSON 输出）。没有 ffprobe 时上层把探测结果
// 降级为零值并发一条 info 事件——探测失败从不阻塞元数据落盘。

// Result 是一次探测的产出（全部可为零值）。
type Result struct {
	RuntimeMinutes int
	Width          int
	Height         int
	Ratio          string
}

// standardRatios 是固定的画幅表：取与 w/h 最接近的一项的标签。
var standardRatios = []struct {
	Label string
	Value float64
}{
	{"4:3", 4.0 / 3.0},
	{"16:9", 16.0 / 9.0},
	{"1.85:1", 1.85},
	{"2.20:1", 2.20},
	{"2.35:1", 2.35},
	{"2.39:1", 2.39},
}

// NearestRatio 返回与 width/height 最接近的标准画幅标签；尺寸非法返回空串。
func NearestRatio(width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	v := float64(width) / float64(height)

	best := ""
	bestDiff := math.MaxFloat64
	for _, r := range standardRatios {
		if d := math.Abs(v - r.Value); d < bestDiff {
			best = r.Label
			bestDiff = d
		}
	}
	return best
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

// runFFProbe 可替换，让测试不依赖真实 ffprobe。
var runFFProbe = func(ctx context.Context, bin, file string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		file)
	return cmd.Output()
}

// Probe 探测 file 的本地属性。bin 为空时用 PATH 中的 "ffprobe"。
func Probe(ctx context.Context, bin, file string) (Result, error) {
	if strings.TrimSpace(bin) == "" {
		bin = "ffprobe"
	}
	out, err := runFFProbe(ctx, bin, file)
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe 执行失败：%w", err)
	}
	return parseFFProbe(out)
}

func parseFFProbe(out []byte) (Result, error) {
	var data ffprobeOutput
	if err := json.Unmarshal(out, &data); err != nil {
		return Result{}, fmt.Errorf("解析 ffprobe 输出失败：%w", err)
	}

	var r Result
	for _, s := range data.Streams {
		if s.CodecType == "video" && r.Width == 0 {
			r.Width = s.Width
			r.Height = s.Height
		}
	}
	if d, err := strconv.ParseFloat(strings.TrimSpace(data.Format.Duration), 64); err == nil && d > 0 {
		r.RuntimeMinutes = int(math.Round(d / 60))
	}
	r.Ratio = NearestRatio(r.Width, r.Height)
	return r, nil
}
