package probe

import (
	"context"
	"errors"
	"testing"
)

func TestNearestRatio(t *testing.T) {
	cases := []struct {
		w, h int
		want string
	}{
		{1920, 1080, "16:9"},
		{1280, 720, "16:9"},
		{1920, 800, "2.39:1"},
		{1920, 816, "2.35:1"},
		{640, 480, "4:3"},
		{1998, 1080, "1.85:1"},
		{0, 1080, ""},
		{1920, 0, ""},
	}
	for _, c := range cases {
		if got := NearestRatio(c.w, c.h); got != c.want {
			t.Fatalf("NearestRatio(%d,%d) = %q，期望 %q", c.w, c.h, got, c.want)
		}
	}
}

func TestParseFFProbe(t *testing.T) {
	out := []byte(`{
		"streams": [
			{"codec_type": "audio"},
			{"codec_type": "video", "width": 1920, "height": 800},
			{"codec_type": "video", "width": 320, "height": 240}
		],
		"format": {"duration": "5315.790000"}
	}`)
	r, err := parseFFProbe(out)
	if err != nil {
		t.Fatalf("解析失败：%v", err)
	}
	if r.Width != 1920 || r.Height != 800 {
		t.Fatalf("尺寸 %dx%d，期望取第一条视频流 1920x800", r.Width, r.Height)
	}
	if r.RuntimeMinutes != 89 {
		t.Fatalf("时长 %d 分钟，期望 89", r.RuntimeMinutes)
	}
	if r.Ratio != "2.39:1" {
		t.Fatalf("画幅 %q，期望 2.39:1", r.Ratio)
	}
}

func TestParseFFProbe_Garbage(t *testing.T) {
	if _, err := parseFFProbe([]byte("not json")); err == nil {
		t.Fatal("非 JSON 输出应报错")
	}
}

func TestProbe_ExecFailure(t *testing.T) {
	orig := runFFProbe
	defer func() { runFFProbe = orig }()
	runFFProbe = func(ctx context.Context, bin, file string) ([]byte, error) {
		return nil, errors.New("boom")
	}
	if _, err := Probe(context.Background(), "", "a.mkv"); err == nil {
		t.Fatal("执行失败应返回错误")
	}
}

func TestProbe_DefaultBinary(t *testing.T) {
	orig := runFFProbe
	defer func() { runFFProbe = orig }()
	var gotBin string
	runFFProbe = func(ctx context.Context, bin, file string) ([]byte, error) {
		gotBin = bin
		return []byte(`{"streams":[],"format":{}}`), nil
	}
	if _, err := Probe(context.Background(), "  ", "a.mkv"); err != nil {
		t.Fatalf("探测失败：%v", err)
	}
	if gotBin != "ffprobe" {
		t.Fatalf("空路径应回退到 ffprobe，实际 %q", gotBin)
	}
}
