package imgx

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	_ "image/png" // 注册 PNG 解码器（站点偶见 PNG 海报）
)

// NormalizePosterJPEG 校验下载到的海报字节并统一编码为 JPEG（poster.jpg）。
//
// 约束：
// - 输入允许是 JPEG/PNG（依赖标准库解码器）；其它格式/截断数据直接报错
// - 输出固定为 JPEG；输入本来就是 JPEG 时原样透传（避免无意义的重编码损失）
func NormalizePosterJPEG(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, errors.New("海报数据为空")
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	if format == "jpeg" {
		return raw, nil
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New("图片尺寸无效")
	}

	var out bytes.Buffer
	// 质量：不需要太“讲究”，但要稳定可用；95 在体积与质量之间比较均衡。
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
