package assets

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"os"
	"strings"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"
)

// EnsureEmbeddable returns a raster image path that document
// renderers can embed. JPEG, PNG, and GIF pass through untouched;
// WEBP, BMP, and SVG are converted to a sibling PNG. Anything that
// cannot be decoded becomes a framed placeholder so the document
// still shows where the image was.
func EnsureEmbeddable(path string, logger *slog.Logger) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}),
		bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47}),
		bytes.HasPrefix(data, []byte("GIF8")):
		return path, nil
	}

	pngPath := strings.TrimSuffix(path, extOf(path)) + ".png"
	if _, err := os.Stat(pngPath); err == nil {
		return pngPath, nil
	}

	img := decodeSpecial(data, logger)
	if img == nil {
		logger.Warn("image not embeddable, using placeholder", "file", path)
		img = placeholder(400, 300)
	}

	out, err := os.Create(pngPath)
	if err != nil {
		return "", fmt.Errorf("create converted image: %w", err)
	}
	defer out.Close()

	if err := png.Encode(out, img); err != nil {
		os.Remove(pngPath)
		return "", fmt.Errorf("encode png: %w", err)
	}
	return pngPath, nil
}

// decodeSpecial handles the formats the office renderers cannot take
// directly. Returns nil when the data does not decode.
func decodeSpecial(data []byte, logger *slog.Logger) image.Image {
	switch {
	case bytes.HasPrefix(data, []byte("RIFF")):
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			logger.Debug("webp decode failed", "error", err)
			return nil
		}
		return img
	case bytes.HasPrefix(data, []byte("BM")):
		img, err := bmp.Decode(bytes.NewReader(data))
		if err != nil {
			logger.Debug("bmp decode failed", "error", err)
			return nil
		}
		return img
	case bytes.Contains(head(data, 512), []byte("<svg")), bytes.Contains(head(data, 512), []byte("<?xml")):
		return rasterizeSVG(data, logger)
	}
	return nil
}

// rasterizeSVG renders an SVG into an RGBA image at its viewbox size.
func rasterizeSVG(data []byte, logger *slog.Logger) image.Image {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		logger.Debug("svg parse failed", "error", err)
		return nil
	}

	w, h := int(icon.ViewBox.W), int(icon.ViewBox.H)
	if w <= 0 || h <= 0 {
		w, h = 512, 512
	}
	// Keep embedded output bounded
	const maxDim = 2048
	if w > maxDim {
		h = h * maxDim / w
		w = maxDim
	}
	if h > maxDim {
		w = w * maxDim / h
		h = maxDim
	}

	icon.SetTarget(0, 0, float64(w), float64(h))
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(rgba, rgba.Bounds(), image.White, image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(w, h, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)
	return rgba
}

// placeholder builds a light gray frame standing in for an image that
// could not be embedded.
func placeholder(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fill := color.RGBA{0xEE, 0xEE, 0xEE, 0xFF}
	frame := color.RGBA{0x99, 0x99, 0x99, 0xFF}

	draw.Draw(img, img.Bounds(), &image.Uniform{fill}, image.Point{}, draw.Src)
	for x := 0; x < w; x++ {
		for _, y := range []int{0, 1, h - 2, h - 1} {
			img.Set(x, y, frame)
		}
	}
	for y := 0; y < h; y++ {
		for _, x := range []int{0, 1, w - 2, w - 1} {
			img.Set(x, y, frame)
		}
	}
	return img
}

// ImageSize reads the pixel dimensions of a raster image file.
func ImageSize(path string) (w, h int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

func extOf(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i:]
	}
	return ""
}

func head(data []byte, n int) []byte {
	if len(data) > n {
		return data[:n]
	}
	return data
}
