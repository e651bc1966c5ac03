package gallery

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docgallery/internal/source"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

type encodeFunc func(io.Writer, image.Image) error

// encoders maps a lower-case file extension to the format written for it.
var encoders = map[string]encodeFunc{
	".png":  png.Encode,
	".jpg":  encodeJPEG,
	".jpeg": encodeJPEG,
	".gif":  encodeGIF,
	".bmp":  bmp.Encode,
	".tif":  encodeTIFF,
	".tiff": encodeTIFF,
}

func encodeJPEG(w io.Writer, img image.Image) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
}

func encodeGIF(w io.Writer, img image.Image) error {
	return gif.Encode(w, img, nil)
}

func encodeTIFF(w io.Writer, img image.Image) error {
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
}

// ThumbName is the file name a figure's thumbnail is written under: the
// figure's own base name, or the same stem with ".png" when its format
// can be read but not written (webp).
func ThumbName(figure string) string {
	base := filepath.Base(figure)
	ext := filepath.Ext(base)
	if _, ok := encoders[strings.ToLower(ext)]; ok {
		return base
	}
	return strings.TrimSuffix(base, ext) + ".png"
}

// RescaleImage scales src to fit inside width x height, centres it on a
// white canvas of exactly that size and writes the result to dst in the
// format its extension names. Unknown extensions get PNG data.
// Images are never enlarged.
func (g *Gallery) RescaleImage(src, dst string, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid thumbnail size %dx%d", width, height)
	}

	f, err := os.Open(src)
	if err != nil {
		return &source.FileAccessError{Path: src, Err: err}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode %s: %w", src, err)
	}
	thumb, err := Fit(img, width, height)
	if err != nil {
		return fmt.Errorf("scale %s: %w", src, err)
	}
	return writeImage(dst, thumb)
}

// Fit returns a width x height canvas holding img scaled down to fit and
// centred.
func Fit(img image.Image, width, height int) (*image.RGBA, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("empty image")
	}

	scale := float64(height) / float64(h)
	if scaleW := float64(width) / float64(w); float64(h)*scaleW <= float64(height) {
		scale = scaleW
	}
	if scale > 1 {
		scale = 1
	}
	sw := max(1, int(math.Round(scale*float64(w))))
	sh := max(1, int(math.Round(scale*float64(h))))

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	x0, y0 := (width-sw)/2, (height-sh)/2
	draw.CatmullRom.Scale(canvas, image.Rect(x0, y0, x0+sw, y0+sh), img, b, draw.Over, nil)
	return canvas, nil
}

// writeImage encodes into a temp file next to dst and renames it into place,
// so concurrent writers of the same thumbnail never leave a torn file.
func writeImage(dst string, img image.Image) error {
	ext := strings.ToLower(filepath.Ext(dst))
	encode, ok := encoders[ext]
	if !ok {
		encode = png.Encode
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".thumb-*"+ext)
	if err != nil {
		return fmt.Errorf("create thumbnail: %w", err)
	}
	tmpName := tmp.Name()
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("create thumbnail: %w", err)
	}

	if err := encode(tmp, img); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("encode thumbnail: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write thumbnail: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write thumbnail: %w", err)
	}
	return nil
}
