package pdfdoc

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
)

const (
	// RenderDPI is the resolution a page is rasterized at before scaling.
	RenderDPI = 200
	// RenderScale is the factor a page raster is reduced by before upload.
	RenderScale = 2
	// JPEGQuality keeps image backend payloads small.
	JPEGQuality = 40

	// maxRasterSide bounds the unscaled raster of oversized media boxes.
	maxRasterSide = 6000
)

// letter is used when the media box cannot be read.
var letter = types.Dim{Width: 612, Height: 792}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

func readContext(data []byte) (*model.Context, error) {
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), newConfiguration())
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF for rendering: %w", err)
	}
	return ctx, nil
}

// RenderPage rasterizes the page at RenderDPI, reduced by RenderScale, and returns it as a JPEG.
// The raster is a white page the size of the media box with the largest embedded image drawn over it;
// for a scanned page that image is the scan. Pages without a usable image render blank.
func (d *Document) RenderPage(pageNr int) ([]byte, error) {
	if pageNr < 1 || pageNr > d.PageCount() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPage, pageNr)
	}
	if _, err := d.context(); err != nil {
		return nil, err
	}

	w, h := RasterSize(d.pageDim(pageNr))
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	raw, err := d.largestImage(pageNr)
	if err != nil {
		d.logger.Warn("Page image unusable, rendering blank page.", "page", pageNr, "error", err)
	} else if raw != nil {
		src, _, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			d.logger.Warn("Page image cannot be decoded, rendering blank page.", "page", pageNr, "error", err)
		} else {
			draw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), src, src.Bounds(), draw.Over, nil)
		}
	}
	return EncodeJPEG(canvas, JPEGQuality)
}

// RasterSize is the pixel size of a page of dim points at RenderDPI after RenderScale.
func RasterSize(dim types.Dim) (int, int) {
	w := dim.Width * RenderDPI / 72
	h := dim.Height * RenderDPI / 72
	if w <= 0 || h <= 0 {
		return RasterSize(letter)
	}
	if side := math.Max(w, h); side > maxRasterSide {
		w, h = w*maxRasterSide/side, h*maxRasterSide/side
	}
	return max(int(math.Round(w/RenderScale)), 1), max(int(math.Round(h/RenderScale)), 1)
}

func (d *Document) pageDim(pageNr int) types.Dim {
	if pageNr > len(d.dims) {
		return letter
	}
	return d.dims[pageNr-1]
}

// largestImage returns the encoded bytes of the page's largest image, or nil when it has none.
func (d *Document) largestImage(pageNr int) ([]byte, error) {
	pctx, err := d.context()
	if err != nil {
		return nil, err
	}

	// The pdfcpu context caches decoded objects and is not safe for concurrent use.
	d.renderMu.Lock()
	defer d.renderMu.Unlock()

	images, err := pdfcpu.ExtractPageImages(pctx, pageNr, false)
	if err != nil {
		return nil, fmt.Errorf("failed to extract images from page %d: %w", pageNr, err)
	}
	var best *model.Image
	for _, img := range images {
		if best == nil || img.Width*img.Height > best.Width*best.Height {
			best = &img
		}
	}
	if best == nil || best.Reader == nil {
		return nil, nil
	}
	raw, err := io.ReadAll(best.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read image on page %d: %w", pageNr, err)
	}
	return raw, nil
}

func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
