// Package pdftest builds small, well-formed PDFs for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
)

// Page is one page of a generated PDF: a line of text, a full-page JPEG scan, or blank.
type Page struct {
	text string
	scan image.Image
	// corrupt is the w×h of a DCTDecode image whose data is not a JPEG.
	corrupt image.Point
}

// Text returns a page showing s in Helvetica. s must not contain parentheses or backslashes.
func Text(s string) Page { return Page{text: s} }

// Scan returns a page holding a single w×h JPEG covering the page and no text.
func Scan(w, h int) Page {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	return Page{scan: img}
}

// CorruptScan returns a page holding a w×h image declared as JPEG whose data cannot be decoded.
func CorruptScan(w, h int) Page { return Page{corrupt: image.Pt(w, h)} }

// Blank returns a page with neither text nor images.
func Blank() Page { return Page{} }

// Build writes the pages into a PDF with a correct cross-reference table.
func Build(pages ...Page) ([]byte, error) {
	var objects [][]byte
	add := func(body []byte) int {
		objects = append(objects, body)
		return len(objects)
	}
	stream := func(dict string, data []byte) []byte {
		var b bytes.Buffer
		fmt.Fprintf(&b, "<< %s /Length %d >>\nstream\n", dict, len(data))
		b.Write(data)
		b.WriteString("\nendstream")
		return b.Bytes()
	}

	catalog := add(nil)
	pagesObj := add(nil)
	font := add([]byte("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>"))

	var kids []int
	for _, p := range pages {
		resources := fmt.Sprintf("<< /Font << /F1 %d 0 R >> >>", font)
		var content []byte
		switch {
		case p.scan != nil || p.corrupt != (image.Point{}):
			size := p.corrupt
			data := []byte("this stream is not a JPEG")
			if p.scan != nil {
				var jpg bytes.Buffer
				if err := jpeg.Encode(&jpg, p.scan, &jpeg.Options{Quality: 90}); err != nil {
					return nil, err
				}
				size, data = p.scan.Bounds().Size(), jpg.Bytes()
			}
			img := add(stream(fmt.Sprintf(
				"/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode",
				size.X, size.Y), data))
			resources = fmt.Sprintf("<< /XObject << /Im1 %d 0 R >> >>", img)
			content = []byte("q 612 0 0 792 0 0 cm /Im1 Do Q")
		case p.text != "":
			content = []byte(fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", p.text))
		default:
			content = []byte("q Q")
		}
		contents := add(stream("", content))
		kids = append(kids, add([]byte(fmt.Sprintf(
			"<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] /Resources %s /Contents %d 0 R >>",
			pagesObj, resources, contents))))
	}

	var kidRefs bytes.Buffer
	for _, k := range kids {
		fmt.Fprintf(&kidRefs, "%d 0 R ", k)
	}
	objects[catalog-1] = []byte(fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesObj))
	objects[pagesObj-1] = []byte(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kidRefs.String(), len(kids)))

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n", i+1)
		out.Write(body)
		out.WriteString("\nendobj\n")
	}
	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n", len(objects)+1)
	out.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, catalog, xref)
	return out.Bytes(), nil
}

// MustBuild is Build for tests that cannot proceed on error.
func MustBuild(pages ...Page) []byte {
	data, err := Build(pages...)
	if err != nil {
		panic(err)
	}
	return data
}
