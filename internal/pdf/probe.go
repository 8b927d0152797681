package pdf

import (
	"bytes"
	"fmt"

	"github.com/spherical/ocr-extractor/internal/domain"
)

// BlankPDF writes a valid PDF with n blank US-letter pages.
func BlankPDF(n int) []byte {
	var buf bytes.Buffer
	var offsets []int

	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")

	kids := ""
	for i := 0; i < n; i++ {
		kids += fmt.Sprintf("%d 0 R ", 3+i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, n))
	for i := 0; i < n; i++ {
		obj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)

	return buf.Bytes()
}

// Probe loads and rasterizes a one-page document. A non-nil error means PDF
// uploads cannot be served and clients should fall back to image-only OCR.
func Probe(loader domain.DocumentLoader) error {
	doc, err := loader.Load(BlankPDF(1))
	if err != nil {
		return err
	}
	defer doc.Close()

	if _, err := doc.ImageDPI(0, 18); err != nil {
		return domain.RenderError("probe render failed", err)
	}
	return nil
}
