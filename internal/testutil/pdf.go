// Package testutil holds helpers shared by package tests.
package testutil

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
)

// Page sizes in points.
var (
	A4Portrait  = [2]float64{595.276, 841.89}
	A5Landscape = [2]float64{595.276, 419.528}
)

// QuietLogger returns a logger that discards everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// PDF returns a minimal valid PDF with one page per width/height pair.
func PDF(pages ...[2]float64) []byte {
	var objs []string
	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", 3+2*i)
	}
	objs = append(objs, "<< /Type /Catalog /Pages 2 0 R >>")
	objs = append(objs, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(pages)))
	for i, d := range pages {
		content := fmt.Sprintf("0 0 m %.3f %.3f l S", d[0], d[1])
		objs = append(objs, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %.3f %.3f] /Resources << >> /Contents %d 0 R >>",
			d[0], d[1], 4+2*i))
		objs = append(objs, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

// WritePDF writes PDF(pages...) to path.
func WritePDF(t testing.TB, path string, pages ...[2]float64) {
	t.Helper()
	if err := os.WriteFile(path, PDF(pages...), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
