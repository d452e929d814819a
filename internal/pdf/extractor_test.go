package pdf

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsPDF(t *testing.T) {
	for name, want := range map[string]bool{"report.pdf": true, "REPORT.PDF": true, "notes.txt": false, "pdf": false} {
		if got := IsPDF(name); got != want {
			t.Fatalf("IsPDF(%q) = %v", name, got)
		}
	}
}

func TestExtractRejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	if err := os.WriteFile(path, []byte("this is not a pdf"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := (Extractor{}).Extract(path); err == nil {
		t.Fatalf("expected error for invalid pdf")
	}
}

func TestExtractMissingFile(t *testing.T) {
	if _, err := (Extractor{}).Extract(filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
