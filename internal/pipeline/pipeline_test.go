package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackzampolin/rapor/internal/ocr"
	"github.com/jackzampolin/rapor/internal/preprocess"
	"github.com/jackzampolin/rapor/internal/rasterize"
	"github.com/jackzampolin/rapor/internal/scores"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 32, 16))
	for i := range img.Pix {
		img.Pix[i] = 230
	}
	data, err := preprocess.EncodePNG(img)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func writeFile(t *testing.T, path string, data []byte) string {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// fakeRenderer writes blank page images instead of running pdftoppm.
type fakeRenderer struct {
	t     *testing.T
	pages int
	err   error
	calls int
}

func (f *fakeRenderer) Rasterize(ctx context.Context, pdfPath, destDir string) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, err
	}
	var paths []string
	for i := 0; i < f.pages; i++ {
		p := filepath.Join(destDir, rasterize.PageImageName(pdfPath, i))
		writeFile(f.t, p, pngBytes(f.t))
		paths = append(paths, p)
	}
	return paths, nil
}

func scripted(name string, pages ...string) *ocr.MockEngine {
	m := &ocr.MockEngine{EngineName: name}
	for _, p := range pages {
		m.Responses = append(m.Responses, []ocr.Segment{{Text: p, Confidence: 0.9}})
	}
	return m
}

func newTestPipeline(t *testing.T, engine ocr.Engine, renderer PageRenderer, policy scores.MergePolicy) *Pipeline {
	t.Helper()
	rec, err := ocr.NewRecognizer(ocr.RecognizerConfig{Primary: engine, MinTextLength: 5})
	if err != nil {
		t.Fatal(err)
	}
	p, err := New(Config{
		Renderer:     renderer,
		Recognizer:   rec,
		Vocabulary:   scores.DefaultVocabulary(),
		MergePolicy:  policy,
		GeneratedDir: filepath.Join(t.TempDir(), "generated"),
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestPipeline_SingleImage(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "siswa.png"), pngBytes(t))
	p := newTestPipeline(t, scripted("paddle", "Bahasa Indonesia 90 Matematika 75"), nil, "")

	res, err := p.Process(context.Background(), path)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	want := map[string]string{
		"Bahasa Indonesia":     "90",
		"Matematika":           "75",
		"Bahasa Inggris":       "N/A",
		"Pendidikan Pancasila": "N/A",
	}
	got := res.Scores.Map()
	if len(got) != len(want) {
		t.Fatalf("Scores = %v", got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Scores[%q] = %q, want %q", k, got[k], v)
		}
	}
	if res.Document != "siswa" || len(res.Pages) != 1 || res.Pages[0].Source != SourceOCR {
		t.Errorf("Result = %+v", res)
	}
}

func TestPipeline_MultiPagePDF(t *testing.T) {
	dir := t.TempDir()
	pdf := writeFile(t, filepath.Join(dir, "rapor.pdf"), []byte("%PDF-1.4 stub"))

	t.Run("last page wins", func(t *testing.T) {
		renderer := &fakeRenderer{t: t, pages: 2}
		engine := scripted("paddle", "Matematika 85 Bahasa Inggris 70", "Bahasa Inggris 72 Penutup")
		p := newTestPipeline(t, engine, renderer, scores.LastPageWins)

		res, err := p.ProcessPDF(context.Background(), pdf)
		if err != nil {
			t.Fatalf("ProcessPDF() error = %v", err)
		}
		if res.Text != "Matematika 85 Bahasa Inggris 70\nBahasa Inggris 72 Penutup" {
			t.Errorf("Text = %q", res.Text)
		}
		if v, _ := res.Scores.Get("Matematika"); v != scores.NotFound {
			t.Errorf("Matematika = %q, want regression to %s", v, scores.NotFound)
		}
		if v, _ := res.Scores.Get("Bahasa Inggris"); v != "72" {
			t.Errorf("Bahasa Inggris = %q, want 72", v)
		}
		if len(res.Pages) != 2 || filepath.Base(res.Pages[1].ImagePath) != "rapor_page_1.png" {
			t.Errorf("Pages = %+v", res.Pages)
		}
	})

	t.Run("first found wins", func(t *testing.T) {
		renderer := &fakeRenderer{t: t, pages: 2}
		engine := scripted("paddle", "Matematika 85", "Bahasa Inggris 72")
		p := newTestPipeline(t, engine, renderer, scores.FirstFoundWins)

		res, err := p.ProcessPDF(context.Background(), pdf)
		if err != nil {
			t.Fatalf("ProcessPDF() error = %v", err)
		}
		if v, _ := res.Scores.Get("Matematika"); v != "85" {
			t.Errorf("Matematika = %q, want 85", v)
		}
	})

	t.Run("render failure", func(t *testing.T) {
		renderer := &fakeRenderer{t: t, err: errors.New("corrupt xref")}
		p := newTestPipeline(t, scripted("paddle", "x"), renderer, "")
		_, err := p.ProcessPDF(context.Background(), pdf)
		de, ok := AsDocumentError(err)
		if !ok || de.Kind != KindUnreadable || de.Document != "rapor" {
			t.Errorf("error = %v, want unreadable_document", err)
		}
	})

	t.Run("page failure aborts document", func(t *testing.T) {
		renderer := &fakeRenderer{t: t, pages: 2}
		engine := scripted("paddle", "Matematika 85")
		engine.ShouldFail = true
		p := newTestPipeline(t, engine, renderer, "")
		_, err := p.ProcessPDF(context.Background(), pdf)
		de, ok := AsDocumentError(err)
		if !ok || de.Kind != KindRecognition {
			t.Errorf("error = %v, want recognition_failed", err)
		}
		if engine.RequestCount() != 1 {
			t.Errorf("engine calls = %d, want 1", engine.RequestCount())
		}
	})
}

func TestPipeline_TextLayer(t *testing.T) {
	dir := t.TempDir()
	pdf := writeFile(t, filepath.Join(dir, "digital.pdf"), []byte("%PDF-1.4 stub"))
	rec, _ := ocr.NewRecognizer(ocr.RecognizerConfig{Primary: scripted("paddle", "Bahasa Inggris 60"), MinTextLength: 5})

	newPipeline := func(layer []string, renderer *fakeRenderer) *Pipeline {
		p, err := New(Config{
			Renderer:      renderer,
			Recognizer:    rec,
			Vocabulary:    scores.DefaultVocabulary(),
			GeneratedDir:  filepath.Join(dir, "generated"),
			UseTextLayer:  true,
			MinTextLength: 5,
			TextLayer:     func(string) ([]string, error) { return layer, nil },
		})
		if err != nil {
			t.Fatal(err)
		}
		return p
	}

	t.Run("all pages have text", func(t *testing.T) {
		renderer := &fakeRenderer{t: t, pages: 2}
		p := newPipeline([]string{"Matematika 88", "Pendidikan Pancasila 91"}, renderer)
		res, err := p.ProcessPDF(context.Background(), pdf)
		if err != nil {
			t.Fatal(err)
		}
		if renderer.calls != 0 {
			t.Error("renderer called although the text layer was complete")
		}
		if res.Pages[0].Source != SourceTextLayer {
			t.Errorf("Source = %q", res.Pages[0].Source)
		}
		if v, _ := res.Scores.Get("Pendidikan Pancasila"); v != "91" {
			t.Errorf("Pendidikan Pancasila = %q", v)
		}
	})

	t.Run("scanned page falls back to OCR", func(t *testing.T) {
		renderer := &fakeRenderer{t: t, pages: 2}
		p := newPipeline([]string{"Matematika 88", ""}, renderer)
		res, err := p.ProcessPDF(context.Background(), pdf)
		if err != nil {
			t.Fatal(err)
		}
		if res.Pages[0].Source != SourceTextLayer || res.Pages[1].Source != SourceOCR {
			t.Errorf("sources = %q, %q", res.Pages[0].Source, res.Pages[1].Source)
		}
		if res.Text != "Matematika 88\nBahasa Inggris 60" {
			t.Errorf("Text = %q", res.Text)
		}
	})
}

func TestPipeline_Errors(t *testing.T) {
	dir := t.TempDir()
	p := newTestPipeline(t, scripted("paddle", "Matematika 85"), &fakeRenderer{t: t, pages: 1}, "")

	tests := []struct {
		name string
		path string
		kind Kind
	}{
		{"unsupported", writeFile(t, filepath.Join(dir, "notes.docx"), []byte("x")), KindUnsupported},
		{"missing", filepath.Join(dir, "missing.png"), KindUnreadable},
		{"corrupt image", writeFile(t, filepath.Join(dir, "broken.png"), []byte("not a png")), KindUnreadable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Process(context.Background(), tt.path)
			de, ok := AsDocumentError(err)
			if !ok {
				t.Fatalf("error = %v, want DocumentError", err)
			}
			if de.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", de.Kind, tt.kind)
			}
		})
	}
}

func TestDocumentError_JSON(t *testing.T) {
	err := newError(KindRecognition, "rapor", "page 2", errors.New("timeout"))
	data, _ := json.Marshal(err)
	want := `{"kind":"recognition_failed","document":"rapor","detail":"page 2: timeout"}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
	if !strings.Contains(err.Error(), "recognition_failed: rapor") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestSupported(t *testing.T) {
	for path, want := range map[string]bool{
		"a.pdf": true, "a.PDF": true, "a.png": true, "a.JPG": true, "a.jpeg": true,
		"a.tiff": true, "a.txt": false, "pdf": false,
	} {
		if got := Supported(path); got != want {
			t.Errorf("Supported(%q) = %v, want %v", path, got, want)
		}
	}
}
