package extract

import (
	"context"
	"testing"
)

type fakeRecognizer struct {
	name string
	text string
	conf float64
}

func (f *fakeRecognizer) Name() string { return f.name }
func (f *fakeRecognizer) Recognize(ctx context.Context, img []byte) (string, float64, error) {
	return f.text, f.conf, nil
}

func twoPages(path string, pr PageRange) ([][]byte, error) {
	return [][]byte{[]byte("page1"), []byte("page2")}, nil
}

func TestLocalOCRUsesPrimaryWhenConfident(t *testing.T) {
	ocr := NewLocalOCR(twoPages, nil, &fakeRecognizer{name: "primary", text: "good", conf: 0.9}, nil, 0.5)
	result, err := ocr.Extract(context.Background(), FileRef{Path: "x"}, PageRange{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, p := range result.Pages {
		if p.Text != "good" {
			t.Fatalf("expected primary text, got %q", p.Text)
		}
	}
}

func TestLocalOCRFallsBackToSecondaryOnLowConfidence(t *testing.T) {
	primary := &fakeRecognizer{name: "primary", text: "blurry", conf: 0.2}
	secondary := &fakeRecognizer{name: "secondary", text: "clear", conf: 0.8}
	ocr := NewLocalOCR(twoPages, nil, primary, secondary, 0.5)

	result, err := ocr.Extract(context.Background(), FileRef{Path: "x"}, PageRange{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, p := range result.Pages {
		if p.Text != "clear" {
			t.Fatalf("expected secondary text on low confidence, got %q", p.Text)
		}
	}
}

func TestLocalOCRKeepsPrimaryWhenSecondaryWorse(t *testing.T) {
	primary := &fakeRecognizer{name: "primary", text: "ok", conf: 0.3}
	secondary := &fakeRecognizer{name: "secondary", text: "worse", conf: 0.1}
	ocr := NewLocalOCR(twoPages, nil, primary, secondary, 0.5)

	result, _ := ocr.Extract(context.Background(), FileRef{Path: "x"}, PageRange{})
	for _, p := range result.Pages {
		if p.Text != "ok" {
			t.Fatalf("expected primary text retained, got %q", p.Text)
		}
	}
}
