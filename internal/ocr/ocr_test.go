package ocr

import "testing"

func TestLanguage(t *testing.T) {
	tests := []struct {
		name     string
		provider *Tesseract
		model    string
		want     string
	}{
		{"default", New(""), "", "eng"},
		{"configured", New("deu"), "", "deu"},
		{"request wins", New("deu"), "fra", "fra"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.provider.language(tt.model); got != tt.want {
				t.Errorf("language() = %q, want %q", got, tt.want)
			}
		})
	}
}
