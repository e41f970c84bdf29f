// Package ocr reads spine text with Tesseract as an offline alternative to
// vision-language models. Build with -tags tesseract to enable it; the
// native library must be installed.
package ocr

import "errors"

// ErrNotCompiled is returned when the binary was built without -tags tesseract
var ErrNotCompiled = errors.New("tesseract support not compiled in, rebuild with -tags tesseract")

// Tesseract is a providers.Provider backed by gosseract
type Tesseract struct {
	Language string
}

// New returns a Tesseract provider for the given language
func New(language string) *Tesseract {
	return &Tesseract{Language: language}
}

func (t *Tesseract) language(model string) string {
	if model != "" {
		return model
	}
	if t.Language != "" {
		return t.Language
	}
	return "eng"
}
