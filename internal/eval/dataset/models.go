package dataset

import "path/filepath"

// SpineRecord is one labelled spine crop.
// ImagePath is resolved against the dataset file's directory when relative.
type SpineRecord struct {
	ImagePath string `json:"image_path" parquet:"image_path"`
	Title     string `json:"title" parquet:"title"`
	Author    string `json:"author" parquet:"author,optional"`
}

// ResolvePath returns the image path, joined to baseDir if it is relative
func (r *SpineRecord) ResolvePath(baseDir string) string {
	if r.ImagePath == "" || filepath.IsAbs(r.ImagePath) {
		return r.ImagePath
	}
	return filepath.Join(baseDir, r.ImagePath)
}
