package models

import "time"

// BBox is an axis-aligned pixel rectangle. X1/Y1 is the top-left corner.
type BBox struct {
	X1 int `json:"x1" yaml:"x1"`
	Y1 int `json:"y1" yaml:"y1"`
	X2 int `json:"x2" yaml:"x2"`
	Y2 int `json:"y2" yaml:"y2"`
}

func (b BBox) Width() int  { return b.X2 - b.X1 }
func (b BBox) Height() int { return b.Y2 - b.Y1 }

// Area is width*height; degenerate boxes report zero or a negative value.
func (b BBox) Area() int { return b.Width() * b.Height() }

// CenterY is the vertical midpoint, kept fractional for row grouping.
func (b BBox) CenterY() float64 { return float64(b.Y1+b.Y2) / 2 }

// Array returns [x1, y1, x2, y2].
func (b BBox) Array() [4]int { return [4]int{b.X1, b.Y1, b.X2, b.Y2} }

// Detection is one spine candidate reported by a detector backend
type Detection struct {
	BBox       BBox
	Confidence float64
	Index      int
}

// Extraction is the structured reading of a single spine.
// Build values with extraction.NewExtraction so the field limits hold.
type Extraction struct {
	Title       string  `json:"title" yaml:"title"`
	Author      *string `json:"author" yaml:"author"`
	Confidence  float64 `json:"confidence" yaml:"confidence"`
	RawResponse string  `json:"-" yaml:"rawresponse,omitempty"`
}

// ImageLinks holds the cover thumbnails of a catalog item
type ImageLinks struct {
	Thumbnail      *string `json:"thumbnail" yaml:"thumbnail,omitempty"`
	SmallThumbnail *string `json:"smallThumbnail" yaml:"smallthumbnail,omitempty"`
}

// LookupItem is the compact form of a Google Books volume
type LookupItem struct {
	ID                 string     `json:"id" yaml:"id"`
	Title              *string    `json:"title" yaml:"title,omitempty"`
	Authors            []string   `json:"authors" yaml:"authors"`
	PublishedDate      *string    `json:"publishedDate" yaml:"publisheddate,omitempty"`
	Categories         []string   `json:"categories" yaml:"categories"`
	AverageRating      *float64   `json:"averageRating" yaml:"averagerating,omitempty"`
	RatingsCount       *int64     `json:"ratingsCount" yaml:"ratingscount,omitempty"`
	PageCount          *int64     `json:"pageCount" yaml:"pagecount,omitempty"`
	ImageLinks         ImageLinks `json:"imageLinks" yaml:"imagelinks"`
	Publisher          *string    `json:"publisher" yaml:"publisher,omitempty"`
	InfoLink           *string    `json:"infoLink" yaml:"infolink,omitempty"`
	PreviewLink        *string    `json:"previewLink" yaml:"previewlink,omitempty"`
	DescriptionSnippet string     `json:"descriptionSnippet" yaml:"descriptionsnippet"`
}

// SearchResult is a catalog response with compacted items
type SearchResult struct {
	TotalItems int          `json:"totalItems" yaml:"totalitems"`
	Items      []LookupItem `json:"items" yaml:"items"`
}

// Lookup is the catalog outcome for one spine. Error is set instead of
// failing the whole capture.
type Lookup struct {
	TotalItems int          `json:"totalItems" yaml:"totalitems"`
	Items      []LookupItem `json:"items" yaml:"items"`
	Error      *string      `json:"error" yaml:"error,omitempty"`
}

// SpineResult is one entry of a capture response, in reading order
type SpineResult struct {
	SpineIndex int        `json:"spineIndex" yaml:"spineindex"`
	BBox       [4]int     `json:"bbox" yaml:"bbox,flow"`
	Confidence float64    `json:"confidence" yaml:"confidence"`
	Extraction Extraction `json:"extraction" yaml:"extraction"`
	Lookup     Lookup     `json:"lookup" yaml:"lookup"`
}

// Timings are stage durations in milliseconds rounded to two decimals
type Timings struct {
	Detect        float64 `json:"detect" yaml:"detect"`
	ExtractLookup float64 `json:"extractLookup" yaml:"extractlookup"`
	Total         float64 `json:"total" yaml:"total"`
}

// CaptureResult is the full response of one capture
type CaptureResult struct {
	ID          string        `json:"id" yaml:"id"`
	Count       int           `json:"count" yaml:"count"`
	FrameWidth  int           `json:"frameWidth" yaml:"framewidth"`
	FrameHeight int           `json:"frameHeight" yaml:"frameheight"`
	Spines      []SpineResult `json:"spines" yaml:"spines"`
	TimingsMs   Timings       `json:"timingsMs" yaml:"timingsms"`
}

// DetectedBox is the detect-only view of a detection
type DetectedBox struct {
	Index      int     `json:"index" yaml:"index"`
	BBox       [4]int  `json:"bbox" yaml:"bbox,flow"`
	X1         int     `json:"x1" yaml:"x1"`
	Y1         int     `json:"y1" yaml:"y1"`
	X2         int     `json:"x2" yaml:"x2"`
	Y2         int     `json:"y2" yaml:"y2"`
	X          int     `json:"x" yaml:"x"`
	Y          int     `json:"y" yaml:"y"`
	W          int     `json:"w" yaml:"w"`
	H          int     `json:"h" yaml:"h"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// NewDetectedBox flattens a detection into its response shape
func NewDetectedBox(d Detection) DetectedBox {
	return DetectedBox{
		Index:      d.Index,
		BBox:       d.BBox.Array(),
		X1:         d.BBox.X1,
		Y1:         d.BBox.Y1,
		X2:         d.BBox.X2,
		Y2:         d.BBox.Y2,
		X:          d.BBox.X1,
		Y:          d.BBox.Y1,
		W:          d.BBox.Width(),
		H:          d.BBox.Height(),
		Confidence: d.Confidence,
	}
}

// DetectResult is the response of a detect-only request
type DetectResult struct {
	Boxes       []DetectedBox `json:"boxes" yaml:"boxes"`
	Count       int           `json:"count" yaml:"count"`
	FrameWidth  int           `json:"frameWidth" yaml:"framewidth"`
	FrameHeight int           `json:"frameHeight" yaml:"frameheight"`
	InferenceMs float64       `json:"inferenceMs" yaml:"inferencems"`
}

// CaptureSession is a stored capture, kept so clients can re-read recent scans
type CaptureSession struct {
	ID        string         `json:"id"`
	Filename  string         `json:"filename,omitempty"`
	Result    *CaptureResult `json:"result"`
	CreatedAt time.Time      `json:"created_at"`
}
