package detection

import (
	"context"
	"image"
	"math"

	"github.com/anthonynsimon/bild/blend"
	"github.com/anthonynsimon/bild/effect"
	"github.com/lehigh-university-libraries/shelfscanner/internal/models"
)

// EdgeBackend is an offline detector. Shelf boards show up as rows of strong
// edges and spine boundaries as columns of strong edges, so the frame is cut
// into shelf bands first and each band into spine strips.
type EdgeBackend struct {
	// MinSpineWidth in pixels; zero means 1% of the frame width, at least 4
	MinSpineWidth int
}

// rows whose mean edge strength exceeds the frame mean by this factor are shelf boards
const boardFactor = 2.5

func (b *EdgeBackend) Predict(ctx context.Context, img image.Image) ([]models.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	edges := edgeMap(img)
	bounds := edges.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return []models.Detection{}, nil
	}

	minWidth := b.MinSpineWidth
	if minWidth <= 0 {
		minWidth = max(4, w/100)
	}
	minBand := max(minWidth, h/10)

	var detections []models.Detection
	for _, band := range shelfBands(rowProfile(edges), minBand) {
		profile := columnProfile(edges, band[0], band[1])
		peaks := findPeaks(profile, minWidth)
		if len(peaks) == 0 {
			continue
		}

		strongest := 0.0
		for _, p := range peaks {
			strongest = math.Max(strongest, profile[p])
		}

		cuts := append([]int{0}, peaks...)
		cuts = append(cuts, w)
		for i := 0; i+1 < len(cuts); i++ {
			x1, x2 := cuts[i], cuts[i+1]
			if x2-x1 < minWidth {
				continue
			}
			detections = append(detections, models.Detection{
				BBox:       models.BBox{X1: x1, Y1: band[0], X2: x2, Y2: band[1]},
				Confidence: boundaryStrength(profile, x1, x2, strongest),
				Index:      len(detections),
			})
		}
	}
	if detections == nil {
		detections = []models.Detection{}
	}
	return detections, nil
}

// edgeMap is the Sobel magnitude of the grayscale frame. bild clamps negative
// gradients to zero, so the inverted frame supplies light-to-dark edges.
// Every channel of the result carries the same value.
func edgeMap(img image.Image) *image.RGBA {
	gray := effect.Grayscale(img)
	return blend.Add(effect.Sobel(gray), effect.Sobel(effect.Invert(gray)))
}

// rowProfile is the mean edge strength of every row
func rowProfile(edges *image.RGBA) []float64 {
	b := edges.Bounds()
	w := b.Dx()
	out := make([]float64, b.Dy())
	for y := 0; y < b.Dy(); y++ {
		sum := 0
		i := edges.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < w; x++ {
			sum += int(edges.Pix[i+x*4])
		}
		out[y] = float64(sum) / float64(w)
	}
	return out
}

// columnProfile is the mean edge strength of every column between rows y1 and y2
func columnProfile(edges *image.RGBA, y1, y2 int) []float64 {
	b := edges.Bounds()
	w := b.Dx()
	out := make([]float64, w)
	for y := y1; y < y2; y++ {
		i := edges.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < w; x++ {
			out[x] += float64(edges.Pix[i+x*4])
		}
	}
	if n := float64(y2 - y1); n > 0 {
		for x := range out {
			out[x] /= n
		}
	}
	return out
}

// shelfBands splits the frame at board rows, keeping bands at least minHeight tall
func shelfBands(rows []float64, minHeight int) [][2]int {
	threshold := mean(rows) * boardFactor

	var bands [][2]int
	start := -1
	for y := 0; y <= len(rows); y++ {
		board := y == len(rows) || (threshold > 0 && rows[y] > threshold)
		switch {
		case !board && start < 0:
			start = y
		case board && start >= 0:
			if y-start >= minHeight {
				bands = append(bands, [2]int{start, y})
			}
			start = -1
		}
	}
	return bands
}

// findPeaks returns local maxima above mean plus one standard deviation,
// at least minGap apart. The first column of a plateau wins.
func findPeaks(profile []float64, minGap int) []int {
	m := mean(profile)
	variance := 0.0
	for _, v := range profile {
		variance += (v - m) * (v - m)
	}
	threshold := m + math.Sqrt(variance/float64(max(1, len(profile))))

	var peaks []int
	for x, v := range profile {
		if v <= 0 || v <= threshold {
			continue
		}
		if x > 0 && profile[x-1] >= v {
			continue
		}
		if len(peaks) > 0 && x-peaks[len(peaks)-1] < minGap {
			last := peaks[len(peaks)-1]
			if v > profile[last] {
				peaks[len(peaks)-1] = x
			}
			continue
		}
		peaks = append(peaks, x)
	}
	return peaks
}

// boundaryStrength scores a strip by the edges that delimit it, relative to
// the strongest boundary in the band. Frame borders count as full strength.
func boundaryStrength(profile []float64, x1, x2 int, strongest float64) float64 {
	if strongest <= 0 {
		return 0
	}
	left, right := strongest, strongest
	if x1 > 0 {
		left = profile[x1]
	}
	if x2 < len(profile) {
		right = profile[x2]
	}
	return math.Min(1, (left+right)/(2*strongest))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
