package detection

import (
	"sort"

	"github.com/lehigh-university-libraries/shelfscanner/internal/models"
)

type row struct {
	top     int
	bottom  int
	members []models.Detection
}

func (r *row) contains(y float64) bool {
	return y >= float64(r.top) && y <= float64(r.bottom)
}

func (r *row) add(d models.Detection) {
	r.top = min(r.top, d.BBox.Y1)
	r.bottom = max(r.bottom, d.BBox.Y2)
	r.members = append(r.members, d)
}

// SortReadingOrder orders detections the way spines are read on a shelf:
// rows top to bottom, left to right within a row. Scanning left to right,
// each detection joins the first row whose vertical span contains its
// center, otherwise it opens a new row. Indexes are reassigned 0..N-1.
func SortReadingOrder(detections []models.Detection) []models.Detection {
	if len(detections) == 0 {
		return []models.Detection{}
	}

	scan := make([]models.Detection, len(detections))
	copy(scan, detections)
	sort.SliceStable(scan, func(i, j int) bool {
		return scan[i].BBox.X1 < scan[j].BBox.X1
	})

	var rows []*row
	for _, d := range scan {
		center := d.BBox.CenterY()
		var target *row
		for _, r := range rows {
			if r.contains(center) {
				target = r
				break
			}
		}
		if target == nil {
			target = &row{top: d.BBox.Y1, bottom: d.BBox.Y2}
			rows = append(rows, target)
		}
		target.add(d)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].top < rows[j].top
	})

	ordered := make([]models.Detection, 0, len(detections))
	for _, r := range rows {
		sort.SliceStable(r.members, func(i, j int) bool {
			return r.members[i].BBox.X1 < r.members[j].BBox.X1
		})
		ordered = append(ordered, r.members...)
	}

	reindex(ordered)
	return ordered
}

func reindex(detections []models.Detection) {
	for i := range detections {
		detections[i].Index = i
	}
}
