// Package csvtrack parses uploaded track polylines from CSV text. Like
// pkg/geo, it is built purely on the standard library: no example
// repository in the reference set parses CSV, so
// there is no third-party pattern to follow here, and encoding/csv already
// does exactly what the upload(csv_text, ...) contract requires.
package csvtrack

import (
	"encoding/csv"
	"strconv"
	"strings"

	"github.com/gatdilshan/railway-safety-research/internal/model"
)

// Parse reads a header row containing at least lat/lon columns
// (case-insensitively) followed by data rows, and returns the well-formed
// vertices. Malformed rows (missing columns, non-numeric lat/lon) are
// skipped silently, matching the upload contract; the
// caller is responsible for rejecting the result if it ends up empty.
func Parse(csvText string) ([]model.Vertex, error) {
	r := csv.NewReader(strings.NewReader(csvText))
	r.FieldsPerRecord = -1 // tolerate ragged rows; they're skipped below anyway

	header, err := r.Read()
	if err != nil {
		return nil, nil
	}

	latCol, lonCol := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "lat":
			latCol = i
		case "lon":
			lonCol = i
		}
	}
	if latCol == -1 || lonCol == -1 {
		return nil, nil
	}

	var vertices []model.Vertex
	for {
		row, err := r.Read()
		if err != nil {
			break
		}
		if latCol >= len(row) || lonCol >= len(row) {
			continue
		}
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(row[latCol]), 64)
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(row[lonCol]), 64)
		if errLat != nil || errLon != nil {
			continue
		}
		vertices = append(vertices, model.Vertex{Lat: lat, Lon: lon})
	}
	return vertices, nil
}
