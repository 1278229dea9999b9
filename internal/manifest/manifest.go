// Package manifest reads batch manifests and writes batch result workbooks (xlsx).
package manifest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"chat-audit-go/internal/logger"
)

// Row is one file listed in a batch manifest.
type Row struct {
	Line     int
	Path     string
	MimeType string
	Name     string
}

// Load reads the first sheet of an xlsx manifest, detecting the path, mime and name
// columns by header heuristics. Relative paths resolve against the manifest directory.
func Load(path string) ([]Row, error) {
	log := logger.New().WithField("component", "manifest").WithField("path", path)
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}

	pathIdx, mimeIdx, nameIdx := detectColumns(rows[0])
	if pathIdx == -1 {
		// fall back to the first column
		pathIdx = 0
	}
	log.WithFields(map[string]interface{}{
		"pathIdx": pathIdx,
		"mimeIdx": mimeIdx,
		"nameIdx": nameIdx,
	}).Debug("detected manifest column indices")

	base := filepath.Dir(path)
	var out []Row
	for i, r := range rows {
		if i == 0 {
			continue
		}
		row := Row{Line: i + 1, Path: cell(r, pathIdx), MimeType: cell(r, mimeIdx), Name: cell(r, nameIdx)}
		if row.Path == "" {
			// skip blank rows quietly
			continue
		}
		if !filepath.IsAbs(row.Path) {
			row.Path = filepath.Join(base, row.Path)
		}
		if row.Name == "" {
			row.Name = filepath.Base(row.Path)
		}
		out = append(out, row)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no files listed")
	}
	log.WithField("files", len(out)).Info("manifest loaded")
	return out, nil
}

func detectColumns(header []string) (pathIdx, mimeIdx, nameIdx int) {
	pathIdx, mimeIdx, nameIdx = -1, -1, -1
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "path") || strings.Contains(l, "location") || l == "file":
			if pathIdx == -1 {
				pathIdx = i
			}
		case strings.Contains(l, "mime") || strings.Contains(l, "type"):
			if mimeIdx == -1 {
				mimeIdx = i
			}
		case strings.Contains(l, "name"):
			if nameIdx == -1 {
				nameIdx = i
			}
		}
	}
	return pathIdx, mimeIdx, nameIdx
}

func cell(r []string, idx int) string {
	if idx < 0 || idx >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[idx])
}
