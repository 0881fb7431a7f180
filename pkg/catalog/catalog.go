// Package catalog reads the table of available CT nodule patches and picks a
// patch whose native size suits a requested on-image diameter.
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"nodulesynth/internal/models"
)

const (
	nameColumn     = "img_name"
	diameterColumn = "diameter"
)

// Load reads a patch catalog CSV with (at least) img_name and diameter columns
func Load(path string) ([]models.PatchCatalogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open patch catalog")
	}
	defer f.Close()

	entries, err := Read(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read patch catalog %v", path)
	}
	return entries, nil
}

// Read parses catalog rows from r. The first row is the header.
func Read(r io.Reader) ([]models.PatchCatalogEntry, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("catalog is empty, expected a header row")
	}
	if err != nil {
		return nil, err
	}

	nameIdx, diamIdx := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case nameColumn:
			nameIdx = i
		case diameterColumn:
			diamIdx = i
		}
	}
	if nameIdx < 0 || diamIdx < 0 {
		return nil, fmt.Errorf("catalog header must contain %q and %q columns, got: %v", nameColumn, diameterColumn, header)
	}

	entries := []models.PatchCatalogEntry{}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		diameter, err := strconv.ParseFloat(strings.TrimSpace(record[diamIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid diameter %q", line, record[diamIdx])
		}
		entries = append(entries, models.PatchCatalogEntry{
			ImageName: strings.TrimSpace(record[nameIdx]),
			Diameter:  diameter,
		})
	}
	return entries, nil
}
