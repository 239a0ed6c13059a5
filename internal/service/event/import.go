package event

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// csvHeaderAliases maps accepted column names to canonical fields.
var csvHeaderAliases = map[string]string{
	"name":             "name",
	"participant":      "name",
	"participant name": "name",
	"certification id": "certification_id",
	"certification_id": "certification_id",
	"cert id":          "certification_id",
	"certificate id":   "certification_id",
	"id":               "certification_id",
	"email":            "email",
	"email address":    "email",
	"e-mail":           "email",
}

// ParseCSV reads an uploaded participant sheet. The first row must be a
// header; a "name" column is required, "certification id" and "email" are
// optional. Unknown columns are ignored.
func ParseCSV(r io.Reader) ([]ImportRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyImport
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		if field, ok := csvHeaderAliases[strings.ToLower(strings.TrimSpace(h))]; ok {
			if _, dup := cols[field]; !dup {
				cols[field] = i
			}
		}
	}
	if _, ok := cols["name"]; !ok {
		return nil, fmt.Errorf("csv has no name column (got header %q)", strings.Join(header, ","))
	}

	cell := func(record []string, field string) string {
		i, ok := cols[field]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []ImportRow
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		name := cell(record, "name")
		if name == "" {
			// Skip blank padding rows spreadsheets love to export.
			continue
		}
		rows = append(rows, ImportRow{
			Name:            name,
			CertificationID: cell(record, "certification_id"),
			Email:           cell(record, "email"),
		})
	}
	if len(rows) == 0 {
		return nil, ErrEmptyImport
	}
	return rows, nil
}
