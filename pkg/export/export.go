// Package export writes the organization registry and linked records as
// ordered tables for downstream consumers.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Ramsey-B/fern/pkg/models"
)

// OrganizationColumns is the registry export header.
var OrganizationColumns = []string{
	"organization_id",
	"company_name",
	"address",
	"locality",
	"region",
	"postal_code",
	"country",
	"external_org_ref",
	"external_location_ref",
}

// LinkColumns is the linked record export header.
var LinkColumns = []string{
	"source",
	"record_id",
	"organization_id",
	"matched",
	"overall_score",
	"name_score",
	"ambiguous",
	"company_name",
	"address",
	"locality",
	"region",
	"postal_code",
	"country",
	"linked_at",
}

// Table is an ordered header plus rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// OrganizationTable renders organizations in the given (insertion) order.
func OrganizationTable(orgs []models.Organization) Table {
	rows := make([][]string, 0, len(orgs))
	for _, o := range orgs {
		refs := o.Refs()
		rows = append(rows, []string{
			o.ID, o.Name, o.Address, o.Locality, o.Region, o.PostalCode, o.Country,
			refs.OrgRef, refs.LocationRef,
		})
	}
	return Table{Header: OrganizationColumns, Rows: rows}
}

// LinkTable renders linked records in input order.
func LinkTable(links []models.LinkedRecord) Table {
	rows := make([][]string, 0, len(links))
	for _, l := range links {
		rows = append(rows, []string{
			string(l.Source),
			l.RecordID,
			l.OrganizationID,
			strconv.FormatBool(l.Matched),
			strconv.FormatFloat(l.OverallScore, 'f', -1, 64),
			strconv.FormatFloat(l.NameScore, 'f', -1, 64),
			strconv.FormatBool(l.Ambiguous),
			l.Name, l.Address, l.Locality, l.Region, l.PostalCode, l.Country,
			l.LinkedAt.Format(time.RFC3339),
		})
	}
	return Table{Header: LinkColumns, Rows: rows}
}

// WriteCSV writes the table with its header row.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to write csv rows: %w", err)
	}
	return nil
}

// Sheet is one named worksheet of an xlsx workbook.
type Sheet struct {
	Name  string
	Table Table
}

// WriteXLSX writes each table to its own worksheet, first sheet active.
func WriteXLSX(w io.Writer, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("at least one sheet is required")
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	first := -1
	for _, sheet := range sheets {
		index, err := f.NewSheet(sheet.Name)
		if err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sheet.Name, err)
		}
		if first < 0 {
			first = index
		}
		if err := writeSheet(f, sheet, headerStyle); err != nil {
			return err
		}
	}

	f.SetActiveSheet(first)
	if sheets[0].Name != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return fmt.Errorf("failed to remove default sheet: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet Sheet, headerStyle int) error {
	for i, header := range sheet.Table.Header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet.Name, cell, header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		if err := f.SetCellStyle(sheet.Name, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet.Name, col, col, 22)
	}

	for r, row := range sheet.Table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		for i, v := range row {
			values[i] = v
		}
		if err := f.SetSheetRow(sheet.Name, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r+2, err)
		}
	}
	return nil
}

// ReadXLSXSheet reads one worksheet back as a table, first row as header.
func ReadXLSXSheet(r io.Reader, sheet string) (Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Table{}, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return Table{}, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return Table{}, nil
	}
	return Table{Header: rows[0], Rows: rows[1:]}, nil
}
