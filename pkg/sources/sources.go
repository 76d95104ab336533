// Package sources loads warning letters and non-compliance reports from the
// files the scrapers produce.
package sources

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/pkg/models"
)

// CompanyInfoColumn holds the scraped company block of a warning letter.
const CompanyInfoColumn = "Company Info"

var idColumns = []string{"record_id", "id", "Letter ID", "Report ID"}

// ReadWarningLetters reads a warning letter CSV. The company block is taken
// from the Company Info column (JSON or a Python dict literal) when present,
// otherwise from flat scraper columns.
func ReadWarningLetters(r io.Reader) ([]models.IncomingRecord, error) {
	header, rows, err := readCSV(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read warning letters")
	}

	info, hasInfo := header[CompanyInfoColumn]
	records := make([]models.IncomingRecord, 0, len(rows))
	for i, row := range rows {
		var letter models.WarningLetter
		if hasInfo {
			letter, err = ParseCompanyInfo(cell(row, info))
			if err != nil {
				return nil, errors.Wrapf(err, "row %d", i+2)
			}
		} else {
			raw := map[string]any{}
			for name, idx := range header {
				raw[name] = cell(row, idx)
			}
			data, _ := json.Marshal(raw)
			if err := json.Unmarshal(data, &letter); err != nil {
				return nil, errors.Wrapf(err, "row %d", i+2)
			}
		}
		records = append(records, models.NewWarningLetterRecord(recordID(header, row), letter))
	}
	return records, nil
}

// ReadComplianceReports reads a non-compliance report CSV keyed by the site columns.
func ReadComplianceReports(r io.Reader) ([]models.IncomingRecord, error) {
	header, rows, err := readCSV(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read compliance reports")
	}

	col := func(row []string, name string) string {
		idx, ok := header[name]
		if !ok {
			return ""
		}
		return cell(row, idx)
	}

	records := make([]models.IncomingRecord, 0, len(rows))
	for _, row := range rows {
		report := models.ComplianceReport{
			SiteName:                  col(row, "Site Name"),
			SiteAddress:               col(row, "Site Address"),
			City:                      col(row, "City"),
			Postcode:                  col(row, "Postcode"),
			Country:                   col(row, "Country"),
			OMSOrganisationIdentifier: col(row, "OMS Organisation Identifier"),
			OMSLocationIdentifier:     col(row, "OMS Location Identifier"),
		}
		records = append(records, models.NewComplianceReportRecord(recordID(header, row), report))
	}
	return records, nil
}

// ReadJSONLines reads one IncomingRecord per non-blank line.
func ReadJSONLines(r io.Reader) ([]models.IncomingRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	records := []models.IncomingRecord{}
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var record models.IncomingRecord
		if err := json.Unmarshal([]byte(text), &record); err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to scan records")
	}
	return records, nil
}

// ParseCompanyInfo decodes a company block written either as JSON or as a
// Python dict literal. A blank cell yields an empty letter.
func ParseCompanyInfo(s string) (models.WarningLetter, error) {
	var letter models.WarningLetter
	s = strings.TrimSpace(s)
	if s == "" {
		return letter, nil
	}
	data := []byte(s)
	if !json.Valid(data) {
		converted, err := pythonLiteralToJSON(s)
		if err != nil {
			return letter, err
		}
		data = converted
	}
	if err := json.Unmarshal(data, &letter); err != nil {
		return letter, errors.Wrap(err, "invalid company info")
	}
	return letter, nil
}

// pythonLiteralToJSON rewrites single-quoted strings and the None/True/False
// keywords. Other tokens pass through unchanged.
func pythonLiteralToJSON(s string) ([]byte, error) {
	var b strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '\'' || c == '"':
			value, next, err := readQuoted(runes, i)
			if err != nil {
				return nil, err
			}
			b.WriteString(strconv.Quote(value))
			i = next
		case isIdentStart(c):
			j := i
			for j < len(runes) && isIdentStart(runes[j]) {
				j++
			}
			switch word := string(runes[i:j]); word {
			case "None":
				b.WriteString("null")
			case "True":
				b.WriteString("true")
			case "False":
				b.WriteString("false")
			default:
				return nil, fmt.Errorf("unexpected identifier %q at offset %d", word, i)
			}
			i = j - 1
		default:
			b.WriteRune(c)
		}
	}
	return []byte(b.String()), nil
}

func readQuoted(runes []rune, start int) (string, int, error) {
	quote := runes[start]
	var b strings.Builder
	for i := start + 1; i < len(runes); i++ {
		c := runes[i]
		switch c {
		case '\\':
			if i+1 >= len(runes) {
				return "", 0, fmt.Errorf("unterminated escape at offset %d", i)
			}
			i++
			switch runes[i] {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			case 'r':
				b.WriteRune('\r')
			default:
				b.WriteRune(runes[i])
			}
		case quote:
			return b.String(), i, nil
		default:
			b.WriteRune(c)
		}
	}
	return "", 0, fmt.Errorf("unterminated string at offset %d", start)
}

func isIdentStart(c rune) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func readCSV(r io.Reader) (map[string]int, [][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return map[string]int{}, nil, nil
	}

	header := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := header[name]; !dup {
			header[name] = i
		}
	}
	return header, rows[1:], nil
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

func recordID(header map[string]int, row []string) string {
	for _, name := range idColumns {
		if idx, ok := header[name]; ok {
			if v := strings.TrimSpace(cell(row, idx)); v != "" {
				return v
			}
		}
	}
	return ""
}
