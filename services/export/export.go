// Package export writes certificate records as CSV or Excel workbooks for
// administrators.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"certhub/models"

	"github.com/xuri/excelize/v2"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"

	SheetName = "Certificates"

	timestampLayout = "2006-01-02T15:04:05Z07:00"
	dateLayout      = "2006-01-02"
)

// Columns is the header row shared by both formats.
var Columns = []string{
	"Certificate Number", "Full Name", "Email", "Course", "Course Subtitle",
	"Issue Date", "Instructor", "Status", "Revoke Reason", "Verification Count",
	"Last Verified At", "Expiry Date", "Score", "Verification URL", "Created At",
}

// ParseFormat accepts "csv" or "xlsx" (case-insensitive); empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX, "excel":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// FileName returns e.g. certificates-20260301.xlsx.
func (f Format) FileName(at time.Time) string {
	return fmt.Sprintf("certificates-%s.%s", at.Format("20060102"), f)
}

// Write encodes certs in the given format.
func Write(w io.Writer, f Format, certs []models.Certificate) error {
	switch f {
	case FormatXLSX:
		return WriteXLSX(w, certs)
	case FormatCSV:
		return WriteCSV(w, certs)
	}
	return fmt.Errorf("unsupported export format %q", f)
}

func WriteCSV(w io.Writer, certs []models.Certificate) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, c := range certs {
		if err := writer.Write(row(c)); err != nil {
			return fmt.Errorf("failed to write row %s: %w", c.CertificateNumber, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func WriteXLSX(w io.Writer, certs []models.Certificate) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}

	headerStyle, err := file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"00004D"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, col := range Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := file.SetCellValue(SheetName, cell, col); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(Columns), 1)
	if err := file.SetCellStyle(SheetName, "A1", last, headerStyle); err != nil {
		return err
	}

	countCol := columnIndex("Verification Count")
	for r, c := range certs {
		values := row(c)
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			var err error
			if i == countCol {
				err = file.SetCellValue(SheetName, cell, c.VerificationCount)
			} else {
				err = file.SetCellValue(SheetName, cell, v)
			}
			if err != nil {
				return err
			}
		}
	}

	if err := file.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(Columns))
	if err := file.SetColWidth(SheetName, "A", lastCol, 22); err != nil {
		return err
	}

	if _, err := file.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func columnIndex(name string) int {
	for i, c := range Columns {
		if c == name {
			return i
		}
	}
	return -1
}

func row(c models.Certificate) []string {
	return []string{
		cell(c.CertificateNumber),
		cell(c.FullName),
		cell(c.Email),
		cell(c.CourseName),
		cell(c.CourseSubtitle),
		cell(c.IssueDate),
		cell(c.InstructorName),
		string(c.Status),
		cell(c.RevokeReason),
		strconv.FormatInt(c.VerificationCount, 10),
		formatTime(c.LastVerifiedAt, timestampLayout),
		formatTime(c.ExpiryDate, dateLayout),
		formatScore(c.Score),
		cell(c.VerificationURL),
		c.CreatedAt.UTC().Format(timestampLayout),
	}
}

// cell quotes free text that a spreadsheet would otherwise evaluate as a formula.
func cell(v string) string {
	if v == "" {
		return v
	}
	switch v[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + v
	}
	return v
}

func formatTime(t *time.Time, layout string) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(layout)
}

func formatScore(s *float64) string {
	if s == nil {
		return ""
	}
	return strconv.FormatFloat(*s, 'f', -1, 64)
}
