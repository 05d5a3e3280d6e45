package profile

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const registrySheet = "Patients"

var RegistryExportHeader = []string{
	"Patient ID",
	"Full Name",
	"Age",
	"Gender",
	"Joined",
	"Latest BMI Category",
}

var registryColumnWidths = []float64{38, 28, 8, 18, 20, 20}

// GenerateRegistryExport writes entries to a single-sheet workbook with a
// frozen, styled header row.
func GenerateRegistryExport(entries []*RegistryEntry) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(registrySheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for col, header := range RegistryExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(registrySheet, cell, header); err != nil {
			return nil, fmt.Errorf("set header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(registrySheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("style header %s: %w", cell, err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(registrySheet, name, name, registryColumnWidths[col]); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	for i, e := range entries {
		if err := f.SetSheetRow(registrySheet, fmt.Sprintf("A%d", i+2), &[]any{
			e.ID.String(),
			e.FullName,
			intOrBlank(e.Age),
			genderLabel(e.Gender),
			e.CreatedAt.UTC().Format("2006-01-02"),
			stringOrBlank(e.LatestBMICategory),
		}); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(registrySheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func intOrBlank(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}

func stringOrBlank(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func genderLabel(g *string) string {
	if g == nil || *g == "" {
		return ""
	}
	if *g == GenderPreferNotToSay {
		return "Prefer not to say"
	}
	return strings.ToUpper((*g)[:1]) + (*g)[1:]
}
