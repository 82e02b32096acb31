package requirementsimport

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, headers []string, rows [][]string) string {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			t.Fatalf("set header: %v", err)
		}
	}
	for r, row := range rows {
		for col, v := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}

	path := filepath.Join(t.TempDir(), "requirements.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

func TestParseXLSXMapsKnownHeaders(t *testing.T) {
	path := buildWorkbook(t,
		[]string{"Codigo", "Descricao", "Quantidade", "Unidade", "Activity"},
		[][]string{
			{"01.01", "Pavimentacao asfaltica", "1000", "M2", "paving"},
			{"01.02", "Drenagem pluvial", "300", "M", "drainage"},
		},
	)

	result, err := ParseXLSX(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Requirements) != 2 {
		t.Fatalf("expected 2 requirements, got %d", len(result.Requirements))
	}
	if result.Requirements[0].RequiredQty != 1000 {
		t.Fatalf("expected quantity 1000, got %v", result.Requirements[0].RequiredQty)
	}
	if result.Requirements[1].ActivityTag != "drainage" {
		t.Fatalf("expected activity tag drainage, got %q", result.Requirements[1].ActivityTag)
	}
}

func TestParseXLSXReportsUnmappedHeaders(t *testing.T) {
	path := buildWorkbook(t,
		[]string{"Descricao", "Quantidade", "Observations"},
		[][]string{{"Escavacao manual", "50", "notes here"}},
	)

	result, err := ParseXLSX(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Unmapped) != 1 || result.Unmapped[0] != "Observations" {
		t.Fatalf("expected Observations reported unmapped, got %v", result.Unmapped)
	}
}

func TestParseXLSXRejectsMissingQuantityColumn(t *testing.T) {
	path := buildWorkbook(t, []string{"Descricao", "Unidade"}, [][]string{{"Terraplenagem", "M3"}})

	if _, err := ParseXLSX(path); err == nil {
		t.Fatal("expected error for missing quantity column")
	}
}

func TestParseXLSXSkipsRowsWithUnparsableQuantity(t *testing.T) {
	path := buildWorkbook(t,
		[]string{"Descricao", "Quantidade"},
		[][]string{
			{"Valid service", "120"},
			{"Invalid service", "not-a-number"},
		},
	)

	result, err := ParseXLSX(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Requirements) != 1 {
		t.Fatalf("expected 1 valid requirement, got %d", len(result.Requirements))
	}
}
