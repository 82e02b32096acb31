// Package requirementsimport parses a bulk tender-requirement spreadsheet
// into models.Requirement rows, as an alternative to running a full tender
// notice PDF through the extraction cascade. The header-synonym matching
// is grounded on converter.HeaderSynonyms/ColumnMapper's fixed lookup
// table approach; the workbook reading itself reuses the teacher's
// ExcelService pattern of opening the first sheet and treating row 1 as
// headers.
package requirementsimport

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/procurematch/attestation-pipeline/internal/models"
)

// Field is a canonical requirement column.
type Field string

const (
	FieldCode           Field = "code"
	FieldDescription    Field = "description"
	FieldRequiredQty    Field = "required_quantity"
	FieldUnit           Field = "unit"
	FieldAllowSum       Field = "allow_sum"
	FieldActivityTag    Field = "activity_tag"
	FieldMandatoryTerms Field = "mandatory_terms"
)

// headerSynonyms maps lowercased header text to a canonical field, in the
// style of converter.HeaderSynonyms.
var headerSynonyms = map[string]Field{
	"code":       FieldCode,
	"item code":  FieldCode,
	"item_code":  FieldCode,
	"codigo":     FieldCode,
	"código":     FieldCode,

	"description": FieldDescription,
	"descricao":   FieldDescription,
	"descrição":   FieldDescription,
	"service":     FieldDescription,
	"item":        FieldDescription,

	"required_quantity": FieldRequiredQty,
	"required quantity":  FieldRequiredQty,
	"quantity":           FieldRequiredQty,
	"quantidade":         FieldRequiredQty,
	"qty":                FieldRequiredQty,

	"unit":   FieldUnit,
	"unidade": FieldUnit,
	"um":      FieldUnit,

	"allow_sum": FieldAllowSum,
	"allow sum": FieldAllowSum,
	"sum":       FieldAllowSum,

	"activity_tag": FieldActivityTag,
	"activity":     FieldActivityTag,
	"atividade":    FieldActivityTag,

	"mandatory_terms": FieldMandatoryTerms,
	"mandatory terms":  FieldMandatoryTerms,
	"termos":           FieldMandatoryTerms,
}

// ParseResult is the outcome of parsing a workbook: the rows that mapped
// cleanly plus any headers the synonym table didn't recognize, so a caller
// can surface them instead of silently dropping data.
type ParseResult struct {
	Requirements []models.Requirement
	Unmapped     []string
}

// ParseXLSX reads the first sheet of an Excel workbook and maps its
// columns into Requirement rows. Row 1 must be headers.
func ParseXLSX(path string) (*ParseResult, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("workbook must have a header row and at least one data row")
	}

	colMap, unmapped := mapColumns(rows[0])
	if _, ok := colMap[FieldDescription]; !ok {
		return nil, fmt.Errorf("workbook is missing a description column")
	}
	if _, ok := colMap[FieldRequiredQty]; !ok {
		return nil, fmt.Errorf("workbook is missing a quantity column")
	}

	result := &ParseResult{Unmapped: unmapped}
	for _, row := range rows[1:] {
		req, ok := rowToRequirement(row, colMap)
		if !ok {
			continue
		}
		result.Requirements = append(result.Requirements, req)
	}
	return result, nil
}

func mapColumns(headers []string) (map[Field]int, []string) {
	colMap := make(map[Field]int)
	var unmapped []string
	for i, h := range headers {
		normalized := strings.ToLower(strings.TrimSpace(h))
		if field, ok := headerSynonyms[normalized]; ok {
			if _, exists := colMap[field]; !exists {
				colMap[field] = i
			}
			continue
		}
		unmapped = append(unmapped, h)
	}
	return colMap, unmapped
}

func rowToRequirement(row []string, colMap map[Field]int) (models.Requirement, bool) {
	cell := func(f Field) string {
		idx, ok := colMap[f]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	description := cell(FieldDescription)
	if description == "" {
		return models.Requirement{}, false
	}

	qtyStr := strings.ReplaceAll(cell(FieldRequiredQty), ",", ".")
	qty, err := strconv.ParseFloat(qtyStr, 64)
	if err != nil {
		return models.Requirement{}, false
	}

	req := models.Requirement{
		Code:        cell(FieldCode),
		Description: description,
		RequiredQty: qty,
		Unit:        cell(FieldUnit),
		ActivityTag: cell(FieldActivityTag),
	}

	if raw := cell(FieldAllowSum); raw != "" {
		if allow, err := strconv.ParseBool(raw); err == nil {
			req.AllowSum = &allow
		}
	}

	if raw := cell(FieldMandatoryTerms); raw != "" {
		for _, term := range strings.Split(raw, ";") {
			term = strings.TrimSpace(term)
			if term != "" {
				req.MandatoryTerms = append(req.MandatoryTerms, term)
			}
		}
	}

	return req, true
}
