package input

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadGlossaryXLSX loads a two-column (source term, target term) glossary
// from the first sheet of an XLSX workbook, skipping the first row when
// either of its two cells is a common column name (source, term, original,
// target, translation). Adapted from the
// teacher's XLSXParser, which reads every sheet into generic markdown
// tables; a glossary has a fixed two-column shape so only that is kept.
func ReadGlossaryXLSX(path string) (map[string]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("input: opening glossary xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("input: glossary xlsx has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("input: reading glossary sheet: %w", err)
	}

	glossary := make(map[string]string)
	for i, row := range rows {
		if len(row) < 2 {
			continue
		}
		source, target := row[0], row[1]
		if i == 0 && looksLikeHeader(source, target) {
			continue
		}
		if source == "" || target == "" {
			continue
		}
		glossary[source] = target
	}

	return glossary, nil
}

func looksLikeHeader(source, target string) bool {
	headers := map[string]bool{
		"source": true, "term": true, "original": true,
		"target": true, "translation": true,
	}
	return headers[strings.ToLower(source)] || headers[strings.ToLower(target)]
}
