package ingest

import (
	"fmt"
	"strings"

	"helpdesk-rag/internal/helper"
	"helpdesk-rag/internal/models"

	"github.com/xuri/excelize/v2"
)

// ReadQAPairs reads a bulk QA import spreadsheet. The first sheet must have
// a header row followed by one question/answer per row: question title,
// question body (optional), answer body. Rows missing a title or an answer
// are skipped.
func ReadQAPairs(filePath string) ([]models.QAPair, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets in %s", filePath)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, nil
	}

	var pairs []models.QAPair
	for _, row := range rows[1:] {
		title := cell(row, 0)
		body := cell(row, 1)
		answer := cell(row, 2)
		if title == "" || answer == "" {
			continue
		}
		questionID, err := helper.GenerateUUID()
		if err != nil {
			return nil, err
		}
		answerID, err := helper.GenerateUUID()
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, models.QAPair{
			QuestionID:    "import-" + questionID,
			AnswerID:      "import-" + answerID,
			QuestionTitle: title,
			QuestionBody:  body,
			AnswerBody:    answer,
		})
	}
	return pairs, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
