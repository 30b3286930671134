package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"radiography_exam/internal/repository"
	"radiography_exam/internal/testutil"
	"radiography_exam/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const importCSV = `Question,A,B,C,D,Correct Answer,Category,Explanation
Which projection shows the lateral knee?,Lateral,Oblique,AP,PA,A,Knee,Standard lateral
Best view for the scaphoid?,PA ulnar deviation,Lateral,AP,,1,Wrist,
,,,,,,,
Central ray for the chest PA?,T7,T4,C7,,T7,,
`

func TestParseSpreadsheetCSV(t *testing.T) {
	drafts, rowErrs, err := ParseSpreadsheet(strings.NewReader(importCSV), "bank.csv")
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, drafts, 3)

	assert.Equal(t, 2, drafts[0].Row)
	assert.Equal(t, []string{"Lateral", "Oblique", "AP", "PA"}, drafts[0].Choices)
	assert.Equal(t, "A", drafts[0].CorrectAnswer)
	assert.Equal(t, "Knee", drafts[0].Category)

	// 选项遇到空列截止
	assert.Len(t, drafts[1].Choices, 3)
	assert.Equal(t, "B", drafts[1].CorrectAnswer)

	// 空行跳过，行号保持与表格一致
	assert.Equal(t, 5, drafts[2].Row)
	assert.Equal(t, "A", drafts[2].CorrectAnswer)
	assert.Equal(t, "General", drafts[2].Category)
}

func TestParseSpreadsheetReportsRowErrors(t *testing.T) {
	data := `Question,A,B,Correct Answer
Only one choice,Alpha,,A
Bad answer,Alpha,Beta,Gamma
,Alpha,Beta,A
Fine,Alpha,Beta,b
`
	drafts, rowErrs, err := ParseSpreadsheet(strings.NewReader(data), "bank.csv")
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "B", drafts[0].CorrectAnswer)

	require.Len(t, rowErrs, 3)
	assert.Equal(t, 2, rowErrs[0].Row)
	assert.Contains(t, rowErrs[0].Message, "choices")
	assert.Equal(t, 3, rowErrs[1].Row)
	assert.Contains(t, rowErrs[1].Message, "Gamma")
	assert.Equal(t, 4, rowErrs[2].Row)
	assert.Contains(t, rowErrs[2].Message, "title")
}

func TestParseSpreadsheetHeaderProblems(t *testing.T) {
	_, rowErrs, err := ParseSpreadsheet(strings.NewReader("A,B,Correct\nx,y,A\n"), "bank.csv")
	require.NoError(t, err)
	require.Len(t, rowErrs, 1)
	assert.Equal(t, 1, rowErrs[0].Row)

	_, _, err = ParseSpreadsheet(strings.NewReader("whatever"), "bank.txt")
	assert.ErrorIs(t, err, util.ErrUnsupportedImport)
}

func buildWorkbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestImportXLSX(t *testing.T) {
	db := testutil.NewDB(t)
	questions := repository.NewQuestionRepository(db)
	svc := NewImportService(questions, repository.NewTestRepository(db), 100)
	ctx := context.Background()
	test, _ := testutil.SeedTest(t, db, "Spine")

	buf := buildWorkbook(t, [][]interface{}{
		{"Question", "Option A", "Option B", "Option C", "Correct Answer", "Category"},
		{"Which vertebra is C1?", "Atlas", "Axis", "Dens", "Atlas", "Cervical"},
		{"Lumbar oblique shows?", "Scottie dog", "Facets only", "Discs", "A", ""},
	})

	report, err := svc.Import(ctx, test.ID, bytes.NewReader(buf.Bytes()), "spine.xlsx", true)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.Total)
	assert.Zero(t, report.Imported)
	n, _ := questions.CountByTest(ctx, test.ID)
	assert.Zero(t, n)

	report, err = svc.Import(ctx, test.ID, bytes.NewReader(buf.Bytes()), "spine.xlsx", false)
	require.NoError(t, err)
	assert.Empty(t, report.Errors)
	assert.Equal(t, 2, report.Imported)

	list, err := questions.ListByTest(ctx, test.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].CorrectAnswer)
	assert.Equal(t, "Cervical", list[0].Category)
	assert.Equal(t, []int{0, 0, 0}, []int(list[0].ChoiceVoteCounts))
	assert.Equal(t, "General", list[1].Category)
}

func TestImportIsAllOrNothing(t *testing.T) {
	db := testutil.NewDB(t)
	questions := repository.NewQuestionRepository(db)
	svc := NewImportService(questions, repository.NewTestRepository(db), 100)
	ctx := context.Background()
	test, _ := testutil.SeedTest(t, db, "Spine")

	data := "Question,A,B,Correct\nGood,x,y,A\nBad,x,y,Z\n"
	report, err := svc.Import(ctx, test.ID, strings.NewReader(data), "bank.csv", false)
	require.NoError(t, err)
	assert.Len(t, report.Errors, 1)
	assert.Zero(t, report.Imported)

	n, _ := questions.CountByTest(ctx, test.ID)
	assert.Zero(t, n)

	_, err = svc.Import(ctx, 9999, strings.NewReader(data), "bank.csv", false)
	assert.ErrorIs(t, err, util.ErrTestNotFound)
}

func TestImportRowLimit(t *testing.T) {
	db := testutil.NewDB(t)
	questions := repository.NewQuestionRepository(db)
	svc := NewImportService(questions, repository.NewTestRepository(db), 1)
	test, _ := testutil.SeedTest(t, db, "Spine")

	data := "Question,A,B,Correct\nOne,x,y,A\nTwo,x,y,B\n"
	report, err := svc.Import(context.Background(), test.ID, strings.NewReader(data), "bank.csv", false)
	require.NoError(t, err)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0].Message, "too many rows")
	assert.Zero(t, report.Imported)
}
