package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Spok95/ada-portal/internal/models"
)

func TestColName(t *testing.T) {
	assert.Equal(t, "A", colName(1))
	assert.Equal(t, "Z", colName(26))
	assert.Equal(t, "AA", colName(27))
	assert.Equal(t, "AZ", colName(52))
}

func TestAccountsWorkbook(t *testing.T) {
	modules := []models.Module{{ID: "m1", Title: "Basics", Classes: []models.ClassSession{
		{ID: "c1", Title: "Intro"}, {ID: "c2", Title: "Prompts"},
	}}}
	accounts := []models.Account{
		{Email: "root@ada.local", DisplayName: "Root", Role: models.SuperAdmin},
		{Email: "ann@corp.com", DisplayName: "Ann", Role: models.Learner, Skills: models.Skills{Prompting: 40}},
	}
	progress := map[string]models.ProgressMap{"ann@corp.com": {"c1": true}}

	wb, err := AccountsWorkbook(accounts, progress, modules)
	require.NoError(t, err)
	defer wb.Close()

	var buf bytes.Buffer
	_, err = wb.WriteTo(&buf)
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Accounts", "Progress"}, f.GetSheetList())

	rows, err := f.GetRows("Accounts")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"ann@corp.com", "Ann", "user", "40", "0", "0", "50", "1", "1"}, rows[2])

	prog, err := f.GetRows("Progress")
	require.NoError(t, err)
	require.Len(t, prog, 5)
	assert.Equal(t, []string{"ann@corp.com", "Basics", "Intro", "yes"}, prog[3])
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "ada_portal_2026-03-01.xlsx", Filename(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)))
}
