package spreadsheet

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFixture(t *testing.T, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, cell := range row {
			name, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, name, cell))
		}
	}

	path := filepath.Join(t.TempDir(), "export.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func TestRead(t *testing.T) {
	path := writeFixture(t, [][]any{
		{"CÓDIGO", "VALOR ", "PAGO"},
		{"REQ-1", 120.5, "Sim"},
		{"REQ-2", "45,0", "Não"},
	})

	rows, err := Read(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// headers are used verbatim, stray whitespace included
	require.Equal(t, "REQ-1", rows[0]["CÓDIGO"])
	require.Equal(t, float64(120.5), rows[0]["VALOR "])
	require.Equal(t, "Sim", rows[0]["PAGO"])

	require.Equal(t, "45,0", rows[1]["VALOR "])
	require.Equal(t, "Não", rows[1]["PAGO"])
}

func TestReadSkipsEmptyRows(t *testing.T) {
	path := writeFixture(t, [][]any{
		{"CÓDIGO"},
		{"REQ-1"},
		{""},
		{"REQ-2"},
	})

	rows, err := Read(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestReadKeepsLeadingZeroKeys(t *testing.T) {
	path := writeFixture(t, [][]any{
		{"ID ALOCAÇÃO", "HORAS"},
		{"00123", 4.5},
	})

	rows, err := Read(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// numeric-looking keys stay text; real numbers still come back typed
	require.Equal(t, "00123", rows[0]["ID ALOCAÇÃO"])
	require.Equal(t, 4.5, rows[0]["HORAS"])
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(context.Background(), filepath.Join(t.TempDir(), "nope.xlsx"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "nope.xlsx")
}

func TestReadGarbageFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.xlsx")
	require.NoError(t, writeBytes(path, []byte("this is not a zip archive")))

	_, err := Read(context.Background(), path)
	require.Error(t, err)
}

func writeBytes(path string, b []byte) error {
	return os.WriteFile(path, b, 0o644)
}
