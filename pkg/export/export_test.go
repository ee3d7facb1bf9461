package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() Table {
	return Table{
		Title:   "Attendance 2026-01-01 to 2026-02-01",
		Columns: []string{"Program ID", "Program", "Bookings"},
		Rows: [][]string{
			{"7", "Yoga", "12"},
			{"8", "Pilates", "5"},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	data, err := WriteCSV(sampleTable())
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Equal(t, "Program ID,Program,Bookings", string(bytes.TrimSpace(lines[0])))
	assert.Contains(t, string(lines[1]), "Yoga")
}

func TestWriteCSVRequiresColumns(t *testing.T) {
	_, err := WriteCSV(Table{})
	assert.Error(t, err)
}

func TestWritePDFProducesDocument(t *testing.T) {
	data, err := WritePDF(sampleTable())
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}
