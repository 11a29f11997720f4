package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSheet() Sheet {
	return Sheet{
		Title:   "Attendance b1",
		Columns: []string{"Class Date", "Student", "Status"},
		Rows: [][]string{
			{"2025-06-10", "student-1", "PRESENT"},
			{"2025-06-11", "student-1", "ABSENT"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	payload, err := NewCSVExporter().Render(sampleSheet())
	require.NoError(t, err)

	body := string(payload)
	assert.Equal(t, "Class Date,Student,Status\n2025-06-10,student-1,PRESENT\n2025-06-11,student-1,ABSENT\n", body)
	// The title never leaks into the CSV body.
	assert.NotContains(t, body, "Attendance b1")
}

func TestSheetValidation(t *testing.T) {
	_, err := NewCSVExporter().Render(Sheet{})
	require.Error(t, err)

	ragged := sampleSheet()
	ragged.Rows = append(ragged.Rows, []string{"2025-06-12"})
	_, err = NewCSVExporter().Render(ragged)
	require.Error(t, err)

	_, err = NewPDFExporter().Render(ragged)
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	payload, err := NewPDFExporter().Render(sampleSheet())
	require.NoError(t, err)
	require.NotEmpty(t, payload)
	assert.Equal(t, "%PDF", string(payload[:4]))
}
