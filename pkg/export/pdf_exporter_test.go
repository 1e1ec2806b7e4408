package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDFExporterRender(t *testing.T) {
	data := Dataset{
		Headers: []string{"#", "Course", "Error"},
		Rows: []map[string]string{
			{"#": "1", "Course": "course-v1:Org+Num+Run", "Error": ""},
			{"#": "2", "Course": "course-v1:Org+Other+Run", "Error": strings.Repeat("timeout ", 40)},
		},
	}

	payload, err := NewPDFExporter().Render(data, "enrollment per-course summary")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(payload, []byte("%PDF-")))
}

func TestPDFExporterRequiresHeaders(t *testing.T) {
	_, err := NewPDFExporter().Render(Dataset{}, "")
	assert.Error(t, err)
}

func TestColumnWidthsFillPage(t *testing.T) {
	widths := columnWidths(Dataset{
		Headers: []string{"a", "bbbb"},
		Rows:    []map[string]string{{"a": "x", "bbbb": "yyyyyyyy"}},
	})
	require.Len(t, widths, 2)
	assert.InDelta(t, pdfPageWidth, widths[0]+widths[1], 0.0001)
	assert.Less(t, widths[0], widths[1])
}
