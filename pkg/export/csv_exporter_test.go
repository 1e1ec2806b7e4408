package export

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchSize(t *testing.T) {
	assert.Equal(t, 1, BatchSize(0))
	assert.Equal(t, 1, BatchSize(9))
	assert.Equal(t, 1, BatchSize(10))
	assert.Equal(t, 2, BatchSize(25))
	assert.Equal(t, 100, BatchSize(1000))
}

func TestCSVWriterHeaderOnly(t *testing.T) {
	out := &bytes.Buffer{}
	progress := &bytes.Buffer{}
	w, err := NewCSVWriter(out, []string{"email", "firstname"}, progress)
	require.NoError(t, err)
	w.Start(0, "users")
	require.NoError(t, w.Done())

	assert.Equal(t, "email,firstname\n", out.String())
	assert.Equal(t, "Writing 0 users\nDone!\n", progress.String())
	assert.Zero(t, w.Written())
}

func TestCSVWriterProgressAtDeciles(t *testing.T) {
	out := &bytes.Buffer{}
	progress := &bytes.Buffer{}
	w, err := NewCSVWriter(out, []string{"n"}, progress)
	require.NoError(t, err)
	w.WithPrefix("C1")

	w.Start(25, "enrollments")
	for i := 0; i < 25; i++ {
		require.NoError(t, w.Write(map[string]string{"n": fmt.Sprint(i)}))
	}
	require.NoError(t, w.Done())

	lines := strings.Split(strings.TrimSpace(progress.String()), "\n")
	assert.Equal(t, "C1: Writing 25 enrollments", lines[0])
	assert.Equal(t, "C1: Completed: 3 of 25", lines[1])
	assert.Equal(t, "C1: Completed: 25 of 25", lines[len(lines)-2])
	assert.Equal(t, "C1: Done!", lines[len(lines)-1])
	// every second record past the first: indexes 2,4,...,24
	assert.Len(t, lines, 2+12)
	assert.Equal(t, 25, w.Written())
	assert.Equal(t, 26, strings.Count(out.String(), "\n"))
}

func TestCSVWriterFillsMissingColumns(t *testing.T) {
	out := &bytes.Buffer{}
	w, err := NewCSVWriter(out, []string{"a", "b", "c"}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Write(map[string]string{"c": "3", "a": "1", "extra": "x"}))
	require.NoError(t, w.Flush())

	assert.Equal(t, "a,b,c\n1,,3\n", out.String())
}

func TestCSVExporterRender(t *testing.T) {
	payload, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"Course", "Rows"},
		Rows:    []map[string]string{{"Course": "C1", "Rows": "2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Course,Rows\nC1,2\n", string(payload))

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}
