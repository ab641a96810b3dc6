package normalize

import (
	"io"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energy-platform/pkg/logging"
)

func quietLogger() *logging.StructuredLogger {
	l := logging.NewStructuredLogger("test", "0.0.0", logging.DebugLevel)
	l.SetOutput(io.Discard)
	return l
}

func buildingTestShape() Shape {
	return Shape{
		Columns: []Column{
			{Name: "cpe", Kind: TextKind},
			{Name: "lat", Kind: FloatKind},
			{Name: "name", Kind: TextKind},
		},
		Required: "cpe",
	}
}

func TestReader_CleanHeader(t *testing.T) {
	csv := "cpe,lat,name\nB1,40.0,Library\n"
	r := NewReader(strings.NewReader(csv), buildingTestShape(), quietLogger())

	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "B1", rec.Text("cpe"))
	assert.Equal(t, 40.0, rec.Float("lat"))
	assert.Equal(t, "Library", rec.Text("name"))
}

func TestReader_BOMHeaderMatchesCleanHeader(t *testing.T) {
	clean := "cpe,lat,name\nB1,40.0,Library\n"
	bom := "\uFEFFcpe, lat ,name\nB1,40.0,Library\n"

	for _, src := range []string{clean, bom} {
		r := NewReader(strings.NewReader(src), buildingTestShape(), quietLogger())

		rec, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, "B1", rec.Text("cpe"))
		assert.Equal(t, 40.0, rec.Float("lat"))
	}
}

func TestReader_MapsColumnsByHeaderName(t *testing.T) {
	// Columns reordered relative to the shape declaration
	csv := "name,cpe,lat\nLibrary,B1,40.0\n"
	r := NewReader(strings.NewReader(csv), buildingTestShape(), quietLogger())

	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "B1", rec.Text("cpe"))
	assert.Equal(t, 40.0, rec.Float("lat"))
	assert.Equal(t, "Library", rec.Text("name"))
}

func TestReader_FallsBackToDeclaredPosition(t *testing.T) {
	// Header names do not match the shape; declared column order wins
	csv := "code,latitude,display\nB1,40.0,Library\n"
	r := NewReader(strings.NewReader(csv), buildingTestShape(), quietLogger())

	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "B1", rec.Text("cpe"))
	assert.Equal(t, 40.0, rec.Float("lat"))
	assert.Equal(t, "Library", rec.Text("name"))
}

func TestReader_FloatCoercion(t *testing.T) {
	csv := "cpe,lat,name\n" +
		"B1,40.5,A\n" +
		"B2,,B\n" +
		"B3,not-a-number,C\n"
	r := NewReader(strings.NewReader(csv), buildingTestShape(), quietLogger())

	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, 40.5, rec.Float("lat"))

	rec, err = r.Next()
	require.NoError(t, err)
	assert.True(t, math.IsNaN(rec.Float("lat")), "empty cell should read as NaN")

	rec, err = r.Next()
	require.NoError(t, err)
	assert.True(t, math.IsNaN(rec.Float("lat")), "junk cell should read as NaN")

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)

	counts := r.Counts()
	assert.Equal(t, 3, counts.RowsRead)
	assert.Equal(t, 0, counts.RowsSkipped)
	assert.Equal(t, 1, counts.CoerceFailures, "only non-empty junk counts as a coercion failure")
}

func TestReader_SkipsRowsMissingRequiredField(t *testing.T) {
	csv := "cpe,lat,name\n" +
		"B1,40.0,A\n" +
		",41.0,B\n" +
		"   ,42.0,C\n" +
		"B2,43.0,D\n"
	r := NewReader(strings.NewReader(csv), buildingTestShape(), quietLogger())

	var cpes []string
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		cpes = append(cpes, rec.Text("cpe"))
	}

	assert.Equal(t, []string{"B1", "B2"}, cpes)

	counts := r.Counts()
	assert.Equal(t, 4, counts.RowsRead)
	assert.Equal(t, 2, counts.RowsSkipped)
}

func TestReader_ToleratesRaggedRows(t *testing.T) {
	csv := "cpe,lat,name\nB1,40.0\nB2\n"
	r := NewReader(strings.NewReader(csv), buildingTestShape(), quietLogger())

	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "B1", rec.Text("cpe"))
	assert.Equal(t, "", rec.Text("name"))

	rec, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "B2", rec.Text("cpe"))
	assert.True(t, math.IsNaN(rec.Float("lat")))
}

func TestReader_TrimsTextValues(t *testing.T) {
	csv := "cpe,lat,name\n  B1  ,40.0,  Library Annex \n"
	r := NewReader(strings.NewReader(csv), buildingTestShape(), quietLogger())

	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "B1", rec.Text("cpe"))
	assert.Equal(t, "Library Annex", rec.Text("name"))
}

func TestReader_EmptySourceIsEOF(t *testing.T) {
	r := NewReader(strings.NewReader(""), buildingTestShape(), quietLogger())

	_, err := r.Next()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 0, r.Counts().RowsRead)
}

func TestRecord_MissingColumnIsNaN(t *testing.T) {
	csv := "cpe,lat,name\nB1,40.0,A\n"
	r := NewReader(strings.NewReader(csv), buildingTestShape(), quietLogger())

	rec, err := r.Next()
	require.NoError(t, err)
	assert.True(t, math.IsNaN(rec.Float("no_such_column")))
	assert.Equal(t, "", rec.Text("no_such_column"))
}
