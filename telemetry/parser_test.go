package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchemaInference(t *testing.T) {
	p := NewParser()
	require.Equal(t, 0, p.Columns())

	values, err := p.Parse("1.0, 2.0, 3.0")
	require.NoError(t, err)
	require.Equal(t, []float64{1.0, 2.0, 3.0}, values)
	require.Equal(t, 3, p.Columns())
}

func TestColumnMismatchKeepsSchema(t *testing.T) {
	p := NewParser()

	values, err := p.Parse("1.0, 2.0")
	require.NoError(t, err)
	require.Equal(t, []float64{1.0, 2.0}, values)

	values, err = p.Parse("1.5, 2.5")
	require.NoError(t, err)
	require.Equal(t, []float64{1.5, 2.5}, values)

	// Third line has one bad field, so only one numeric field remains.
	_, err = p.Parse("2.0, bad")
	var mismatch *ColumnMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, 2, mismatch.Expected)
	require.Equal(t, 1, mismatch.Actual)

	// The stored schema is unchanged.
	require.Equal(t, 2, p.Columns())
	values, err = p.Parse("3.0, 4.0")
	require.NoError(t, err)
	require.Equal(t, []float64{3.0, 4.0}, values)
}

func TestNonNumericFieldsSkipped(t *testing.T) {
	p := NewParser()

	// Labels and units mixed into the line do not count as columns.
	values, err := p.Parse("temp: 21.5, hum: 40.0, 3.25")
	require.NoError(t, err)
	require.Equal(t, []float64{3.25}, values)
	require.Equal(t, 1, p.Columns())
}

func TestEmptyLineAdoptsZeroSchema(t *testing.T) {
	p := NewParser()

	values, err := p.Parse("no numbers here")
	require.NoError(t, err)
	require.Empty(t, values)
	require.Equal(t, 0, p.Columns())

	// Schema still unestablished, so a later numeric line sets it.
	values, err = p.Parse("5")
	require.NoError(t, err)
	require.Equal(t, []float64{5}, values)
	require.Equal(t, 1, p.Columns())
}

func TestNegativeAndScientific(t *testing.T) {
	p := NewParser()

	values, err := p.Parse("-1.5, 2e3, .25")
	require.NoError(t, err)
	require.Equal(t, []float64{-1.5, 2000, 0.25}, values)
}

func TestReset(t *testing.T) {
	p := NewParser()

	_, err := p.Parse("1, 2")
	require.NoError(t, err)
	require.Equal(t, 2, p.Columns())

	p.Reset()
	require.Equal(t, 0, p.Columns())

	// A fresh connection infers its own schema.
	values, err := p.Parse("7")
	require.NoError(t, err)
	require.Equal(t, []float64{7}, values)
	require.Equal(t, 1, p.Columns())
}
