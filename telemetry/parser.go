// Package telemetry converts raw device lines into numeric tuples with a
// stable column schema.
package telemetry

import (
	"fmt"
	"strconv"
	"strings"
)

// ColumnMismatchError is returned when a line yields a different number of
// numeric fields than the established schema. It is recoverable: the line
// is dropped from numeric history and the session continues.
type ColumnMismatchError struct {
	Expected int
	Actual   int
}

func (e *ColumnMismatchError) Error() string {
	return fmt.Sprintf("column mismatch: expected %d numeric fields, got %d", e.Expected, e.Actual)
}

// Parser splits comma-delimited lines into float64 tuples. The first
// successfully parsed line fixes the column count for the lifetime of a
// connection; Reset clears it for the next connection.
type Parser struct {
	columns int
}

func NewParser() *Parser {
	return &Parser{}
}

// Columns returns the established schema width, 0 if none yet.
func (p *Parser) Columns() int {
	return p.columns
}

// Reset clears the established schema.
func (p *Parser) Reset() {
	p.columns = 0
}

// Parse splits line on commas, trims each field and collects the fields
// that parse as floats. Unparseable fields are skipped, which tolerates
// labels or units mixed into a line. A count differing from the schema
// returns ColumnMismatchError without mutating the schema.
func (p *Parser) Parse(line string) ([]float64, error) {
	var values []float64
	for _, field := range strings.Split(line, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			continue
		}
		values = append(values, v)
	}

	actual := len(values)
	if p.columns != 0 && actual != p.columns {
		return nil, &ColumnMismatchError{Expected: p.columns, Actual: actual}
	}
	p.columns = actual
	return values, nil
}
