// Package ncdf gives the parsers a flat, typed view over a NetCDF
// file's variables. The reader library returns raw Go values of
// varying width; the accessors here coerce them to float64 so callers
// never switch on storage types.
package ncdf

import (
	"fmt"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf"

	"github.com/oceanatlas/argosync/internal/common"
)

// Dataset holds every variable of one file, keyed by name.
type Dataset struct {
	vars map[string]any
}

// New builds a Dataset from raw values. Tests construct datasets this
// way instead of shipping binary fixtures.
func New(vars map[string]any) *Dataset {
	return &Dataset{vars: vars}
}

// Open reads all variables of the file into memory. Aggregate float
// files are small enough that lazy access buys nothing.
func Open(path string) (*Dataset, error) {
	group, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", common.ErrParse, path, err)
	}
	defer group.Close()

	vars := make(map[string]any)
	for _, name := range group.ListVariables() {
		v, err := group.GetVariable(name)
		if err != nil {
			return nil, fmt.Errorf("%w: variable %s in %s: %v", common.ErrParse, name, path, err)
		}
		vars[name] = v.Values
	}
	return &Dataset{vars: vars}, nil
}

// Has reports whether the variable exists in the file.
func (d *Dataset) Has(name string) bool {
	_, ok := d.vars[name]
	return ok
}

// String returns a char-array variable as a trimmed string.
func (d *Dataset) String(name string) (string, error) {
	raw, ok := d.vars[name]
	if !ok {
		return "", fmt.Errorf("%w: variable %s not present", common.ErrParse, name)
	}
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case []string:
		if len(v) == 0 {
			return "", nil
		}
		return strings.TrimSpace(v[0]), nil
	}
	return "", fmt.Errorf("%w: variable %s is not textual (%T)", common.ErrParse, name, raw)
}

// Float64 returns a scalar variable, coercing narrower numeric types.
// A length-one vector also qualifies.
func (d *Dataset) Float64(name string) (float64, error) {
	raw, ok := d.vars[name]
	if !ok {
		return 0, fmt.Errorf("%w: variable %s not present", common.ErrParse, name)
	}
	if f, ok := scalarToFloat64(raw); ok {
		return f, nil
	}
	if vec, err := d.Float64s(name); err == nil && len(vec) == 1 {
		return vec[0], nil
	}
	return 0, fmt.Errorf("%w: variable %s is not scalar (%T)", common.ErrParse, name, raw)
}

// Float64s returns a 1-D numeric variable as float64.
func (d *Dataset) Float64s(name string) ([]float64, error) {
	raw, ok := d.vars[name]
	if !ok {
		return nil, fmt.Errorf("%w: variable %s not present", common.ErrParse, name)
	}
	vec, ok := vectorToFloat64(raw)
	if !ok {
		return nil, fmt.Errorf("%w: variable %s is not a numeric vector (%T)", common.ErrParse, name, raw)
	}
	return vec, nil
}

// Float64Matrix returns a 2-D numeric variable as float64 rows.
func (d *Dataset) Float64Matrix(name string) ([][]float64, error) {
	raw, ok := d.vars[name]
	if !ok {
		return nil, fmt.Errorf("%w: variable %s not present", common.ErrParse, name)
	}
	switch v := raw.(type) {
	case [][]float64:
		return v, nil
	case [][]float32:
		out := make([][]float64, len(v))
		for i, row := range v {
			r, _ := vectorToFloat64(row)
			out[i] = r
		}
		return out, nil
	case [][]int32:
		out := make([][]float64, len(v))
		for i, row := range v {
			r, _ := vectorToFloat64(row)
			out[i] = r
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: variable %s is not a numeric matrix (%T)", common.ErrParse, name, raw)
}

func scalarToFloat64(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case int16:
		return float64(v), true
	case int8:
		return float64(v), true
	case uint8:
		return float64(v), true
	}
	return 0, false
}

func vectorToFloat64(raw any) ([]float64, bool) {
	switch v := raw.(type) {
	case []float64:
		return v, true
	case []float32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, true
	case []int64:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, true
	case []int32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, true
	case []int16:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, true
	case []int8:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, true
	case []uint8:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, true
	}
	return nil, false
}
