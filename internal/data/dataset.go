package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Dataset is an in-memory labelled dataset.
type Dataset struct {
	X       *mat.Dense
	Y       []int
	Classes int
}

// NewDataset validates and wraps examples and labels.
func NewDataset(x *mat.Dense, y []int) (*Dataset, error) {
	if x == nil {
		return nil, fmt.Errorf("examples cannot be nil")
	}
	rows, _ := x.Dims()
	if rows != len(y) {
		return nil, fmt.Errorf("example count %d does not match label count %d", rows, len(y))
	}
	classes := 0
	for i, label := range y {
		if label < 0 {
			return nil, fmt.Errorf("label %d is negative: %d", i, label)
		}
		if label+1 > classes {
			classes = label + 1
		}
	}
	return &Dataset{X: x, Y: y, Classes: classes}, nil
}

// Len returns the number of examples.
func (d *Dataset) Len() int {
	return len(d.Y)
}

// Features returns the number of columns per example.
func (d *Dataset) Features() int {
	_, c := d.X.Dims()
	return c
}

// All returns the whole dataset as a single batch.
func (d *Dataset) All() Batch {
	return Batch{Examples: d.X, Labels: d.Y}
}

// Standardize rescales every feature column to zero mean and unit variance.
// Constant columns are only centered.
func (d *Dataset) Standardize() {
	rows, cols := d.X.Dims()
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, d.X)
		mean, std := stat.MeanStdDev(col, nil)
		for i := 0; i < rows; i++ {
			v := col[i] - mean
			if std > 0 {
				v /= std
			}
			d.X.Set(i, j, v)
		}
	}
}

// Sampler returns a Supply drawing batchSize distinct random examples per call.
// A batchSize <= 0 or larger than the dataset yields the full dataset each time.
func (d *Dataset) Sampler(batchSize int, rng *rand.Rand) Supply {
	n := d.Len()
	if batchSize <= 0 || batchSize >= n {
		return Fixed(d.All())
	}

	cols := d.Features()
	return func() (Batch, error) {
		idx := rng.Perm(n)[:batchSize]
		x := mat.NewDense(batchSize, cols, nil)
		y := make([]int, batchSize)
		for i, src := range idx {
			x.SetRow(i, d.X.RawRowView(src))
			y[i] = d.Y[src]
		}
		return Batch{Examples: x, Labels: y}, nil
	}
}

// LoadCSV reads a numeric CSV file. labelColumn selects the integer class
// column; a negative value counts from the end (-1 is the last column).
// When header is true the first record is skipped.
func LoadCSV(path string, labelColumn int, header bool) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	return ReadCSV(f, labelColumn, header)
}

// ReadCSV is LoadCSV over an arbitrary reader.
func ReadCSV(r io.Reader, labelColumn int, header bool) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if header && len(records) > 0 {
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset is empty")
	}

	width := len(records[0])
	if width < 2 {
		return nil, fmt.Errorf("dataset needs at least one feature and one label column, got %d columns", width)
	}
	label := labelColumn
	if label < 0 {
		label += width
	}
	if label < 0 || label >= width {
		return nil, fmt.Errorf("label column %d out of range for %d columns", labelColumn, width)
	}

	x := mat.NewDense(len(records), width-1, nil)
	y := make([]int, len(records))
	for i, rec := range records {
		j := 0
		for c, field := range rec {
			field = strings.TrimSpace(field)
			if c == label {
				v, err := strconv.Atoi(field)
				if err != nil {
					return nil, fmt.Errorf("row %d: invalid label %q: %w", i+1, field, err)
				}
				y[i] = v
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: invalid value %q: %w", i+1, c+1, field, err)
			}
			x.Set(i, j, v)
			j++
		}
	}

	return NewDataset(x, y)
}

// Blobs generates n examples around one Gaussian cluster center per class.
// Centers are drawn uniformly from [-2, 2] in every feature.
func Blobs(n, features, classes int, spread float64, rng *rand.Rand) (*Dataset, error) {
	if n <= 0 || features <= 0 || classes <= 0 {
		return nil, fmt.Errorf("blobs need positive n, features and classes (got %d, %d, %d)", n, features, classes)
	}

	centers := mat.NewDense(classes, features, nil)
	for c := 0; c < classes; c++ {
		for j := 0; j < features; j++ {
			centers.Set(c, j, rng.Float64()*4-2)
		}
	}

	x := mat.NewDense(n, features, nil)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		c := i % classes
		y[i] = c
		for j := 0; j < features; j++ {
			x.Set(i, j, centers.At(c, j)+rng.NormFloat64()*spread)
		}
	}

	return NewDataset(x, y)
}
