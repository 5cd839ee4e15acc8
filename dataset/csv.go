package dataset

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"

	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
)

// LeadRecord is one CSV row of the lead dataset.
type LeadRecord struct {
	Feature0  float64 `csv:"feature_0"`
	Feature1  float64 `csv:"feature_1"`
	Feature2  float64 `csv:"feature_2"`
	Feature3  float64 `csv:"feature_3"`
	Feature4  float64 `csv:"feature_4"`
	Feature5  float64 `csv:"feature_5"`
	Feature6  float64 `csv:"feature_6"`
	Feature7  float64 `csv:"feature_7"`
	Feature8  float64 `csv:"feature_8"`
	Feature9  float64 `csv:"feature_9"`
	Feature10 float64 `csv:"feature_10"`
	Feature11 float64 `csv:"feature_11"`
	Feature12 float64 `csv:"feature_12"`
	Feature13 float64 `csv:"feature_13"`
	Feature14 float64 `csv:"feature_14"`
	Target    int     `csv:"target"`
}

// Features returns the feature vector in column order.
func (r *LeadRecord) Features() []float64 {
	return []float64{
		r.Feature0, r.Feature1, r.Feature2, r.Feature3, r.Feature4,
		r.Feature5, r.Feature6, r.Feature7, r.Feature8, r.Feature9,
		r.Feature10, r.Feature11, r.Feature12, r.Feature13, r.Feature14,
	}
}

func recordFromRow(row []float64, target int) *LeadRecord {
	return &LeadRecord{
		Feature0: row[0], Feature1: row[1], Feature2: row[2], Feature3: row[3], Feature4: row[4],
		Feature5: row[5], Feature6: row[6], Feature7: row[7], Feature8: row[8], Feature9: row[9],
		Feature10: row[10], Feature11: row[11], Feature12: row[12], Feature13: row[13], Feature14: row[14],
		Target: target,
	}
}

// Header returns the expected CSV header.
func Header() []string {
	return append(DefaultFeatureNames(NumFeatures), TargetColumn)
}

// ReadCSV decodes a lead dataset. The header must consist of exactly the
// columns feature_0..feature_14 and target, in any order.
func ReadCSV(r io.Reader) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, lsErrors.Wrap(err, "failed to read dataset")
	}
	if err := checkLayout(data); err != nil {
		return nil, err
	}

	var records []*LeadRecord
	if err := gocsv.UnmarshalBytes(data, &records); err != nil {
		return nil, lsErrors.Wrap(lsErrors.NewShapeError(-1, NumFeatures+1, 0, "non-numeric cell"), err.Error())
	}
	if len(records) == 0 {
		return nil, lsErrors.Wrap(lsErrors.ErrEmptyData, "dataset has a header but no rows")
	}

	rows := make([][]float64, len(records))
	labels := make([]int, len(records))
	for i, rec := range records {
		rows[i] = rec.Features()
		labels[i] = rec.Target
	}
	return FromRows(rows, labels, DefaultFeatureNames(NumFeatures))
}

// checkLayout validates the header and the width of every record so that
// schema problems are reported with their row number.
func checkLayout(data []byte) error {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return lsErrors.Wrap(lsErrors.ErrEmptyData, "dataset is empty")
	}
	if err != nil {
		return lsErrors.Wrap(err, "failed to parse dataset header")
	}

	expected := Header()
	seen := make(map[string]bool, len(header))
	for _, col := range header {
		seen[strings.TrimSpace(col)] = true
	}
	var missing []string
	for _, col := range expected {
		if !seen[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return lsErrors.Wrapf(lsErrors.NewShapeError(-1, len(expected), len(header), "header is missing columns"),
			"missing %s", strings.Join(missing, ", "))
	}
	if len(header) != len(expected) {
		return lsErrors.NewShapeError(-1, len(expected), len(header), "header has unexpected columns")
	}

	for row := 0; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return lsErrors.Wrap(err, "failed to parse dataset")
		}
		if len(rec) != len(expected) {
			return lsErrors.NewShapeError(row, len(expected), len(rec), "ragged row")
		}
	}
}

// LoadCSV reads a lead dataset from path.
func LoadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, lsErrors.Wrapf(err, "failed to open dataset %s", path)
	}
	defer f.Close()
	return ReadCSV(f)
}

// WriteCSV encodes ds with the lead header. ds must be NumFeatures wide.
func WriteCSV(w io.Writer, ds *Dataset) error {
	if ds.NumCols() != NumFeatures {
		return lsErrors.NewShapeError(-1, NumFeatures, ds.NumCols(), "only lead-shaped datasets can be written")
	}
	records := make([]*LeadRecord, ds.Len())
	for i := range records {
		records[i] = recordFromRow(ds.x.RawRowView(i), ds.y[i])
	}
	return lsErrors.Wrap(gocsv.Marshal(records, w), "failed to encode dataset")
}

// SaveCSV writes ds to path, creating parent directories as needed.
func SaveCSV(path string, ds *Dataset) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return lsErrors.Wrapf(err, "failed to create directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return lsErrors.Wrapf(err, "failed to create %s", path)
	}
	if err := WriteCSV(f, ds); err != nil {
		f.Close()
		return err
	}
	return lsErrors.Wrap(f.Close(), "failed to close dataset file")
}
