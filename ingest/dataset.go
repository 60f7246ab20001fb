// Package ingest loads calibration datasets and chemistry preset files. The
// core never parses files; everything here is validated before it crosses
// that boundary.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kilianp07/battdegr/core/model"
)

// datasetHeader is the required CSV column order. The resistance column is
// optional.
var datasetHeader = []string{
	"time_days", "cycles", "temperature_c", "soc", "dod", "c_rate", "capacity_retention",
}

const resistanceColumn = "resistance_growth"

// LoadDataset reads one calibration dataset from a CSV file. The experiment
// identifier defaults to the file name without extension.
func LoadDataset(path, experimentID string) (model.CalibrationDataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.CalibrationDataset{}, err
	}
	defer f.Close()
	if experimentID == "" {
		experimentID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return ReadDataset(f, experimentID)
}

// ReadDataset decodes a calibration dataset from r. The first row must be
// the header; records must be time-ordered.
func ReadDataset(r io.Reader, experimentID string) (model.CalibrationDataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return model.CalibrationDataset{}, fmt.Errorf("read header: %w", err)
	}
	hasResistance, err := checkHeader(header)
	if err != nil {
		return model.CalibrationDataset{}, err
	}

	ds := model.CalibrationDataset{ExperimentID: experimentID}
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return model.CalibrationDataset{}, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++
		rec, err := parseRecord(row, hasResistance)
		if err != nil {
			return model.CalibrationDataset{}, fmt.Errorf("line %d: %w", line, err)
		}
		ds.Records = append(ds.Records, rec)
	}
	if err := ds.Validate(); err != nil {
		return model.CalibrationDataset{}, err
	}
	return ds, nil
}

func checkHeader(header []string) (hasResistance bool, err error) {
	if len(header) != len(datasetHeader) && len(header) != len(datasetHeader)+1 {
		return false, fmt.Errorf("expected %d or %d columns, got %d", len(datasetHeader), len(datasetHeader)+1, len(header))
	}
	for i, want := range datasetHeader {
		if strings.TrimSpace(header[i]) != want {
			return false, fmt.Errorf("column %d: expected %q, got %q", i+1, want, header[i])
		}
	}
	if len(header) == len(datasetHeader)+1 {
		if strings.TrimSpace(header[len(header)-1]) != resistanceColumn {
			return false, fmt.Errorf("optional column must be %q, got %q", resistanceColumn, header[len(header)-1])
		}
		return true, nil
	}
	return false, nil
}

func parseRecord(row []string, hasResistance bool) (model.CalibrationRecord, error) {
	want := len(datasetHeader)
	if hasResistance {
		want++
	}
	if len(row) != want {
		return model.CalibrationRecord{}, fmt.Errorf("expected %d fields, got %d", want, len(row))
	}
	vals := make([]float64, len(row))
	for i, s := range row {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return model.CalibrationRecord{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = v
	}
	rec := model.CalibrationRecord{
		TimeDays: vals[0],
		Cycles:   vals[1],
		Env: model.EnvironmentalState{
			TemperatureK:     model.CelsiusToKelvin(vals[2]),
			StateOfCharge:    vals[3],
			DepthOfDischarge: vals[4],
			CRate:            vals[5],
		},
		MeasuredRetention: vals[6],
	}
	if hasResistance {
		rec.MeasuredResistance = vals[7]
		rec.HasResistance = true
	}
	return rec, nil
}
