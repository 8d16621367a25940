package common

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"fairaudit/internal/errors"
	"fairaudit/internal/fairness"
	"fairaudit/internal/utils"
)

// CSV column names. group_label and predicted_label are required.
const (
	ColumnGroup       = "group_label"
	ColumnPredicted   = "predicted_label"
	ColumnGroundTruth = "ground_truth_label"
	ColumnScore       = "continuous_score"
)

// RecordFormat selects how a batch of records is decoded.
type RecordFormat string

const (
	FormatJSON   RecordFormat = "json"
	FormatNDJSON RecordFormat = "ndjson"
	FormatCSV    RecordFormat = "csv"
	FormatTSV    RecordFormat = "tsv"
)

// DetectRecordFormat picks a format from the file name, falling back to sniffing the content.
func DetectRecordFormat(filename string, data []byte) RecordFormat {
	switch utils.GetFileExtension(filename) {
	case ".csv":
		return FormatCSV
	case ".tsv":
		return FormatTSV
	case ".jsonl", ".ndjson":
		return FormatNDJSON
	case ".json":
		return FormatJSON
	}
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.HasPrefix(trimmed, []byte("[")):
		return FormatJSON
	case bytes.HasPrefix(trimmed, []byte("{")):
		return FormatNDJSON
	default:
		return FormatCSV
	}
}

// ParseRecords decodes a batch in the given format.
func ParseRecords(data []byte, format RecordFormat) ([]fairness.DecisionRecord, error) {
	switch format {
	case FormatJSON:
		return parseJSONRecords(data)
	case FormatNDJSON:
		return parseNDJSONRecords(data)
	case FormatCSV:
		return parseDelimitedRecords(data, ',')
	case FormatTSV:
		return parseDelimitedRecords(data, '\t')
	default:
		return nil, errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("unsupported record format %q", format), nil)
	}
}

func parseJSONRecords(data []byte) ([]fairness.DecisionRecord, error) {
	var records []fairness.DecisionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidFormat, "records must be a JSON array of objects", err)
	}
	return records, nil
}

func parseNDJSONRecords(data []byte) ([]fairness.DecisionRecord, error) {
	var records []fairness.DecisionRecord
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var rec fairness.DecisionRecord
		if err := json.Unmarshal(text, &rec); err != nil {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidFormat, "invalid JSON line", err).
				WithContext("line", line)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable, "failed to scan records", err)
	}
	return records, nil
}

func parseDelimitedRecords(data []byte, comma rune) ([]fairness.DecisionRecord, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = comma
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, errors.NewValidationError(errors.ErrCodeInvalidFormat, "failed to read CSV header", err)
	}
	columns, err := indexColumns(header)
	if err != nil {
		return nil, err
	}

	var records []fairness.DecisionRecord
	for row := 2; ; row++ {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidFormat, "malformed CSV row", err).
				WithContext("row", row)
		}
		rec, err := columns.record(fields)
		if err != nil {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidFormat, err.Error(), err).
				WithContext("row", row)
		}
		records = append(records, rec)
	}
	return records, nil
}

type columnIndex struct {
	group, predicted, truth, score int
}

func indexColumns(header []string) (columnIndex, error) {
	idx := columnIndex{group: -1, predicted: -1, truth: -1, score: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case ColumnGroup:
			idx.group = i
		case ColumnPredicted:
			idx.predicted = i
		case ColumnGroundTruth:
			idx.truth = i
		case ColumnScore:
			idx.score = i
		}
	}
	if idx.group < 0 || idx.predicted < 0 {
		return idx, errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("CSV header must contain %s and %s", ColumnGroup, ColumnPredicted), nil)
	}
	return idx, nil
}

func (c columnIndex) record(fields []string) (fairness.DecisionRecord, error) {
	rec := fairness.DecisionRecord{GroupLabel: cell(fields, c.group)}

	var err error
	if rec.PredictedLabel, err = intCell(fields, c.predicted, ColumnPredicted); err != nil {
		return rec, err
	}
	if rec.GroundTruthLabel, err = intCell(fields, c.truth, ColumnGroundTruth); err != nil {
		return rec, err
	}
	if s := cell(fields, c.score); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return rec, fmt.Errorf("%s %q is not a number", ColumnScore, s)
		}
		rec.ContinuousScore = &v
	}
	return rec, nil
}

func cell(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

// intCell returns nil for an empty cell so record validation can report the missing field.
func intCell(fields []string, i int, column string) (*int, error) {
	s := cell(fields, i)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("%s %q is not an integer", column, s)
	}
	return &v, nil
}
