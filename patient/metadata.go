// Package patient reads the demographic and per-slice diagnosis tables that
// accompany the CT scans, and derives the patient summary shown beside them.
package patient

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
	"gopkg.in/guregu/null.v3"

	"github.com/carbocation/ctlesion"
)

const (
	// Unknown is shown for any missing demographic value.
	Unknown = "알수없음"

	// Normal is the diagnosis when no hemorrhage type is flagged.
	Normal = "정상"
)

// HemorrhageType pairs a table column with its display name.
type HemorrhageType struct {
	Column string
	Name   string
}

// HemorrhageTypes lists the five hemorrhage classes in table order.
var HemorrhageTypes = []HemorrhageType{
	{"Intraventricular", "뇌실내출혈"},
	{"Intraparenchymal", "뇌실질내출혈"},
	{"Subarachnoid", "지주막하출혈"},
	{"Epidural", "경막외출혈"},
	{"Subdural", "경막하출혈"},
}

// The demographics table carries a two-line header; both lines are replaced
// with this one.
const demographicsHeader = "Patient_Number,Age,Gender,Intraventricular,Intraparenchymal,Subarachnoid,Epidural,Subdural,Fracture,Note1"

// Demographic is one row of Patient_demographics.csv. Cells are frequently
// blank, so every field is nullable.
type Demographic struct {
	PatientNumber    null.String `csv:"Patient_Number"`
	Age              null.String `csv:"Age"`
	Gender           null.String `csv:"Gender"`
	Intraventricular null.String `csv:"Intraventricular"`
	Intraparenchymal null.String `csv:"Intraparenchymal"`
	Subarachnoid     null.String `csv:"Subarachnoid"`
	Epidural         null.String `csv:"Epidural"`
	Subdural         null.String `csv:"Subdural"`
	Fracture         null.String `csv:"Fracture"`
	Note             null.String `csv:"Note1"`
}

func (d Demographic) flag(column string) bool {
	switch column {
	case "Intraventricular":
		return isOne(d.Intraventricular)
	case "Intraparenchymal":
		return isOne(d.Intraparenchymal)
	case "Subarachnoid":
		return isOne(d.Subarachnoid)
	case "Epidural":
		return isOne(d.Epidural)
	case "Subdural":
		return isOne(d.Subdural)
	case "Fracture":
		return isOne(d.Fracture)
	}
	return false
}

// SliceDiagnosis is one row of hemorrhage_diagnosis_raw_ct.csv.
type SliceDiagnosis struct {
	PatientNumber    int `csv:"PatientNumber"`
	SliceNumber      int `csv:"SliceNumber"`
	Intraventricular int `csv:"Intraventricular"`
	Intraparenchymal int `csv:"Intraparenchymal"`
	Subarachnoid     int `csv:"Subarachnoid"`
	Epidural         int `csv:"Epidural"`
	Subdural         int `csv:"Subdural"`
	NoHemorrhage     int `csv:"No_Hemorrhage"`
	Fracture         int `csv:"Fracture_Yes_No"`
}

func (s SliceDiagnosis) flag(column string) bool {
	switch column {
	case "Intraventricular":
		return s.Intraventricular == 1
	case "Intraparenchymal":
		return s.Intraparenchymal == 1
	case "Subarachnoid":
		return s.Subarachnoid == 1
	case "Epidural":
		return s.Epidural == 1
	case "Subdural":
		return s.Subdural == 1
	}
	return false
}

// ParseDemographics parses the raw bytes of Patient_demographics.csv, keyed by
// patient number. Rows without a numeric patient number are skipped.
func ParseDemographics(data []byte) (map[int]Demographic, error) {
	delim := ctlesion.DetermineDelimiterFromBytes(data, 10)

	body := dropLines(data, 2)
	header := demographicsHeader
	if delim != ',' {
		header = strings.ReplaceAll(header, ",", string(delim))
	}

	var buf bytes.Buffer
	buf.WriteString(header)
	buf.WriteByte('\n')
	buf.Write(body)

	var rows []Demographic
	if err := gocsv.UnmarshalCSV(newReader(&buf, delim), &rows); err != nil {
		return nil, pfx.Err(err)
	}

	out := make(map[int]Demographic, len(rows))
	for _, row := range rows {
		n, ok := parseNumber(row.PatientNumber)
		if !ok {
			continue
		}
		if _, seen := out[n]; seen {
			continue
		}
		out[n] = row
	}

	return out, nil
}

// ParseDiagnosis parses the raw bytes of hemorrhage_diagnosis_raw_ct.csv,
// grouping slices by patient.
func ParseDiagnosis(data []byte) (map[int][]SliceDiagnosis, error) {
	delim := ctlesion.DetermineDelimiterFromBytes(data, 10)

	var rows []SliceDiagnosis
	if err := gocsv.UnmarshalCSV(newReader(bytes.NewReader(data), delim), &rows); err != nil {
		return nil, pfx.Err(err)
	}

	out := make(map[int][]SliceDiagnosis)
	for _, row := range rows {
		out[row.PatientNumber] = append(out[row.PatientNumber], row)
	}

	return out, nil
}

func newReader(r io.Reader, delim rune) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	return cr
}

func dropLines(data []byte, n int) []byte {
	for i := 0; i < n; i++ {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			return nil
		}
		data = data[idx+1:]
	}
	return data
}

func isOne(s null.String) bool {
	if !s.Valid {
		return false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s.String), 64)
	return err == nil && f == 1
}

func parseNumber(s null.String) (int, bool) {
	if !s.Valid {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s.String), 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}

// formatAge renders an age cell the way the summary expects: a whole number of
// years, or Unknown.
func formatAge(s null.String) string {
	n, ok := parseNumber(s)
	if !ok || n < 0 {
		return Unknown
	}
	return strconv.Itoa(n)
}
