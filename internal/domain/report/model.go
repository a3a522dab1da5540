package report

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PatientReport is one persisted record per uploaded document. Records are
// immutable after creation: there is no update or delete path, consistent
// with the ledger-anchoring intent.
type PatientReport struct {
	ID         uuid.UUID   `db:"id" json:"id"`
	PatientID  string      `db:"patient_id" json:"patientId"`
	HospitalID string      `db:"hospital_id" json:"hospitalId"`
	ReportHash string      `db:"report_hash" json:"reportHash"`
	HederaTxID *string     `db:"hedera_tx_id" json:"hederaTxId"`
	UploadedAt time.Time   `db:"uploaded_at" json:"uploadedAt"`
	CreatedAt  time.Time   `db:"created_at" json:"createdAt"`
	ParsedData *ParsedData `db:"parsed_data" json:"parsedData,omitempty"`
}

// EnrichedReport is a PatientReport plus summary fields computed on every
// fetch. Never persisted.
type EnrichedReport struct {
	PatientReport
	OverallSummary        *string `json:"overallSummary"`
	SummarizedPrecautions *string `json:"summarizedPrecautions"`
	SummarizedDosAndDonts *string `json:"summarizedDosAndDonts"`
}

// ParsedData holds the fields the report parser extracted from an uploaded
// document. All fields are optional; access goes through nil-safe accessors
// rather than map probing.
type ParsedData struct {
	Diagnosis        *string                   `json:"diagnosis,omitempty"`
	RiskLevel        *string                   `json:"riskLevel,omitempty"`
	Remarks          *string                   `json:"remarks,omitempty"`
	Precautions      *string                   `json:"precautions,omitempty"`
	DosAndDonts      *string                   `json:"dosAndDonts,omitempty"`
	DiagnosisSummary *string                   `json:"diagnosisSummary,omitempty"`
	ReportDate       *string                   `json:"reportDate,omitempty"`
	ClinicalMetrics  map[string]ClinicalMetric `json:"clinicalMetrics,omitempty"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (p *ParsedData) DiagnosisText() string {
	if p == nil {
		return ""
	}
	return deref(p.Diagnosis)
}

func (p *ParsedData) RiskLevelText() string {
	if p == nil {
		return ""
	}
	return deref(p.RiskLevel)
}

func (p *ParsedData) RemarksText() string {
	if p == nil {
		return ""
	}
	return deref(p.Remarks)
}

func (p *ParsedData) PrecautionsText() string {
	if p == nil {
		return ""
	}
	return deref(p.Precautions)
}

func (p *ParsedData) DosAndDontsText() string {
	if p == nil {
		return ""
	}
	return deref(p.DosAndDonts)
}

func (p *ParsedData) DiagnosisSummaryText() string {
	if p == nil {
		return ""
	}
	return deref(p.DiagnosisSummary)
}

func (p *ParsedData) ReportDateText() string {
	if p == nil {
		return ""
	}
	return deref(p.ReportDate)
}

// Metric returns the clinical metric stored under name.
func (p *ParsedData) Metric(name string) (ClinicalMetric, bool) {
	if p == nil || p.ClinicalMetrics == nil {
		return ClinicalMetric{}, false
	}
	m, ok := p.ClinicalMetrics[name]
	return m, ok
}

// ClinicalMetric is one named measurement from a report. Values arrive as
// JSON numbers or strings ("120/80", "5.4 mIU/L"), so MetricValue keeps the
// raw form alongside a parsed number when one exists.
type ClinicalMetric struct {
	Value MetricValue `json:"value"`
	Unit  *string     `json:"unit,omitempty"`
}

// MetricValue is a JSON number-or-string.
type MetricValue struct {
	raw   string
	num   float64
	isNum bool
}

// NumberValue builds a numeric MetricValue.
func NumberValue(f float64) MetricValue {
	return MetricValue{raw: strconv.FormatFloat(f, 'f', -1, 64), num: f, isNum: true}
}

// StringValue builds a string MetricValue, parsing a number out of it when
// the whole string is numeric.
func StringValue(s string) MetricValue {
	v := MetricValue{raw: s}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		v.num = f
		v.isNum = true
	}
	return v
}

func (v *MetricValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*v = MetricValue{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = NumberValue(f)
	return nil
}

func (v MetricValue) MarshalJSON() ([]byte, error) {
	if v.isNum {
		return json.Marshal(v.num)
	}
	return json.Marshal(v.raw)
}

// String returns the raw textual form of the value.
func (v MetricValue) String() string { return v.raw }

// Float returns the value as a finite number when it parses as one.
func (v MetricValue) Float() (float64, bool) {
	if !v.isNum || math.IsNaN(v.num) || math.IsInf(v.num, 0) {
		return 0, false
	}
	return v.num, true
}

// IsZero reports whether the value is entirely absent.
func (v MetricValue) IsZero() bool { return v.raw == "" && !v.isNum }
