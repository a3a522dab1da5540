package report

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Parser extracts structured fields from a raw uploaded document. The parser
// is a collaborator with a fixed contract: bytes in, ParsedData out. Parsing
// quality is not this service's concern.
type Parser interface {
	Parse(data []byte) (*ParsedData, error)
}

// DocumentParser handles the two report formats the clients upload: a JSON
// document matching ParsedData, or plain text with labeled lines
// ("Diagnosis: ...", "BP: 120/80").
type DocumentParser struct{}

func NewDocumentParser() *DocumentParser { return &DocumentParser{} }

func (p *DocumentParser) Parse(data []byte) (*ParsedData, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty report document")
	}

	if trimmed[0] == '{' {
		parsed := &ParsedData{}
		if err := json.Unmarshal(trimmed, parsed); err != nil {
			return nil, fmt.Errorf("decode json report: %w", err)
		}
		return parsed, nil
	}

	return p.parseText(trimmed), nil
}

// fieldLabels maps lowercase line labels to ParsedData text fields.
var fieldLabels = map[string]func(*ParsedData, string){
	"diagnosis":         func(p *ParsedData, v string) { p.Diagnosis = &v },
	"risk level":        func(p *ParsedData, v string) { p.RiskLevel = &v },
	"remarks":           func(p *ParsedData, v string) { p.Remarks = &v },
	"precautions":       func(p *ParsedData, v string) { p.Precautions = &v },
	"dos and donts":     func(p *ParsedData, v string) { p.DosAndDonts = &v },
	"do's and don'ts":   func(p *ParsedData, v string) { p.DosAndDonts = &v },
	"diagnosis summary": func(p *ParsedData, v string) { p.DiagnosisSummary = &v },
	"report date":       func(p *ParsedData, v string) { p.ReportDate = &v },
	"date":              func(p *ParsedData, v string) { p.ReportDate = &v },
}

// metricLabels are line labels stored as clinical metrics under their
// canonical display name.
var metricLabels = map[string]string{
	"bp":             "BP",
	"blood pressure": "BP",
	"tsh":            "TSH",
	"hba1c":          "HbA1c",
	"hemoglobin":     "Hemoglobin",
	"hgb":            "HGB",
	"hb":             "Hb",
	"wbc":            "WBC",
	"tlc":            "TLC",
	"rbc":            "RBC",
}

func (p *DocumentParser) parseText(data []byte) *ParsedData {
	parsed := &ParsedData{}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		label = strings.ToLower(strings.TrimSpace(label))
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		if set, ok := fieldLabels[label]; ok {
			set(parsed, value)
			continue
		}
		if name, ok := metricLabels[label]; ok {
			if parsed.ClinicalMetrics == nil {
				parsed.ClinicalMetrics = make(map[string]ClinicalMetric)
			}
			value, unit := splitUnit(value)
			metric := ClinicalMetric{Value: StringValue(value)}
			if unit != "" {
				metric.Unit = &unit
			}
			parsed.ClinicalMetrics[name] = metric
		}
	}

	return parsed
}

// splitUnit separates a trailing unit from a numeric value ("13.2 g/dL" ->
// "13.2", "g/dL"). Composite values like "120/80" are left intact.
func splitUnit(value string) (string, string) {
	fields := strings.Fields(value)
	if len(fields) != 2 {
		return value, ""
	}
	if _, err := parseFloat(fields[0]); err != nil {
		return value, ""
	}
	return fields[0], fields[1]
}
