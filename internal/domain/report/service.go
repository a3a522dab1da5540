package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/medichain/medichain/internal/platform/completion"
	"github.com/medichain/medichain/internal/platform/hasher"
	"github.com/medichain/medichain/internal/platform/ledger"
)

var (
	ErrMissingFile        = errors.New("no file uploaded")
	ErrMissingIdentifiers = errors.New("patientId and hospitalId are required")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
)

// shortSummaryWords is the plausibility floor for summarizer output: fewer
// words than this is treated as summarizer failure and the original text is
// kept. A heuristic, not a guarantee.
const shortSummaryWords = 5

// Summarizer shortens free text. Implementations may fail; the service
// always recovers with the original text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// CompletionSummarizer summarizes via the chat-completion service.
type CompletionSummarizer struct {
	client *completion.Client
}

func NewCompletionSummarizer(client *completion.Client) *CompletionSummarizer {
	return &CompletionSummarizer{client: client}
}

func (s *CompletionSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	return s.client.Complete(ctx, completion.Request{
		Messages: []completion.Message{
			{Role: "system", Content: "You are a helpful assistant that summarizes medical information concisely. If the text is too brief to summarize meaningfully, just return the original text."},
			{Role: "user", Content: "Summarize the following medical text:\n\n" + text},
		},
		Temperature: 0.7,
		MaxTokens:   300,
	})
}

// Service owns the upload pipeline and the per-patient aggregation views.
type Service struct {
	repo             Repository
	parser           Parser
	summarizer       Summarizer
	anchorer         ledger.Anchorer
	logger           zerolog.Logger
	maxUploadBytes   int64
	ledgerConfigured bool
}

func NewService(repo Repository, parser Parser, summarizer Summarizer, anchorer ledger.Anchorer,
	logger zerolog.Logger, maxUploadBytes int64, ledgerConfigured bool) *Service {
	return &Service{
		repo:             repo,
		parser:           parser,
		summarizer:       summarizer,
		anchorer:         anchorer,
		logger:           logger,
		maxUploadBytes:   maxUploadBytes,
		ledgerConfigured: ledgerConfigured,
	}
}

// UploadInput carries one upload request.
type UploadInput struct {
	PatientID  string
	HospitalID string
	Content    io.Reader
}

// Upload runs the pipeline: hash -> anchor (best-effort) -> parse -> persist.
// Anchoring failure does not abort the upload; the record is persisted with a
// null transaction id and the failure is logged.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*PatientReport, error) {
	if in.PatientID == "" || in.HospitalID == "" {
		return nil, ErrMissingIdentifiers
	}
	if in.Content == nil {
		return nil, ErrMissingFile
	}
	if !s.ledgerConfigured {
		return nil, ledger.ErrNotConfigured
	}

	data, err := io.ReadAll(io.LimitReader(in.Content, s.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxUploadBytes {
		return nil, ErrFileTooLarge
	}

	reportHash, err := hasher.SumReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("hash upload: %w", err)
	}

	uploadedAt := time.Now().UTC()

	var txID *string
	id, err := s.anchorer.Submit(ctx, ledger.Anchor{
		PatientID:  in.PatientID,
		ReportHash: reportHash,
		Timestamp:  uploadedAt,
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("patient_id", in.PatientID).
			Str("report_hash", reportHash).
			Msg("ledger anchoring failed, continuing without tx id")
	} else if id != "" {
		txID = &id
	}

	parsed, err := s.parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}

	record := &PatientReport{
		PatientID:  in.PatientID,
		HospitalID: in.HospitalID,
		ReportHash: reportHash,
		HederaTxID: txID,
		UploadedAt: uploadedAt,
		ParsedData: parsed,
	}
	if err := s.repo.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}
	return record, nil
}

// GetReportsByPatient returns all reports for the patient, newest first,
// each enriched with best-effort summaries. Summarization runs concurrently
// across reports and fields; a failing call falls back to the source text
// and never fails the fetch.
func (s *Service) GetReportsByPatient(ctx context.Context, patientID string) ([]*EnrichedReport, error) {
	reports, err := s.repo.FindByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("fetch reports: %w", err)
	}

	enriched := make([]*EnrichedReport, len(reports))
	var wg sync.WaitGroup
	for i, r := range reports {
		wg.Add(1)
		go func(i int, r *PatientReport) {
			defer wg.Done()
			enriched[i] = s.enrich(ctx, r)
		}(i, r)
	}
	wg.Wait()

	return enriched, nil
}

func (s *Service) enrich(ctx context.Context, r *PatientReport) *EnrichedReport {
	combined := joinNonEmpty(" ",
		r.ParsedData.DiagnosisText(),
		r.ParsedData.RiskLevelText(),
		r.ParsedData.RemarksText(),
	)

	out := &EnrichedReport{PatientReport: *r}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		out.OverallSummary = s.summarize(ctx, combined)
	}()
	go func() {
		defer wg.Done()
		out.SummarizedPrecautions = s.summarize(ctx, r.ParsedData.PrecautionsText())
	}()
	go func() {
		defer wg.Done()
		out.SummarizedDosAndDonts = s.summarize(ctx, r.ParsedData.DosAndDontsText())
	}()
	wg.Wait()

	return out
}

// summarize applies the fallback policy: empty source -> nil without calling
// the summarizer; call failure -> original text; implausibly short output
// (< shortSummaryWords words) -> original text.
func (s *Service) summarize(ctx context.Context, text string) *string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	summary, err := s.summarizer.Summarize(ctx, text)
	if err != nil {
		s.logger.Warn().Err(err).Msg("summarization failed, returning original text")
		return &text
	}
	if len(strings.Fields(summary)) < shortSummaryWords {
		return &text
	}
	return &summary
}

// HealthMetrics is the latest-known-value projection for the three headline
// metrics.
type HealthMetrics struct {
	BP    *MetricValue `json:"BP"`
	TSH   *MetricValue `json:"TSH"`
	HbA1c *MetricValue `json:"HbA1c"`
}

// PatientSummary aggregates all of a patient's reports into one text corpus
// plus the latest known value per headline metric.
type PatientSummary struct {
	TextCorpus    string        `json:"textCorpus"`
	HealthMetrics HealthMetrics `json:"healthMetrics"`
}

// GetPatientSummary concatenates diagnosisSummary and remarks across all
// reports and picks, per metric, the first non-null value scanning
// newest-first (most-recent-wins).
func (s *Service) GetPatientSummary(ctx context.Context, patientID string) (*PatientSummary, error) {
	reports, err := s.repo.FindByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("fetch reports: %w", err)
	}

	var parts []string
	for _, r := range reports {
		if v := r.ParsedData.DiagnosisSummaryText(); v != "" {
			parts = append(parts, v)
		}
		if v := r.ParsedData.RemarksText(); v != "" {
			parts = append(parts, v)
		}
	}

	summary := &PatientSummary{TextCorpus: strings.Join(parts, " ")}
	summary.HealthMetrics.BP = firstMetricValue(reports, "BP")
	summary.HealthMetrics.TSH = firstMetricValue(reports, "TSH")
	summary.HealthMetrics.HbA1c = firstMetricValue(reports, "HbA1c")
	return summary, nil
}

// GetPatientTrends derives per-metric time series from the patient's reports.
func (s *Service) GetPatientTrends(ctx context.Context, patientID string) (map[string][]Point, error) {
	reports, err := s.repo.FindByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("fetch reports: %w", err)
	}
	return DeriveTrends(patientID, reports), nil
}

// ListReports returns a page of reports across all patients.
func (s *Service) ListReports(ctx context.Context, limit, offset int) ([]*PatientReport, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func firstMetricValue(reports []*PatientReport, name string) *MetricValue {
	for _, r := range reports {
		if m, ok := r.ParsedData.Metric(name); ok && !m.Value.IsZero() {
			v := m.Value
			return &v
		}
	}
	return nil
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
