package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medichain/medichain/internal/platform/ledger"
)

func newTestServer(t *testing.T, svc *Service) *echo.Echo {
	t.Helper()
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/api"))
	return e
}

func multipartUpload(t *testing.T, fields map[string]string, fileContent string) (*http.Request, error) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if fileContent != "" {
		fw, err := w.CreateFormFile("file", "report.txt")
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write([]byte(fileContent)); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req := httptest.NewRequest(http.MethodPost, "/api/reports", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req, nil
}

func TestUploadReport_Success(t *testing.T) {
	repo := NewInMemoryRepo()
	svc := newTestService(repo, &stubSummarizer{}, &stubAnchorer{txID: "0.0.99@1700000000.1"})
	e := newTestServer(t, svc)

	req, err := multipartUpload(t, map[string]string{
		"patientId":  "PAT500",
		"hospitalId": "HOSP1",
	}, "Diagnosis: Hypertension\nBP: 150/95\n")
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var record PatientReport
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if record.PatientID != "PAT500" || record.HederaTxID == nil {
		t.Errorf("record = %+v", record)
	}
}

func TestUploadReport_MissingFile(t *testing.T) {
	svc := newTestService(NewInMemoryRepo(), &stubSummarizer{}, &stubAnchorer{})
	e := newTestServer(t, svc)

	req, err := multipartUpload(t, map[string]string{
		"patientId":  "PAT500",
		"hospitalId": "HOSP1",
	}, "")
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "No file uploaded" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestUploadReport_MissingIdentifiers(t *testing.T) {
	svc := newTestService(NewInMemoryRepo(), &stubSummarizer{}, &stubAnchorer{})
	e := newTestServer(t, svc)

	req, err := multipartUpload(t, map[string]string{"patientId": "PAT500"}, "Diagnosis: x\n")
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] != "patientId and hospitalId are required" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestUploadReport_LedgerNotConfigured(t *testing.T) {
	svc := NewService(NewInMemoryRepo(), NewDocumentParser(), &stubSummarizer{}, ledger.NopAnchorer{},
		zerolog.Nop(), 1<<20, false)
	e := newTestServer(t, svc)

	req, err := multipartUpload(t, map[string]string{
		"patientId":  "PAT500",
		"hospitalId": "HOSP1",
	}, "Diagnosis: x\n")
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] != "Hedera credentials not configured" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestUploadReport_ProcessingFailure(t *testing.T) {
	repo := &failingRepo{err: errors.New("connection refused")}
	svc := NewService(repo, NewDocumentParser(), &stubSummarizer{}, &stubAnchorer{},
		zerolog.Nop(), 1<<20, true)
	e := newTestServer(t, svc)

	req, err := multipartUpload(t, map[string]string{
		"patientId":  "PAT500",
		"hospitalId": "HOSP1",
	}, "Diagnosis: x\n")
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] != "Failed to process file" || body["details"] == "" {
		t.Errorf("body = %v", body)
	}
}

type failingRepo struct{ err error }

func (f *failingRepo) Save(context.Context, *PatientReport) error { return f.err }
func (f *failingRepo) FindByPatient(context.Context, string) ([]*PatientReport, error) {
	return nil, f.err
}
func (f *failingRepo) List(context.Context, int, int) ([]*PatientReport, int, error) {
	return nil, 0, f.err
}

func TestGetReportsByPatient_Endpoint(t *testing.T) {
	repo := NewInMemoryRepo()
	diagnosis := "Seasonal allergic rhinitis with mild symptoms"
	if err := repo.Save(context.Background(), &PatientReport{
		PatientID:  "PAT600",
		HospitalID: "HOSP1",
		ParsedData: &ParsedData{Diagnosis: &diagnosis},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := newTestService(repo, &stubSummarizer{reply: "patient has mild seasonal allergies only"}, &stubAnchorer{})
	e := newTestServer(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/reports/PAT600", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Status  string            `json:"status"`
		Reports []*EnrichedReport `json:"reports"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "success" || len(body.Reports) != 1 {
		t.Errorf("body = %+v", body)
	}
	if body.Reports[0].OverallSummary == nil {
		t.Error("expected overall summary on enriched report")
	}
}

func TestGetPatientSummary_Endpoint(t *testing.T) {
	repo := NewInMemoryRepo()
	summaryText := "Well controlled diabetes."
	if err := repo.Save(context.Background(), &PatientReport{
		PatientID:  "PAT700",
		HospitalID: "HOSP1",
		ParsedData: &ParsedData{
			DiagnosisSummary: &summaryText,
			ClinicalMetrics: map[string]ClinicalMetric{
				"HbA1c": {Value: NumberValue(6.4)},
			},
		},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := newTestService(repo, &stubSummarizer{}, &stubAnchorer{})
	e := newTestServer(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/reports/PAT700/summary", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var body struct {
		TextCorpus    string `json:"textCorpus"`
		HealthMetrics struct {
			HbA1c *json.RawMessage `json:"HbA1c"`
			BP    *json.RawMessage `json:"BP"`
		} `json:"healthMetrics"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.TextCorpus != "Well controlled diabetes." {
		t.Errorf("text corpus = %q", body.TextCorpus)
	}
	if body.HealthMetrics.HbA1c == nil || string(*body.HealthMetrics.HbA1c) != "6.4" {
		t.Errorf("HbA1c = %v", body.HealthMetrics.HbA1c)
	}
	if body.HealthMetrics.BP != nil {
		t.Errorf("BP = %s, want null", *body.HealthMetrics.BP)
	}
}

func TestGetPatientTrends_Endpoint(t *testing.T) {
	repo := NewInMemoryRepo()
	if err := repo.Save(context.Background(), &PatientReport{
		PatientID:  "PAT001",
		HospitalID: "HOSP1",
		ParsedData: &ParsedData{},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := newTestService(repo, &stubSummarizer{}, &stubAnchorer{})
	e := newTestServer(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/reports/PAT001/trends", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Status       string             `json:"status"`
		MetricSeries map[string][]Point `json:"metricSeries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "success" {
		t.Errorf("status = %q", body.Status)
	}
	hgb := body.MetricSeries["Hemoglobin"]
	if len(hgb) != 5 || hgb[0].Value != 13.2 {
		t.Errorf("Hemoglobin series = %v", hgb)
	}
}

func TestListReports_Endpoint(t *testing.T) {
	repo := NewInMemoryRepo()
	for i := 0; i < 3; i++ {
		if err := repo.Save(context.Background(), &PatientReport{
			PatientID:  "PAT800",
			HospitalID: "HOSP1",
			ParsedData: &ParsedData{},
		}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	svc := newTestService(repo, &stubSummarizer{}, &stubAnchorer{})
	e := newTestServer(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/reports?limit=2", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Data    []*PatientReport `json:"data"`
		Total   int              `json:"total"`
		HasMore bool             `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) != 2 || body.Total != 3 || !body.HasMore {
		t.Errorf("page = %d items, total %d, has_more %v", len(body.Data), body.Total, body.HasMore)
	}
}
