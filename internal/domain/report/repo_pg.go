package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type reportRepoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns a Repository backed by the patient_reports table.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &reportRepoPG{pool: pool}
}

const reportCols = `id, patient_id, hospital_id, report_hash, hedera_tx_id,
	uploaded_at, created_at, parsed_data`

func scanReport(row pgx.Row) (*PatientReport, error) {
	var r PatientReport
	var parsed []byte
	err := row.Scan(&r.ID, &r.PatientID, &r.HospitalID, &r.ReportHash, &r.HederaTxID,
		&r.UploadedAt, &r.CreatedAt, &parsed)
	if err != nil {
		return nil, err
	}
	if len(parsed) > 0 {
		r.ParsedData = &ParsedData{}
		if err := json.Unmarshal(parsed, r.ParsedData); err != nil {
			return nil, fmt.Errorf("decode parsed_data: %w", err)
		}
	}
	return &r, nil
}

func (repo *reportRepoPG) Save(ctx context.Context, r *PatientReport) error {
	r.ID = uuid.New()
	now := time.Now().UTC()
	if r.UploadedAt.IsZero() {
		r.UploadedAt = now
	}
	r.CreatedAt = now

	var parsed []byte
	if r.ParsedData != nil {
		var err error
		parsed, err = json.Marshal(r.ParsedData)
		if err != nil {
			return fmt.Errorf("encode parsed_data: %w", err)
		}
	}

	_, err := repo.pool.Exec(ctx, `
		INSERT INTO patient_reports (id, patient_id, hospital_id, report_hash,
			hedera_tx_id, uploaded_at, created_at, parsed_data)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		r.ID, r.PatientID, r.HospitalID, r.ReportHash,
		r.HederaTxID, r.UploadedAt, r.CreatedAt, parsed)
	return err
}

func (repo *reportRepoPG) FindByPatient(ctx context.Context, patientID string) ([]*PatientReport, error) {
	rows, err := repo.pool.Query(ctx, `
		SELECT `+reportCols+` FROM patient_reports
		WHERE patient_id = $1
		ORDER BY uploaded_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []*PatientReport{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (repo *reportRepoPG) List(ctx context.Context, limit, offset int) ([]*PatientReport, int, error) {
	var total int
	if err := repo.pool.QueryRow(ctx, `SELECT COUNT(*) FROM patient_reports`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := repo.pool.Query(ctx, `
		SELECT `+reportCols+` FROM patient_reports
		ORDER BY uploaded_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	reports := []*PatientReport{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		reports = append(reports, r)
	}
	return reports, total, rows.Err()
}
