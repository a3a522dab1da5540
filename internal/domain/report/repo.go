package report

import (
	"context"
)

// Repository persists patient reports. Records are write-once: there are no
// update or delete operations for this entity.
type Repository interface {
	// Save persists the report, assigning its id and uploaded-at timestamp.
	Save(ctx context.Context, r *PatientReport) error
	// FindByPatient returns all reports for a patient ordered by uploadedAt
	// descending (newest first). No match yields an empty slice, not an error.
	FindByPatient(ctx context.Context, patientID string) ([]*PatientReport, error)
	// List returns a page of reports across all patients, newest first,
	// plus the total count.
	List(ctx context.Context, limit, offset int) ([]*PatientReport, int, error)
}
