package health

import (
	"context"

	"github.com/google/uuid"
)

type SymptomRepository interface {
	Create(ctx context.Context, s *SymptomLog) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*SymptomLog, error)
}

type BMIRepository interface {
	Create(ctx context.Context, b *BMIRecord) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*BMIRecord, error)
}

type VitalsRepository interface {
	Create(ctx context.Context, v *HealthVitals) error
	// Latest returns nil, nil when the patient has no readings.
	Latest(ctx context.Context, patientID uuid.UUID) (*HealthVitals, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*HealthVitals, error)
}
