package health

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vitalia/portal/internal/platform/db"
)

// =========== Symptom Log Repository ===========

type symptomRepoPG struct{ pool db.Beginner }

func NewSymptomRepoPG(pool db.Beginner) SymptomRepository {
	return &symptomRepoPG{pool: pool}
}

const symptomCols = `id, patient_id, symptom_type, severity, duration, body_location, notes, created_at`

func scanSymptom(row pgx.Row) (*SymptomLog, error) {
	var s SymptomLog
	err := row.Scan(&s.ID, &s.PatientID, &s.SymptomType, &s.Severity, &s.Duration, &s.BodyLocation, &s.Notes, &s.CreatedAt)
	return &s, err
}

func (r *symptomRepoPG) Create(ctx context.Context, s *SymptomLog) error {
	return db.Run(ctx, r.pool, func(q db.Querier) error {
		return q.QueryRow(ctx, `
			INSERT INTO symptom_logs (patient_id, symptom_type, severity, duration, body_location, notes)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id, created_at`,
			s.PatientID, s.SymptomType, s.Severity, s.Duration, s.BodyLocation, s.Notes).Scan(&s.ID, &s.CreatedAt)
	})
}

func (r *symptomRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*SymptomLog, error) {
	var items []*SymptomLog
	err := db.Run(ctx, r.pool, func(q db.Querier) error {
		rows, err := q.Query(ctx, `SELECT `+symptomCols+` FROM symptom_logs
			WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2`, patientID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			s, err := scanSymptom(rows)
			if err != nil {
				return err
			}
			items = append(items, s)
		}
		return rows.Err()
	})
	return items, err
}

// =========== BMI Record Repository ===========

type bmiRepoPG struct{ pool db.Beginner }

func NewBMIRepoPG(pool db.Beginner) BMIRepository {
	return &bmiRepoPG{pool: pool}
}

const bmiCols = `id, patient_id, height_cm, weight_kg, bmi_value, category, created_at`

func scanBMI(row pgx.Row) (*BMIRecord, error) {
	var b BMIRecord
	err := row.Scan(&b.ID, &b.PatientID, &b.HeightCM, &b.WeightKG, &b.BMIValue, &b.Category, &b.CreatedAt)
	return &b, err
}

func (r *bmiRepoPG) Create(ctx context.Context, b *BMIRecord) error {
	return db.Run(ctx, r.pool, func(q db.Querier) error {
		return q.QueryRow(ctx, `
			INSERT INTO bmi_records (patient_id, height_cm, weight_kg, bmi_value, category)
			VALUES ($1,$2,$3,$4,$5)
			RETURNING id, created_at`,
			b.PatientID, b.HeightCM, b.WeightKG, b.BMIValue, b.Category).Scan(&b.ID, &b.CreatedAt)
	})
}

func (r *bmiRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*BMIRecord, error) {
	var items []*BMIRecord
	err := db.Run(ctx, r.pool, func(q db.Querier) error {
		rows, err := q.Query(ctx, `SELECT `+bmiCols+` FROM bmi_records
			WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2`, patientID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			b, err := scanBMI(rows)
			if err != nil {
				return err
			}
			items = append(items, b)
		}
		return rows.Err()
	})
	return items, err
}

// =========== Health Vitals Repository ===========

type vitalsRepoPG struct{ pool db.Beginner }

func NewVitalsRepoPG(pool db.Beginner) VitalsRepository {
	return &vitalsRepoPG{pool: pool}
}

const vitalsCols = `id, patient_id, heart_rate, systolic_bp, diastolic_bp, sleep_hours,
	oxygen_saturation, temperature, notes, recorded_at`

func scanVitals(row pgx.Row) (*HealthVitals, error) {
	var v HealthVitals
	err := row.Scan(&v.ID, &v.PatientID, &v.HeartRate, &v.SystolicBP, &v.DiastolicBP, &v.SleepHours,
		&v.OxygenSaturation, &v.Temperature, &v.Notes, &v.RecordedAt)
	return &v, err
}

func (r *vitalsRepoPG) Create(ctx context.Context, v *HealthVitals) error {
	return db.Run(ctx, r.pool, func(q db.Querier) error {
		return q.QueryRow(ctx, `
			INSERT INTO health_vitals (patient_id, heart_rate, systolic_bp, diastolic_bp, sleep_hours,
				oxygen_saturation, temperature, notes)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			RETURNING id, recorded_at`,
			v.PatientID, v.HeartRate, v.SystolicBP, v.DiastolicBP, v.SleepHours,
			v.OxygenSaturation, v.Temperature, v.Notes).Scan(&v.ID, &v.RecordedAt)
	})
}

func (r *vitalsRepoPG) Latest(ctx context.Context, patientID uuid.UUID) (*HealthVitals, error) {
	var out *HealthVitals
	err := db.Run(ctx, r.pool, func(q db.Querier) error {
		v, err := scanVitals(q.QueryRow(ctx, `SELECT `+vitalsCols+` FROM health_vitals
			WHERE patient_id = $1 ORDER BY recorded_at DESC LIMIT 1`, patientID))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (r *vitalsRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*HealthVitals, error) {
	var items []*HealthVitals
	err := db.Run(ctx, r.pool, func(q db.Querier) error {
		rows, err := q.Query(ctx, `SELECT `+vitalsCols+` FROM health_vitals
			WHERE patient_id = $1 ORDER BY recorded_at DESC LIMIT $2`, patientID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			v, err := scanVitals(rows)
			if err != nil {
				return err
			}
			items = append(items, v)
		}
		return rows.Err()
	})
	return items, err
}
