package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/vitalia/portal/internal/platform/auth"
)

const (
	DefaultSymptomLimit = 10
	DefaultBMILimit     = 10
	DefaultVitalsLimit  = 20

	dashboardSymptomLimit = 20
)

var ErrForbidden = errors.New("not permitted to access this patient's records")

type Service struct {
	symptoms SymptomRepository
	bmi      BMIRepository
	vitals   VitalsRepository
	logger   zerolog.Logger
}

func NewService(symptoms SymptomRepository, bmi BMIRepository, vitals VitalsRepository, logger zerolog.Logger) *Service {
	return &Service{symptoms: symptoms, bmi: bmi, vitals: vitals, logger: logger}
}

// canRead admits the patient themself and any doctor.
func canRead(ctx context.Context, patientID uuid.UUID) error {
	sess := auth.SessionFromContext(ctx)
	if sess.IsDoctor() || (sess.IsPatient() && sess.UserID == patientID.String()) {
		return nil
	}
	return ErrForbidden
}

// canWrite admits only the owning patient.
func canWrite(ctx context.Context, patientID uuid.UUID) error {
	sess := auth.SessionFromContext(ctx)
	if sess.IsPatient() && sess.UserID == patientID.String() {
		return nil
	}
	return ErrForbidden
}

// -- Symptom Logs --

func (s *Service) LogSymptom(ctx context.Context, patientID uuid.UUID, in SymptomInput) (*SymptomLog, error) {
	if err := canWrite(ctx, patientID); err != nil {
		return nil, err
	}
	log, err := NormalizeSymptom(in)
	if err != nil {
		return nil, err
	}
	log.PatientID = patientID
	if err := s.symptoms.Create(ctx, log); err != nil {
		return nil, fmt.Errorf("save symptom: %w", err)
	}
	return log, nil
}

func (s *Service) ListSymptoms(ctx context.Context, patientID uuid.UUID, limit int) ([]*SymptomLog, error) {
	if err := canRead(ctx, patientID); err != nil {
		return nil, err
	}
	return s.symptoms.ListByPatient(ctx, patientID, limit)
}

// -- BMI --

func (s *Service) RecordBMI(ctx context.Context, patientID uuid.UUID, in BMIInput) (*BMIRecord, BMIResult, error) {
	if err := canWrite(ctx, patientID); err != nil {
		return nil, BMIResult{}, err
	}
	res, err := ComputeBMI(in)
	if err != nil {
		return nil, BMIResult{}, err
	}
	rec := &BMIRecord{
		PatientID: patientID,
		HeightCM:  res.HeightCM,
		WeightKG:  res.WeightKG,
		BMIValue:  res.BMI,
		Category:  res.Category,
	}
	if err := s.bmi.Create(ctx, rec); err != nil {
		return nil, BMIResult{}, fmt.Errorf("save bmi record: %w", err)
	}
	return rec, res, nil
}

func (s *Service) ListBMI(ctx context.Context, patientID uuid.UUID, limit int) ([]*BMIRecord, error) {
	if err := canRead(ctx, patientID); err != nil {
		return nil, err
	}
	return s.bmi.ListByPatient(ctx, patientID, limit)
}

// -- Vitals --

func (s *Service) RecordVitals(ctx context.Context, patientID uuid.UUID, v *HealthVitals) error {
	if err := canWrite(ctx, patientID); err != nil {
		return err
	}
	if err := ValidateVitals(v); err != nil {
		return err
	}
	v.PatientID = patientID
	if err := s.vitals.Create(ctx, v); err != nil {
		return fmt.Errorf("save vitals: %w", err)
	}
	return nil
}

func (s *Service) LatestVitals(ctx context.Context, patientID uuid.UUID) (*HealthVitals, error) {
	if err := canRead(ctx, patientID); err != nil {
		return nil, err
	}
	return s.vitals.Latest(ctx, patientID)
}

func (s *Service) ListVitals(ctx context.Context, patientID uuid.UUID, limit int) ([]*HealthVitals, error) {
	if err := canRead(ctx, patientID); err != nil {
		return nil, err
	}
	return s.vitals.ListByPatient(ctx, patientID, limit)
}

// -- Dashboard --

// Dashboard runs the four reads concurrently and waits for all of them. A
// failed read is logged and left empty; siblings are not cancelled.
func (s *Service) Dashboard(ctx context.Context, patientID uuid.UUID) (*Dashboard, error) {
	if err := canRead(ctx, patientID); err != nil {
		return nil, err
	}

	d := &Dashboard{}
	logFailure := func(part string, err error) {
		s.logger.Warn().Err(err).Str("patient_id", patientID.String()).Str("part", part).Msg("dashboard fetch failed")
	}

	var wg conc.WaitGroup
	wg.Go(func() {
		items, err := s.symptoms.ListByPatient(ctx, patientID, dashboardSymptomLimit)
		if err != nil {
			logFailure("symptoms", err)
			return
		}
		d.Symptoms = items
	})
	wg.Go(func() {
		items, err := s.bmi.ListByPatient(ctx, patientID, DefaultBMILimit)
		if err != nil {
			logFailure("bmi", err)
			return
		}
		d.BMIHistory = items
	})
	wg.Go(func() {
		v, err := s.vitals.Latest(ctx, patientID)
		if err != nil {
			logFailure("latest_vitals", err)
			return
		}
		d.LatestVitals = v
	})
	wg.Go(func() {
		items, err := s.vitals.ListByPatient(ctx, patientID, DefaultVitalsLimit)
		if err != nil {
			logFailure("vitals_history", err)
			return
		}
		d.VitalsHistory = items
	})
	wg.Wait()

	if d.Symptoms == nil {
		d.Symptoms = []*SymptomLog{}
	}
	if d.BMIHistory == nil {
		d.BMIHistory = []*BMIRecord{}
	}
	if d.VitalsHistory == nil {
		d.VitalsHistory = []*HealthVitals{}
	}
	return d, nil
}
