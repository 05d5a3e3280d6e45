package insights

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vitalia/portal/internal/platform/llm"
)

const minNotesLength = 10

// ValidationError is reported to the caller as a 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// KeyFunc returns the model credential; it is consulted on every call.
type KeyFunc func() string

type Service struct {
	model  llm.Completer
	key    KeyFunc
	logger zerolog.Logger
}

func NewService(model llm.Completer, key KeyFunc, logger zerolog.Logger) *Service {
	if key == nil {
		key = func() string { return "" }
	}
	return &Service{model: model, key: key, logger: logger}
}

func (s *Service) AnalyzeRisk(ctx context.Context, v *Vitals) (Result[RiskAssessment], error) {
	if v == nil || v.HeartRate == 0 || v.BloodPressureSystolic == 0 {
		return Result[RiskAssessment]{}, &ValidationError{"Missing required vitals data"}
	}
	return run(ctx, s, riskStrategy, *v)
}

func (s *Service) ExtractClinicalData(ctx context.Context, notes string) (Result[ClinicalExtraction], error) {
	if len([]rune(strings.TrimSpace(notes))) < minNotesLength {
		return Result[ClinicalExtraction]{}, &ValidationError{"Please provide clinical notes (at least 10 characters)"}
	}
	return run(ctx, s, extractionStrategy, notes)
}

func (s *Service) SmartRundown(ctx context.Context, p *PatientSnapshot) (Result[Rundown], error) {
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return Result[Rundown]{}, &ValidationError{"Missing patient data"}
	}
	return run(ctx, s, rundownStrategy, *p)
}

func run[In, Out any](ctx context.Context, s *Service, st Strategy[In, Out], in In) (Result[Out], error) {
	res, err := st.Run(ctx, s.model, s.key(), in)
	if err != nil {
		s.logger.Warn().Err(err).Str("function", st.Name).Msg("model call failed")
		return res, err
	}
	s.logger.Debug().Str("function", st.Name).Str("source", string(res.Source)).Msg("insight produced")
	return res, nil
}
