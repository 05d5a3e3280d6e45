package profile

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vitalia/portal/internal/platform/auth"
	"github.com/vitalia/portal/internal/platform/blobstore"
)

const (
	maxNameLength = 100
	maxAge        = 150
)

// ValidationError is reported to the caller as a 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

type Service struct {
	profiles Repository
	blobs    blobstore.BlobStore
	logger   zerolog.Logger
}

func NewService(profiles Repository, blobs blobstore.BlobStore, logger zerolog.Logger) *Service {
	return &Service{profiles: profiles, blobs: blobs, logger: logger}
}

// ValidateFields checks the mutable profile fields shared by sign-up and
// self-update.
func ValidateFields(fullName string, age *int, gender *string) error {
	name := strings.TrimSpace(fullName)
	if name == "" {
		return invalid("full_name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return invalid("full_name must be at most %d characters", maxNameLength)
	}
	if age != nil && (*age < 0 || *age > maxAge) {
		return invalid("age must be between 0 and %d", maxAge)
	}
	if gender != nil && !ValidGender(*gender) {
		return invalid("invalid gender: %s", *gender)
	}
	return nil
}

// Create stores a new profile for an account.
func (s *Service) Create(ctx context.Context, p *Profile) error {
	if !auth.ValidRole(p.Role) {
		return invalid("invalid role: %s", p.Role)
	}
	p.FullName = strings.TrimSpace(p.FullName)
	if err := ValidateFields(p.FullName, p.Age, p.Gender); err != nil {
		return err
	}
	return s.profiles.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return s.profiles.GetByID(ctx, id)
}

func (s *Service) UpdateSelf(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Profile, error) {
	p, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.FullName != nil {
		p.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Age != nil {
		p.Age = req.Age
	}
	if req.Gender != nil {
		if *req.Gender == "" {
			p.Gender = nil
		} else {
			p.Gender = req.Gender
		}
	}
	if err := ValidateFields(p.FullName, p.Age, p.Gender); err != nil {
		return nil, err
	}
	if err := s.profiles.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return p, nil
}

// UploadAvatar stores the image and points the profile at it. The object is
// removed again when the profile update fails.
func (s *Service) UploadAvatar(ctx context.Context, id uuid.UUID, obj blobstore.Object) (*Profile, error) {
	if s.blobs == nil {
		return nil, fmt.Errorf("avatar storage is not configured")
	}
	obj.Owner = id.String()
	stored, err := s.blobs.Put(ctx, obj)
	if err != nil {
		return nil, err
	}
	if err := s.profiles.UpdateAvatar(ctx, id, stored.URL); err != nil {
		if derr := s.blobs.Delete(ctx, stored.Key); derr != nil {
			s.logger.Warn().Err(derr).Str("key", stored.Key).Msg("failed to remove orphaned avatar")
		}
		return nil, err
	}
	s.logger.Info().Str("user_id", id.String()).Str("key", stored.Key).Msg("avatar updated")
	return s.profiles.GetByID(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, query string, limit, offset int) ([]*Profile, int, error) {
	return s.profiles.ListPatients(ctx, query, limit, offset)
}

// GetPatient returns a patient profile; doctors and missing ids are
// ErrNotFound.
func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Profile, error) {
	p, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Role != auth.RolePatient {
		return nil, ErrNotFound
	}
	return p, nil
}

// ExportRegistry renders the patient registry as an XLSX workbook.
func (s *Service) ExportRegistry(ctx context.Context, query string) ([]byte, error) {
	entries, err := s.profiles.Registry(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	return GenerateRegistryExport(entries)
}
