package profile

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("profile not found")

const (
	GenderMale           = "male"
	GenderFemale         = "female"
	GenderOther          = "other"
	GenderPreferNotToSay = "prefer_not_to_say"
)

var validGenders = map[string]bool{
	GenderMale: true, GenderFemale: true, GenderOther: true, GenderPreferNotToSay: true,
}

func ValidGender(g string) bool { return validGenders[g] }

// Profile maps to the profiles table. Its id equals the account id.
type Profile struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Role      string    `db:"role" json:"role"`
	FullName  string    `db:"full_name" json:"full_name"`
	Age       *int      `db:"age" json:"age"`
	Gender    *string   `db:"gender" json:"gender"`
	AvatarURL *string   `db:"avatar_url" json:"avatar_url"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RegistryEntry is a patient row of the doctor's registry export.
type RegistryEntry struct {
	Profile
	LatestBMICategory *string `json:"latest_bmi_category"`
}

// UpdateRequest carries the self-editable fields; nil means unchanged.
type UpdateRequest struct {
	FullName *string `json:"full_name"`
	Age      *int    `json:"age"`
	Gender   *string `json:"gender"`
}
