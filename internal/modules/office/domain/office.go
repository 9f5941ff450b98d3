package domain

import (
	"fmt"
	"math"
	"strings"

	apperrors "geoattend/internal/platform/errors"
	"geoattend/internal/platform/slug"
)

// Unassigned is the office id the directory uses for users without an office.
const Unassigned = "N/A"

type Office struct {
	ID            string  `yaml:"id"`
	Name          string  `yaml:"name"`
	Latitude      float64 `yaml:"latitude"`
	Longitude     float64 `yaml:"longitude"`
	CheckinRadius float64 `yaml:"checkin_radius"`
	AdminID       string  `yaml:"admin_id"`
}

func (o Office) Validate() error {
	if !slug.Valid(o.ID) {
		return fmt.Errorf("%w: office id %q must be a slug", apperrors.ErrInvalidInput, o.ID)
	}
	if strings.TrimSpace(o.Name) == "" {
		return fmt.Errorf("%w: office %s has no name", apperrors.ErrInvalidInput, o.ID)
	}
	if !finite(o.Latitude) || !finite(o.Longitude) || !finite(o.CheckinRadius) {
		return fmt.Errorf("%w: office %s has a non-finite coordinate or radius", apperrors.ErrInvalidInput, o.ID)
	}
	if o.Latitude < -90 || o.Latitude > 90 || o.Longitude < -180 || o.Longitude > 180 {
		return fmt.Errorf("%w: office %s location out of range", apperrors.ErrInvalidInput, o.ID)
	}
	if o.CheckinRadius <= 0 {
		return fmt.Errorf("%w: office %s checkin radius must be positive", apperrors.ErrInvalidInput, o.ID)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

type Assignment struct {
	UserID   string `yaml:"user_id"`
	OfficeID string `yaml:"office_id"`
	Role     string `yaml:"role"`
}

func (a Assignment) Assigned() bool {
	id := strings.TrimSpace(a.OfficeID)
	return id != "" && id != Unassigned
}

// Directory is the full office and employee assignment table.
type Directory struct {
	Offices     []Office     `yaml:"offices"`
	Assignments []Assignment `yaml:"assignments"`
}

// Validate checks every office, unique ids, and that assignments point at
// known offices. A user may appear at most once.
func (d Directory) Validate() error {
	offices := make(map[string]struct{}, len(d.Offices))
	for _, o := range d.Offices {
		if err := o.Validate(); err != nil {
			return err
		}
		if _, dup := offices[o.ID]; dup {
			return fmt.Errorf("%w: duplicate office id %s", apperrors.ErrInvalidInput, o.ID)
		}
		offices[o.ID] = struct{}{}
	}
	users := make(map[string]struct{}, len(d.Assignments))
	for _, a := range d.Assignments {
		if strings.TrimSpace(a.UserID) == "" {
			return fmt.Errorf("%w: assignment without user id", apperrors.ErrInvalidInput)
		}
		if _, dup := users[a.UserID]; dup {
			return fmt.Errorf("%w: user %s assigned twice", apperrors.ErrInvalidInput, a.UserID)
		}
		users[a.UserID] = struct{}{}
		if !a.Assigned() {
			continue
		}
		if _, ok := offices[a.OfficeID]; !ok {
			return fmt.Errorf("%w: user %s assigned to unknown office %s", apperrors.ErrInvalidInput, a.UserID, a.OfficeID)
		}
	}
	return nil
}

func (d Directory) Office(id string) (Office, bool) {
	for _, o := range d.Offices {
		if o.ID == id {
			return o, true
		}
	}
	return Office{}, false
}

// OfficeFor returns the user's office; ok is false for unknown or
// unassigned users.
func (d Directory) OfficeFor(userID string) (Office, bool) {
	for _, a := range d.Assignments {
		if a.UserID != userID || !a.Assigned() {
			continue
		}
		return d.Office(a.OfficeID)
	}
	return Office{}, false
}

func (d Directory) Members(officeID string) []Assignment {
	var out []Assignment
	for _, a := range d.Assignments {
		if a.OfficeID == officeID {
			out = append(out, a)
		}
	}
	return out
}

// Resolution is one emission of a user's office stream. A nil Office with
// a nil Err means the user is unassigned.
type Resolution struct {
	Office *Office
	Err    error
}

func (r Resolution) Same(other Resolution) bool {
	switch {
	case (r.Office == nil) != (other.Office == nil):
		return false
	case r.Office != nil && *r.Office != *other.Office:
		return false
	case (r.Err == nil) != (other.Err == nil):
		return false
	case r.Err != nil && r.Err.Error() != other.Err.Error():
		return false
	}
	return true
}
