package dto

type OfficeOutput struct {
	ID            string
	Name          string
	Latitude      float64
	Longitude     float64
	CheckinRadius float64
	AdminID       string
	Members       int
}

type MemberOutput struct {
	UserID string
	Role   string
}

// ResolutionOutput carries one office stream emission. Office is nil when the
// user is unassigned or Err is set.
type ResolutionOutput struct {
	Office *OfficeOutput
	Err    error
}
