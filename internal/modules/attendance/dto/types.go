package dto

import "time"

type EventOutput struct {
	ID        string
	Seq       int
	Status    string
	Timestamp time.Time
	Latitude  float64
	Longitude float64
	Device    string
	Network   string
}

type LogInput struct {
	UserID string
	Day    string
}

type RecordInput struct {
	UserID string
	Day    string
}

type RecordOutput struct {
	UserID           string
	Day              string
	FirstCheckIn     *time.Time
	LastCheckout     *time.Time
	OpenSince        *time.Time
	EffectiveMinutes int
	// ProvisionalMinutes is the open session's accrual up to now; it is not
	// part of the stored record.
	ProvisionalMinutes int
	UpdatedAt          time.Time
	Found              bool
}

type CheckInput struct {
	UserID string
}

type CheckOutput struct {
	UserID           string
	Day              string
	OfficeName       string
	State            string
	Status           string
	DistanceText     string
	Distance         float64
	Transition       string
	EffectiveMinutes int
}

type DistanceInput struct {
	UserID string
	// UseCurrent samples the position source instead of Latitude/Longitude.
	UseCurrent bool
	Latitude   float64
	Longitude  float64
}

type DistanceOutput struct {
	OfficeID      string
	OfficeName    string
	Distance      float64
	CheckinRadius float64
	Within        bool
	DistanceText  string
}

type ReportInput struct {
	OfficeID string
	Day      string
}

type ReportRow struct {
	UserID           string
	Role             string
	FirstCheckIn     *time.Time
	LastCheckout     *time.Time
	EffectiveMinutes int
	CheckedIn        bool
}

type ReportOutput struct {
	OfficeID   string
	OfficeName string
	Day        string
	Rows       []ReportRow
}

type ExportInput struct {
	UserID string
	Day    string
}

type ExportOutput struct {
	Path             string
	Events           int
	EffectiveMinutes int
}

type SnapshotOutput struct {
	UserID           string
	Day              string
	State            string
	Status           string
	DistanceText     string
	Distance         float64
	OfficeName       string
	HasLocation      bool
	Latitude         float64
	Longitude        float64
	EffectiveMinutes int
	CheckedIn        bool
	IsLoading        bool
	Stale            bool
	Err              string
	Events           []EventOutput
	UpdatedAt        time.Time
}
