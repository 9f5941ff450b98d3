package domain

// Member is one employee assigned to an office.
type Member struct {
	UserID string
	Role   string
}
