package models

// TotalChange is the before/after of one total mutation.
type TotalChange struct {
	PreviousTotal int64 `json:"previous_total"`
	NewTotal      int64 `json:"new_total"`
}
