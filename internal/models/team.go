package models

import "time"

// Team is one side of a matchup. DonationTotal is in whole currency units and
// only ever grows.
type Team struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	CharityName   string    `json:"charity_name"`
	DonationTotal int64     `json:"donation_total"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// TeamTotal is the read-side projection served by the totals feed.
type TeamTotal struct {
	TeamID        string    `json:"team_id"`
	DonationTotal int64     `json:"donation_total"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

func (t Team) Total() TeamTotal {
	return TeamTotal{TeamID: t.ID, DonationTotal: t.DonationTotal, LastUpdatedAt: t.LastUpdatedAt}
}
