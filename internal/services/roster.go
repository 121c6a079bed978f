package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/baharkarakas/charity-faceoff/internal/models"
	repo "github.com/baharkarakas/charity-faceoff/internal/repository"
)

// DefaultRoster is the matchup the site launched with. Totals are the
// opening balances carried over from the pre-launch pledge drive.
func DefaultRoster(now time.Time) []models.Team {
	return []models.Team{
		{ID: "dallasStars", Name: "Dallas Stars", CharityName: "Dallas Stars Foundation", DonationTotal: 25750, LastUpdatedAt: now},
		{ID: "coloradoAvalanche", Name: "Colorado Avalanche", CharityName: "Kroenke Sports Charities", DonationTotal: 28500, LastUpdatedAt: now},
	}
}

// SeedTeams inserts any roster team that does not exist yet. Existing rows,
// and therefore their totals, are left untouched.
func SeedTeams(ctx context.Context, ledger repo.Ledger, teams []models.Team) error {
	for _, t := range teams {
		if err := ledger.EnsureTeam(ctx, t); err != nil {
			return fmt.Errorf("seed team %s: %w", t.ID, err)
		}
	}
	return nil
}

type rosterFile struct {
	Teams []struct {
		ID           string `yaml:"id"`
		Name         string `yaml:"name"`
		Charity      string `yaml:"charity"`
		OpeningTotal int64  `yaml:"opening_total"`
	} `yaml:"teams"`
}

// LoadRoster reads a YAML roster:
//
//	teams:
//	  - id: dallasStars
//	    name: Dallas Stars
//	    charity: Dallas Stars Foundation
//	    opening_total: 25750
func LoadRoster(r io.Reader) ([]models.Team, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f rosterFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("roster: empty file")
		}
		return nil, fmt.Errorf("roster: %w", err)
	}
	if len(f.Teams) == 0 {
		return nil, errors.New("roster: no teams")
	}
	now := time.Now().UTC()
	seen := make(map[string]bool, len(f.Teams))
	teams := make([]models.Team, 0, len(f.Teams))
	for i, t := range f.Teams {
		id := strings.TrimSpace(t.ID)
		switch {
		case id == "":
			return nil, fmt.Errorf("roster: team %d has no id", i)
		case seen[id]:
			return nil, fmt.Errorf("roster: duplicate team %q", id)
		case t.OpeningTotal < 0:
			return nil, fmt.Errorf("roster: team %q has a negative opening total", id)
		}
		seen[id] = true
		name := t.Name
		if name == "" {
			name = id
		}
		teams = append(teams, models.Team{ID: id, Name: name, CharityName: t.Charity, DonationTotal: t.OpeningTotal, LastUpdatedAt: now})
	}
	return teams, nil
}
