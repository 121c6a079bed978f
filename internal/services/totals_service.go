package services

import (
	"context"
	"errors"

	"github.com/baharkarakas/charity-faceoff/internal/models"
	repo "github.com/baharkarakas/charity-faceoff/internal/repository"
)

// TotalsService is the read side of the ledger. It never writes.
type TotalsService struct{ ledger repo.Ledger }

func NewTotalsService(ledger repo.Ledger) *TotalsService { return &TotalsService{ledger: ledger} }

func (s *TotalsService) Teams(ctx context.Context) ([]models.Team, error) {
	return s.ledger.ListTeams(ctx)
}

func (s *TotalsService) Team(ctx context.Context, teamID string) (models.Team, error) {
	t, err := s.ledger.GetTeam(ctx, teamID)
	if errors.Is(err, repo.ErrNotFound) {
		return models.Team{}, ErrTeamNotFound
	}
	return t, err
}

// Totals and Total feed the push subscription hub.
func (s *TotalsService) Totals(ctx context.Context) ([]models.TeamTotal, error) {
	teams, err := s.ledger.ListTeams(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.TeamTotal, 0, len(teams))
	for _, t := range teams {
		out = append(out, t.Total())
	}
	return out, nil
}

func (s *TotalsService) Total(ctx context.Context, teamID string) (models.TeamTotal, error) {
	t, err := s.Team(ctx, teamID)
	if err != nil {
		return models.TeamTotal{}, err
	}
	return t.Total(), nil
}
