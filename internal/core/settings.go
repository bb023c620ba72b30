package core

import (
	"context"
	"strconv"

	"github.com/aristath/tierledger/internal/domain"
	"github.com/aristath/tierledger/internal/events"
	"github.com/aristath/tierledger/internal/modules/settings"
)

// RateTables are the commission rates currently in force
type RateTables struct {
	Instant     settings.InstantRates `json:"instant"`
	TeamBuilder []string              `json:"team_builder"`
	AssetGrowth string                `json:"asset_growth"`
}

// AllSettings returns every setting merged over its default
func (s *Service) AllSettings() (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.GetAll()
}

// UpdateSetting validates and stores one setting. Config writes take the
// writer lock so a running cycle never sees a half-applied change.
func (s *Service) UpdateSetting(key, value string) error {
	if err := settings.ValidateSetting(key, value); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	description := settings.SettingDescriptions[key]
	if err := s.settings.Set(key, value, &description); err != nil {
		return err
	}

	s.log.Info().Str("key", key).Str("value", value).Msg("Setting updated")
	s.emit("settings", &events.SettingsChangedData{Key: key, Value: value})
	return nil
}

// RateTables returns the effective commission rates
func (s *Service) RateTables() (*RateTables, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	instant, err := s.rates.InstantRates()
	if err != nil {
		return nil, err
	}
	table, err := s.rates.TeamBuilderRates()
	if err != nil {
		return nil, err
	}
	growth, err := s.rates.AssetGrowthRate()
	if err != nil {
		return nil, err
	}

	out := &RateTables{Instant: instant, AssetGrowth: growth.String()}
	for _, rate := range table {
		out.TeamBuilder = append(out.TeamBuilder, rate.String())
	}
	return out, nil
}

// RankLadder returns the configured ranks, lowest first
func (s *Service) RankLadder(ctx context.Context) ([]domain.Rank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ranks.List(ctx)
}

// UpsertRank stores one rank level
func (s *Service) UpsertRank(ctx context.Context, rank domain.Rank) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ranks.Upsert(ctx, rank); err != nil {
		return err
	}

	s.log.Info().Int("level", rank.Level).Int("min_accounts", rank.MinAccounts).Msg("Rank updated")
	s.emit("settings", &events.SettingsChangedData{Key: "rank_" + strconv.Itoa(rank.Level), Value: rank})
	return nil
}
