package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aristath/tierledger/internal/domain"
	"github.com/aristath/tierledger/internal/events"
	"github.com/shopspring/decimal"
)

// NewUser describes a signup or admin-created account
type NewUser struct {
	ID         string  `json:"id"`
	UplineID   *string `json:"upline_id,omitempty"`
	ReferrerID *string `json:"referrer_id,omitempty"`
}

// CreateUser registers a user joining on the current simulated date.
// The upline and referrer, when given, must already exist.
func (s *Service) CreateUser(ctx context.Context, req NewUser) (*domain.User, error) {
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		return nil, domain.Invalid("id", fmt.Errorf("user id is required"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	today, err := s.clock.Today(ctx)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:              req.ID,
		UplineID:        emptyToNil(req.UplineID),
		ReferrerID:      emptyToNil(req.ReferrerID),
		Rank:            domain.MinRank,
		TotalInvestment: decimal.Zero,
		JoinDate:        today,
	}

	err = s.inTx(func(r *txRepos) error {
		for field, ref := range map[string]*string{"upline_id": user.UplineID, "referrer_id": user.ReferrerID} {
			if ref == nil {
				continue
			}
			if *ref == user.ID {
				return domain.Invalid(field, fmt.Errorf("a user cannot refer themselves"))
			}
			exists, err := r.users.Exists(ctx, *ref)
			if err != nil {
				return err
			}
			if !exists {
				return domain.Invalid(field, fmt.Errorf("%w: %s", domain.ErrUnknownUser, *ref))
			}
		}
		return r.users.Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	data := &events.UserCreatedData{UserID: user.ID}
	if user.UplineID != nil {
		data.UplineID = *user.UplineID
	}
	s.emit("users", data)
	return user, nil
}

// GetUser returns a user or ErrNotFound
func (s *Service) GetUser(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mustGetUser(ctx, id)
}

// ListUsers returns every user in join order
func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users.List(ctx)
}

func (s *Service) mustGetUser(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return u, nil
}

// OverrideRank sets a user's rank outside the monthly cycle. No bonus is paid.
func (s *Service) OverrideRank(ctx context.Context, id string, rank int, reason string) (*domain.User, error) {
	if rank < domain.MinRank || rank > domain.MaxRank {
		return nil, domain.Invalid("rank", fmt.Errorf("%w: %d", domain.ErrInvalidRank, rank))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.mustGetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := user.Rank

	if err := s.users.SetRank(ctx, id, rank); err != nil {
		return nil, err
	}
	user.Rank = rank

	s.log.Warn().
		Str("user_id", id).
		Int("from", previous).
		Int("to", rank).
		Str("reason", reason).
		Msg("Rank overridden by admin")

	s.emit("users", &events.UserUpdatedData{UserID: id, Field: "rank", Value: strconv.Itoa(rank), Reason: reason})
	return user, nil
}

// SetFrozen freezes or unfreezes an account. Frozen users cannot move money
// and do not count towards anyone's active downline.
func (s *Service) SetFrozen(ctx context.Context, id string, frozen bool) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.mustGetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetFrozen(ctx, id, frozen); err != nil {
		return nil, err
	}
	user.Frozen = frozen

	s.log.Info().Str("user_id", id).Bool("frozen", frozen).Msg("User freeze state changed")
	s.emit("users", &events.UserUpdatedData{UserID: id, Field: "frozen", Value: strconv.FormatBool(frozen)})
	return user, nil
}

// Downline returns every user below id in breadth-first order
func (s *Service) Downline(ctx context.Context, id string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.mustGetUser(ctx, id); err != nil {
		return nil, err
	}
	graph, err := s.bind(s.ledgerDB.Conn()).graph(ctx)
	if err != nil {
		return nil, err
	}
	return graph.Downline(id), nil
}

// UplineChain returns the ancestors of id, nearest first. maxDepth 0 means unlimited.
func (s *Service) UplineChain(ctx context.Context, id string, maxDepth int) ([]string, error) {
	if maxDepth < 0 {
		return nil, domain.Invalid("depth", fmt.Errorf("depth must not be negative"))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.mustGetUser(ctx, id); err != nil {
		return nil, err
	}
	graph, err := s.bind(s.ledgerDB.Conn()).graph(ctx)
	if err != nil {
		return nil, err
	}
	return graph.UplineChain(id, maxDepth), nil
}

// CreateAsset registers a project or pool
func (s *Service) CreateAsset(ctx context.Context, asset *domain.Asset) error {
	if err := validateAsset(asset); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.assets.Create(ctx, asset); err != nil {
		return err
	}

	s.log.Info().Str("asset_id", asset.ID).Str("apy", asset.APY.String()).Msg("Asset created")
	s.emit("assets", &events.AssetCreatedData{AssetID: asset.ID, Kind: string(asset.Kind), APY: asset.APY.String()})
	return nil
}

// GetAsset returns an asset or ErrNotFound
func (s *Service) GetAsset(ctx context.Context, id string) (*domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, err := s.assets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("asset %s: %w", id, domain.ErrNotFound)
	}
	return a, nil
}

func validateAsset(a *domain.Asset) error {
	a.ID = strings.TrimSpace(a.ID)
	if a.ID == "" {
		return domain.Invalid("id", fmt.Errorf("asset id is required"))
	}
	if a.Name == "" {
		a.Name = a.ID
	}
	if a.Kind == "" {
		a.Kind = domain.AssetPool
	}
	if a.Kind != domain.AssetProject && a.Kind != domain.AssetPool {
		return domain.Invalid("kind", fmt.Errorf("unknown asset kind %q", a.Kind))
	}
	if a.MinInvestment.IsNegative() {
		return domain.Invalid("min_investment", domain.ErrInvalidAmount)
	}
	if len(a.TeamBuilderRates) > domain.TeamBuilderLevels {
		return domain.Invalid("team_builder_rates", fmt.Errorf("at most %d levels", domain.TeamBuilderLevels))
	}
	for _, rate := range a.TeamBuilderRates {
		if rate.IsNegative() {
			return domain.Invalid("team_builder_rates", domain.ErrInvalidAmount)
		}
	}
	return nil
}

func emptyToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
