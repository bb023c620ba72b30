// Package assets provides the registry of investable projects and pools.
// It answers the two lookups investments depend on: APY and minimum investment.
package assets

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/tierledger/internal/database"
	"github.com/aristath/tierledger/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

// Repository handles asset persistence in ledger.db.
// Per-asset team-builder overrides are stored as a msgpack-encoded list of decimal strings.
type Repository struct {
	db  database.Querier
	log zerolog.Logger
}

// NewRepository creates a new asset repository
func NewRepository(db database.Querier, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "assets").Logger(),
	}
}

// WithTx returns a repository bound to q
func (r *Repository) WithTx(q database.Querier) *Repository {
	return &Repository{db: q, log: r.log}
}

// Create registers a new asset.
// Returns ErrDuplicateAsset if the id is taken.
func (r *Repository) Create(ctx context.Context, a *domain.Asset) error {
	existing, err := r.Get(ctx, a.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("asset %s: %w", a.ID, domain.ErrDuplicateAsset)
	}

	overrides, err := encodeRates(a.TeamBuilderRates)
	if err != nil {
		return err
	}

	a.CreatedAt = time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO assets (id, name, kind, apy, min_investment, team_builder_rates, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Name, string(a.Kind), domain.FormatAmount(a.APY), domain.FormatAmount(a.MinInvestment), overrides, a.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert asset %s: %w", a.ID, err)
	}

	return nil
}

// Get retrieves an asset by id.
// Returns nil if the asset doesn't exist (not an error).
func (r *Repository) Get(ctx context.Context, id string) (*domain.Asset, error) {
	var (
		a            domain.Asset
		kind         string
		apy, minimum string
		overrides    []byte
		createdAt    int64
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, kind, apy, min_investment, team_builder_rates, created_at
		FROM assets WHERE id = ?
	`, id).Scan(&a.ID, &a.Name, &kind, &apy, &minimum, &overrides, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset %s: %w", id, err)
	}

	if a.APY, err = domain.ParseAmount(apy); err != nil {
		return nil, err
	}
	if a.MinInvestment, err = domain.ParseAmount(minimum); err != nil {
		return nil, err
	}
	if a.TeamBuilderRates, err = decodeRates(overrides); err != nil {
		return nil, fmt.Errorf("asset %s: %w", id, err)
	}
	a.Kind = domain.AssetKind(kind)
	a.CreatedAt = time.Unix(createdAt, 0).UTC()

	return &a, nil
}

// GetAPY returns the asset's annual yield in percent.
// Returns ErrUnknownAsset when the asset is missing.
func (r *Repository) GetAPY(ctx context.Context, id string) (decimal.Decimal, error) {
	a, err := r.mustGet(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return a.APY, nil
}

// GetMinInvestment returns the smallest amount accepted for the asset
func (r *Repository) GetMinInvestment(ctx context.Context, id string) (decimal.Decimal, error) {
	a, err := r.mustGet(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return a.MinInvestment, nil
}

// GetTeamBuilderRates returns the asset's cascade override, nil when it uses the global table
func (r *Repository) GetTeamBuilderRates(ctx context.Context, id string) ([]decimal.Decimal, error) {
	a, err := r.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.TeamBuilderRates, nil
}

func (r *Repository) mustGet(ctx context.Context, id string) (*domain.Asset, error) {
	a, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("asset %s: %w", id, domain.ErrUnknownAsset)
	}
	return a, nil
}

func encodeRates(rates []decimal.Decimal) ([]byte, error) {
	if len(rates) == 0 {
		return nil, nil
	}
	raw := make([]string, len(rates))
	for i, rate := range rates {
		raw[i] = rate.String()
	}
	data, err := msgpack.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode team builder rates: %w", err)
	}
	return data, nil
}

func decodeRates(data []byte) ([]decimal.Decimal, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var raw []string
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode team builder rates: %w", err)
	}
	rates := make([]decimal.Decimal, len(raw))
	for i, s := range raw {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid team builder rate %q: %w", s, err)
		}
		rates[i] = d
	}
	return rates, nil
}
