package guardkit

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fernandezvara/dbkit"
	"github.com/uptrace/bun"
)

// stateRow is the persisted form of one store entry.
type stateRow struct {
	bun.BaseModel `bun:"table:contract_state,alias:cs"`

	Contract  string    `bun:"contract,pk"`
	Key       string    `bun:"key,pk"`
	Value     []byte    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,default:current_timestamp"`
}

// BunStore is a Postgres-backed Store on top of dbkit/bun. All entries of
// one contract instance share a contract identifier, so several instances
// can live in the same table.
type BunStore struct {
	db       dbkit.IDB
	contract string
}

// NewBunStore creates a Store persisting into the contract_state table.
// contract identifies this contract instance's rows. Run Migrations()
// through dbkit.Migrate before first use.
//
// Example:
//
//	db, _ := dbkit.New(dbkit.Config{URL: cfg.DatabaseURL})
//	store := guardkit.NewBunStore(db, "counter.app")
//	_, _ = db.Migrate(ctx, store.Migrations())
func NewBunStore(db dbkit.IDB, contract string) *BunStore {
	return &BunStore{db: db, contract: contract}
}

// NewBunStoreFromConfig connects to cfg.DatabaseURL and returns a BunStore
// with migrations applied.
func NewBunStoreFromConfig(ctx context.Context, cfg Config, contract string) (*BunStore, error) {
	if cfg.DatabaseURL == "" {
		return nil, NewError(ErrConfig, "database url is not configured")
	}
	db, err := dbkit.New(dbkit.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, storageErr("connect database", err)
	}
	store := NewBunStore(db, contract)
	if _, err := db.Migrate(ctx, store.Migrations()); err != nil {
		return nil, storageErr("migrate contract_state", err)
	}
	return store, nil
}

// Migrations returns the schema migrations required by BunStore.
// Use dbkit.Migrate(ctx, store.Migrations()) to run them.
func (s *BunStore) Migrations() []dbkit.Migration {
	return []dbkit.Migration{
		{
			ID:          "guardkit-001",
			Description: "Create contract_state table",
			SQL: `
                CREATE TABLE IF NOT EXISTS contract_state (
                    contract TEXT NOT NULL,
                    key TEXT NOT NULL,
                    value BYTEA NOT NULL,
                    updated_at TIMESTAMPTZ DEFAULT current_timestamp,
                    PRIMARY KEY (contract, key)
                )`,
		},
	}
}

// Get implements Store.
func (s *BunStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var row stateRow
	err := s.db.NewSelect().
		Model(&row).
		Where("contract = ? AND key = ?", s.contract, key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbkit.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return row.Value, true, nil
}

// Set implements Store.
func (s *BunStore) Set(ctx context.Context, key string, value []byte) error {
	// A nil slice would render as SQL NULL and trip the NOT NULL
	// constraint; empty values must stay distinct from absence.
	if value == nil {
		value = []byte{}
	}
	row := &stateRow{
		Contract:  s.contract,
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	result, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (contract, key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return dbkit.WithErr(result, err, "SetContractState").Err()
}

// Delete implements Store.
func (s *BunStore) Delete(ctx context.Context, key string) error {
	result, err := s.db.NewDelete().
		Table("contract_state").
		Where("contract = ? AND key = ?", s.contract, key).
		Exec(ctx)
	return dbkit.WithErr(result, err, "DeleteContractState").Err()
}
