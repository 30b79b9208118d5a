package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sku-service/models"
	"sku-service/store"
)

const stateKeyPrefix = "sku:op:"

// StateStore persists OperationState records keyed by operation kind.
type StateStore struct {
	store store.Store
	ttl   time.Duration
}

func NewStateStore(s store.Store, ttl time.Duration) *StateStore {
	return &StateStore{store: s, ttl: ttl}
}

func stateKey(kind models.OperationKind) string { return stateKeyPrefix + string(kind) }

// Load returns ErrStateExpired when nothing is stored for kind.
func (s *StateStore) Load(ctx context.Context, kind models.OperationKind) (*models.OperationState, error) {
	raw, err := s.store.Get(ctx, stateKey(kind))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrStateExpired
	}
	if err != nil {
		return nil, fmt.Errorf("load %s state: %w", kind, err)
	}
	var st models.OperationState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode %s state: %w", kind, err)
	}
	return &st, nil
}

func (s *StateStore) Save(ctx context.Context, st *models.OperationState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode %s state: %w", st.Kind, err)
	}
	if err := s.store.Set(ctx, stateKey(st.Kind), raw, s.ttl); err != nil {
		return fmt.Errorf("save %s state: %w", st.Kind, err)
	}
	return nil
}

func (s *StateStore) Clear(ctx context.Context, kind models.OperationKind) error {
	if err := s.store.Delete(ctx, stateKey(kind)); err != nil {
		return fmt.Errorf("clear %s state: %w", kind, err)
	}
	return nil
}
