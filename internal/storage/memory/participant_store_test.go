package memory

import (
	"context"
	"errors"
	"testing"

	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/storage"
)

func TestParticipantStore_ListActive(t *testing.T) {
	store := NewParticipantStore()
	ctx := context.Background()

	for _, p := range []*domain.Participant{
		{ExperimentID: "exp-2", Active: true},
		{ExperimentID: "exp-1", Active: true},
		{ExperimentID: "exp-3", Active: false},
	} {
		if err := store.Insert(ctx, p); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	active, err := store.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("Expected 2 active participants, got %d", len(active))
	}
	if active[0].ExperimentID != "exp-1" {
		t.Errorf("Expected ordering by experiment id, got %s first", active[0].ExperimentID)
	}
}

func TestParticipantStore_Duplicate(t *testing.T) {
	store := NewParticipantStore()
	ctx := context.Background()

	p := &domain.Participant{ExperimentID: "exp-1"}
	if err := store.Insert(ctx, p); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, p); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestParticipantStore_UpdateCredential(t *testing.T) {
	store := NewParticipantStore()
	ctx := context.Background()

	p := &domain.Participant{
		ExperimentID: "exp-1",
		Credential:   domain.Credential{AccessToken: "old", RefreshToken: "r1"},
	}
	if err := store.Insert(ctx, p); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := store.UpdateCredential(ctx, "exp-1", domain.Credential{AccessToken: "new", RefreshToken: "r2"}); err != nil {
		t.Fatalf("UpdateCredential failed: %v", err)
	}

	got, err := store.GetByID(ctx, "exp-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Credential.AccessToken != "new" || got.Credential.RefreshToken != "r2" {
		t.Errorf("Credential not updated: %+v", got.Credential)
	}

	if err := store.UpdateCredential(ctx, "missing", domain.Credential{}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
