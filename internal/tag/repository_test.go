package tag

import (
	"errors"
	"testing"
)

func TestRepository_CreateAndGet(t *testing.T) {
	repo := NewRepository(testDB(t))

	created := mustCreate(t, repo, Tag{
		EPC:        "E2000017221101441890F1AB",
		Alias:      "Dab",
		AliasGroup: GroupMaleTree,
		RoomNumber: "12",
		Notes:      "gate reader",
	})
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("Create() should stamp timestamps")
	}

	got, err := repo.GetByEPC(t.Context(), "E2000017221101441890F1AB")
	if err != nil {
		t.Fatalf("GetByEPC() error = %v", err)
	}
	if got.Alias != "Dab" || got.AliasGroup != GroupMaleTree || got.RoomNumber != "12" || got.Status != StatusActive {
		t.Errorf("GetByEPC() = %+v", got)
	}
}

func TestRepository_CreateDuplicateEPC(t *testing.T) {
	repo := NewRepository(testDB(t))
	mustCreate(t, repo, Tag{EPC: "AABBCCDD", Alias: "Dab"})

	err := repo.Create(t.Context(), &Tag{EPC: "AABBCCDD", Alias: "Jesion", Status: StatusActive})
	if !errors.Is(err, ErrDuplicateEPC) {
		t.Errorf("Create() duplicate EPC error = %v, want ErrDuplicateEPC", err)
	}
}

func TestRepository_CreateAliasConflict(t *testing.T) {
	repo := NewRepository(testDB(t))
	mustCreate(t, repo, Tag{EPC: "AABBCCDD", Alias: "Dab"})

	err := repo.Create(t.Context(), &Tag{EPC: "EEFF0011", Alias: "Dab", Status: StatusActive})
	if !errors.Is(err, ErrAliasConflict) {
		t.Errorf("Create() alias conflict error = %v, want ErrAliasConflict", err)
	}
}

func TestRepository_AliasConflictIncludesInactive(t *testing.T) {
	repo := NewRepository(testDB(t))
	mustCreate(t, repo, Tag{EPC: "AABBCCDD", Alias: "Dab"})
	if err := repo.SetStatus(t.Context(), "AABBCCDD", StatusInactive); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	// Deactivated tags keep their alias reserved.
	err := repo.Create(t.Context(), &Tag{EPC: "EEFF0011", Alias: "Dab", Status: StatusActive})
	if !errors.Is(err, ErrAliasConflict) {
		t.Errorf("alias of inactive tag should stay reserved, error = %v", err)
	}
}

func TestRepository_Update(t *testing.T) {
	repo := NewRepository(testDB(t))
	created := mustCreate(t, repo, Tag{EPC: "AABBCCDD", Alias: "Dab", RoomNumber: "12"})

	created.Alias = "Jesion"
	created.RoomNumber = "14"
	if err := repo.Update(t.Context(), created); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := repo.GetByEPC(t.Context(), "AABBCCDD")
	if got.Alias != "Jesion" || got.RoomNumber != "14" {
		t.Errorf("Update() not persisted: %+v", got)
	}
	if !got.UpdatedAt.After(got.CreatedAt) && !got.UpdatedAt.Equal(got.CreatedAt) {
		t.Error("UpdatedAt should be stamped on update")
	}
}

func TestRepository_UpdateKeepingOwnAlias(t *testing.T) {
	repo := NewRepository(testDB(t))
	created := mustCreate(t, repo, Tag{EPC: "AABBCCDD", Alias: "Dab"})

	// Unchanged alias must not collide with itself.
	created.Notes = "moved to hall"
	if err := repo.Update(t.Context(), created); err != nil {
		t.Errorf("Update() keeping own alias error = %v", err)
	}
}

func TestRepository_UpdateAliasConflict(t *testing.T) {
	repo := NewRepository(testDB(t))
	mustCreate(t, repo, Tag{EPC: "AABBCCDD", Alias: "Dab"})
	other := mustCreate(t, repo, Tag{EPC: "EEFF0011", Alias: "Jesion"})

	other.Alias = "Dab"
	if err := repo.Update(t.Context(), other); !errors.Is(err, ErrAliasConflict) {
		t.Errorf("Update() stealing alias error = %v, want ErrAliasConflict", err)
	}
}

func TestRepository_UpdateNotFound(t *testing.T) {
	repo := NewRepository(testDB(t))

	err := repo.Update(t.Context(), &Tag{EPC: "AABBCCDD", Alias: "Dab", Status: StatusActive})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() missing tag error = %v, want ErrNotFound", err)
	}
}

func TestRepository_SetStatus(t *testing.T) {
	repo := NewRepository(testDB(t))
	mustCreate(t, repo, Tag{EPC: "AABBCCDD", Alias: "Dab"})

	if err := repo.SetStatus(t.Context(), "AABBCCDD", StatusInactive); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	got, _ := repo.GetByEPC(t.Context(), "AABBCCDD")
	if got.Status != StatusInactive {
		t.Errorf("status = %q, want inactive", got.Status)
	}

	if err := repo.SetStatus(t.Context(), "MISSING0", StatusInactive); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetStatus() missing tag error = %v, want ErrNotFound", err)
	}
}

func TestRepository_ListFiltersInactive(t *testing.T) {
	repo := NewRepository(testDB(t))
	mustCreate(t, repo, Tag{EPC: "AABBCCDD", Alias: "Dab"})
	mustCreate(t, repo, Tag{EPC: "EEFF0011", Alias: "Jagoda", Status: StatusInactive})

	active, err := repo.List(t.Context(), false)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(active) != 1 || active[0].EPC != "AABBCCDD" {
		t.Errorf("List(active only) = %+v, want just AABBCCDD", active)
	}

	all, err := repo.List(t.Context(), true)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("List(all) returned %d tags, want 2", len(all))
	}
	// Ordered by alias.
	if all[0].Alias != "Dab" || all[1].Alias != "Jagoda" {
		t.Errorf("List() order = [%s, %s], want alias order", all[0].Alias, all[1].Alias)
	}
}

func TestRepository_AliasSet(t *testing.T) {
	repo := NewRepository(testDB(t))
	mustCreate(t, repo, Tag{EPC: "AABBCCDD", Alias: "Dab"})
	mustCreate(t, repo, Tag{EPC: "EEFF0011", Alias: "Jagoda", Status: StatusInactive})

	set, err := repo.AliasSet(t.Context())
	if err != nil {
		t.Fatalf("AliasSet() error = %v", err)
	}
	if len(set) != 2 {
		t.Fatalf("AliasSet() size = %d, want 2 (inactive included)", len(set))
	}
	for _, alias := range []string{"Dab", "Jagoda"} {
		if _, ok := set[alias]; !ok {
			t.Errorf("AliasSet() missing %q", alias)
		}
	}
}

func TestRepository_InsertBatch(t *testing.T) {
	repo := NewRepository(testDB(t))

	n, err := repo.InsertBatch(t.Context(), []Tag{
		{EPC: "AABBCCDD", Alias: "Dab", Status: StatusActive},
		{EPC: "EEFF0011", Alias: "Jagoda", Status: StatusActive},
	})
	if err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}
	if n != 2 {
		t.Errorf("InsertBatch() = %d, want 2", n)
	}

	count, _ := repo.Count(t.Context())
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}
}

func TestRepository_InsertBatch_ExcludesSkippedRowsFromCount(t *testing.T) {
	repo := NewRepository(testDB(t))

	n, err := repo.InsertBatch(t.Context(), []Tag{
		{EPC: "AABBCCDD", Alias: "Dab", Status: StatusActive},
		{EPC: "EEFF0011", Alias: "Dab", Status: StatusActive},    // alias collision, skipped
		{EPC: "AABBCCDD", Alias: "Jagoda", Status: StatusActive}, // EPC collision, skipped
	})
	if err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}
	if n != 1 {
		t.Errorf("InsertBatch() = %d, want 1", n)
	}

	count, _ := repo.Count(t.Context())
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}
