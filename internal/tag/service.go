package tag

import (
	"context"
	"fmt"

	"github.com/nixstrav/mng-core/internal/audit"
	"github.com/nixstrav/mng-core/internal/infrastructure/logging"
)

// Actor identifies who performs a registry mutation, for the audit trail.
type Actor struct {
	Username string
	Origin   string
}

// CreateRequest carries the fields for a new tag. Alias may be empty, in
// which case one is generated from the group's pool (an empty group draws
// from the fruit pool).
type CreateRequest struct {
	EPC        string `json:"epc"`
	Alias      string `json:"alias"`
	AliasGroup string `json:"alias_group"`
	RoomNumber string `json:"room_number"`
	Notes      string `json:"notes"`
}

// UpdateRequest carries partial-update fields. Nil means leave untouched;
// a pointer to an empty string clears the field. Alias cannot be cleared,
// only replaced.
type UpdateRequest struct {
	Alias      *string `json:"alias"`
	AliasGroup *string `json:"alias_group"`
	RoomNumber *string `json:"room_number"`
	Notes      *string `json:"notes"`
	Status     *string `json:"status"`
}

// Registry owns both tag stores: the SQLite table (authoritative) and the
// JSON mirror (projection). Every mutation commits to SQLite first, then
// rewrites the mirror. A failed mirror rewrite surfaces as ErrMirrorSync
// even though the row is committed; callers report it, they do not roll
// back.
type Registry struct {
	repo   Repository
	mirror *Mirror
	audit  audit.Recorder
	logger *logging.Logger
}

// NewRegistry wires the registry service.
func NewRegistry(repo Repository, mirror *Mirror, recorder audit.Recorder, logger *logging.Logger) *Registry {
	return &Registry{
		repo:   repo,
		mirror: mirror,
		audit:  recorder,
		logger: logger,
	}
}

// Get returns the tag for a raw identifier.
func (s *Registry) Get(ctx context.Context, rawEPC string) (*Tag, error) {
	epc := NormalizeEPC(rawEPC)
	if epc == "" {
		return nil, ErrInvalidEPC
	}
	return s.repo.GetByEPC(ctx, epc)
}

// List returns tags, optionally including deactivated ones.
func (s *Registry) List(ctx context.Context, includeInactive bool) ([]Tag, error) {
	return s.repo.List(ctx, includeInactive)
}

// SuggestAlias returns the alias the generator would assign for a group
// right now. Purely advisory: creation re-generates and re-checks.
func (s *Registry) SuggestAlias(ctx context.Context, group string) (string, error) {
	aliasGroup, err := resolveGroup(group)
	if err != nil {
		return "", err
	}

	existing, err := s.repo.AliasSet(ctx)
	if err != nil {
		return "", err
	}
	return GenerateAlias(aliasGroup, existing), nil
}

// Create registers a new tag. The identifier is normalized first; an
// explicit alias is checked for conflicts, an omitted one is generated.
// After the commit the mirror is rewritten synchronously.
func (s *Registry) Create(ctx context.Context, req CreateRequest, actor Actor) (*Tag, error) {
	epc := NormalizeEPC(req.EPC)
	if epc == "" {
		return nil, ErrInvalidEPC
	}

	var group AliasGroup
	if req.AliasGroup != "" {
		g, err := ParseAliasGroup(req.AliasGroup)
		if err != nil {
			return nil, err
		}
		group = g
	}

	alias := req.Alias
	if alias == "" {
		existing, err := s.repo.AliasSet(ctx)
		if err != nil {
			return nil, err
		}
		poolGroup := group
		if poolGroup == "" {
			poolGroup = GroupFemaleFruit
		}
		alias = GenerateAlias(poolGroup, existing)
	}

	t := &Tag{
		EPC:        epc,
		Alias:      alias,
		AliasGroup: group,
		RoomNumber: req.RoomNumber,
		Notes:      req.Notes,
		Status:     StatusActive,
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor, audit.ActionTagCreate, epc, nil, snapshot(t))

	if err := s.rewriteMirror(ctx); err != nil {
		return t, err
	}
	return t, nil
}

// Update applies a partial update. Only supplied fields change; explicit
// empty values clear their field. The mirror is rewritten after commit.
func (s *Registry) Update(ctx context.Context, rawEPC string, req UpdateRequest, actor Actor) (*Tag, error) {
	epc := NormalizeEPC(rawEPC)
	if epc == "" {
		return nil, ErrInvalidEPC
	}

	current, err := s.repo.GetByEPC(ctx, epc)
	if err != nil {
		return nil, err
	}
	before := snapshot(current)

	updated := *current
	if req.Alias != nil {
		if *req.Alias == "" {
			return nil, ErrAliasConflict
		}
		updated.Alias = *req.Alias
	}
	if req.AliasGroup != nil {
		if *req.AliasGroup == "" {
			updated.AliasGroup = ""
		} else {
			g, err := ParseAliasGroup(*req.AliasGroup)
			if err != nil {
				return nil, err
			}
			updated.AliasGroup = g
		}
	}
	if req.RoomNumber != nil {
		updated.RoomNumber = *req.RoomNumber
	}
	if req.Notes != nil {
		updated.Notes = *req.Notes
	}
	if req.Status != nil {
		status := Status(*req.Status)
		if !status.Valid() {
			return nil, ErrInvalidStatus
		}
		updated.Status = status
	}

	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor, audit.ActionTagUpdate, epc, before, snapshot(&updated))

	if err := s.rewriteMirror(ctx); err != nil {
		return &updated, err
	}
	return &updated, nil
}

// Deactivate soft-deletes a tag. The row stays, the alias stays reserved,
// and the mirror keeps the entry with status "inactive" so the bridge
// still recognises the tag in historical reads.
func (s *Registry) Deactivate(ctx context.Context, rawEPC string, actor Actor) error {
	epc := NormalizeEPC(rawEPC)
	if epc == "" {
		return ErrInvalidEPC
	}

	current, err := s.repo.GetByEPC(ctx, epc)
	if err != nil {
		return err
	}

	if err := s.repo.SetStatus(ctx, epc, StatusInactive); err != nil {
		return err
	}

	after := snapshot(current)
	after["status"] = string(StatusInactive)
	s.recordAudit(ctx, actor, audit.ActionTagDeactivate, epc, snapshot(current), after)

	return s.rewriteMirror(ctx)
}

// SeedFromMirrorIfEmpty populates an empty store from the mirror file.
// Keys are normalized on the way in; entries without a usable identifier
// are skipped. A non-empty store makes this a no-op, so the mirror never
// overrides the store once the store has content. Returns the number of
// tags seeded.
func (s *Registry) SeedFromMirrorIfEmpty(ctx context.Context) (int, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	entries, err := s.mirror.Read()
	if err != nil {
		return 0, fmt.Errorf("reading mirror for seed: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	var tags []Tag
	for rawEPC, entry := range entries {
		epc := NormalizeEPC(rawEPC)
		if epc == "" {
			s.logger.Warn("skipping mirror entry with unusable identifier", "raw", rawEPC)
			continue
		}

		alias := entry.Alias
		if alias == "" {
			alias = epc
		}
		status := Status(entry.Status)
		if !status.Valid() {
			status = StatusActive
		}

		tags = append(tags, Tag{
			EPC:        epc,
			Alias:      alias,
			AliasGroup: AliasGroup(entry.AliasGroup),
			RoomNumber: entry.RoomNumber,
			Notes:      entry.Notes,
			Status:     status,
		})
	}

	inserted, err := s.repo.InsertBatch(ctx, tags)
	if err != nil {
		return 0, fmt.Errorf("seeding from mirror: %w", err)
	}

	if inserted > 0 {
		s.logger.Info("seeded tag store from mirror", "tags", inserted, "mirror", s.mirror.Path())
		s.recordAudit(ctx, Actor{}, audit.ActionMirrorSeed, "", nil, map[string]any{"seeded": inserted})
	}
	return inserted, nil
}

// Resync forces a full mirror rewrite from the store, healing a mirror
// left stale by an earlier rewrite failure.
func (s *Registry) Resync(ctx context.Context) error {
	return s.rewriteMirror(ctx)
}

// rewriteMirror projects the full store into the mirror file. Failure is
// wrapped in ErrMirrorSync so callers can distinguish "your change is
// committed but the mirror is stale" from a rejected mutation.
func (s *Registry) rewriteMirror(ctx context.Context) error {
	tags, err := s.repo.List(ctx, true)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMirrorSync, err)
	}

	entries := make(map[string]MirrorEntry, len(tags))
	for _, t := range tags {
		entries[t.EPC] = MirrorEntry{
			Alias:      t.Alias,
			AliasGroup: string(t.AliasGroup),
			RoomNumber: t.RoomNumber,
			Notes:      t.Notes,
			Status:     string(t.Status),
		}
	}

	if err := s.mirror.Write(entries); err != nil {
		s.logger.Error("mirror rewrite failed", "mirror", s.mirror.Path(), "error", err)
		return fmt.Errorf("%w: %v", ErrMirrorSync, err)
	}
	return nil
}

func (s *Registry) recordAudit(ctx context.Context, actor Actor, action, epc string, before, after map[string]any) {
	if s.audit == nil {
		return
	}
	entry := &audit.Entry{
		Username:   actor.Username,
		Action:     action,
		EntityType: "tag",
		EntityID:   epc,
		Before:     before,
		After:      after,
		Origin:     actor.Origin,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Error("recording tag audit entry failed", "action", action, "epc", epc, "error", err)
	}
}

func snapshot(t *Tag) map[string]any {
	return map[string]any{
		"alias":       t.Alias,
		"alias_group": string(t.AliasGroup),
		"room_number": t.RoomNumber,
		"notes":       t.Notes,
		"status":      string(t.Status),
	}
}

func resolveGroup(group string) (AliasGroup, error) {
	if group == "" {
		return GroupFemaleFruit, nil
	}
	return ParseAliasGroup(group)
}
