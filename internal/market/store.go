// Package market stores projects, collaborator profiles and users.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/collabcast/marketplace/internal/db"
	"github.com/collabcast/marketplace/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrProfileExists = errors.New("profile already exists")
)

const (
	defaultListLimit = 20
	maxListLimit     = 50
)

// Store is the gorm-backed entity store. Every method uses the transaction
// carried by ctx when there is one.
type Store struct {
	db *gorm.DB
}

func NewStore(g *gorm.DB) *Store {
	return &Store{db: g}
}

// ── Users ───────────────────────────────────────────────────────────────────

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := db.Conn(ctx, s.db).Take(&u, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// ── Projects ────────────────────────────────────────────────────────────────

// CreateProject validates in and inserts an active project. paymentTx is the
// fee payment that paid for it, if any.
func (s *Store) CreateProject(ctx context.Context, ownerID string, in ProjectInput, paymentTx *string) (*models.Project, error) {
	if err := ValidateProject(&in); err != nil {
		return nil, err
	}
	p := &models.Project{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Title:       in.Title,
		Pitch:       in.Pitch,
		ProjectType: in.ProjectType,
		Skills:      nonNil(in.Skills),
		Status:      models.ProjectActive,
		PaymentTx:   paymentTx,
	}
	if err := db.Conn(ctx, s.db).Create(p).Error; err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

// UpdateProject applies the non-nil fields of upd. Only the owner may update.
func (s *Store) UpdateProject(ctx context.Context, id uuid.UUID, ownerID string, upd ProjectUpdate) (*models.Project, error) {
	if err := ValidateProjectUpdate(&upd); err != nil {
		return nil, err
	}
	var out *models.Project
	err := db.Transact(ctx, s.db, func(ctx context.Context) error {
		p, err := s.GetProject(ctx, id)
		if err != nil {
			return err
		}
		if p.OwnerID != ownerID {
			return ErrForbidden
		}
		if upd.Title != nil {
			p.Title = *upd.Title
		}
		if upd.Pitch != nil {
			p.Pitch = *upd.Pitch
		}
		if upd.ProjectType != nil {
			p.ProjectType = *upd.ProjectType
		}
		if upd.Skills != nil {
			p.Skills = nonNil(upd.Skills)
		}
		if upd.Status != nil {
			p.Status = *upd.Status
		}
		if err := db.Conn(ctx, s.db).Save(p).Error; err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		out = p
		return nil
	})
	return out, err
}

func (s *Store) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var p models.Project
	if err := db.Conn(ctx, s.db).Take(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

type ProjectFilter struct {
	Q      string
	Type   string
	Skills []string
	Status string // defaults to active
	Limit  int
}

// ListProjects returns matching projects, newest first. Every requested skill
// must be present (case-insensitive).
func (s *Store) ListProjects(ctx context.Context, f ProjectFilter) ([]models.Project, error) {
	status := f.Status
	if status == "" {
		status = models.ProjectActive
	}
	q := db.Conn(ctx, s.db).Where("status = ?", status).Order("created_at DESC")
	if term := strings.ToLower(strings.TrimSpace(f.Q)); term != "" {
		like := "%" + escapeLike(term) + "%"
		q = q.Where("(LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(pitch) LIKE ? ESCAPE '\\')", like, like)
	}
	if t := strings.TrimSpace(f.Type); t != "" {
		q = q.Where("LOWER(project_type) = ?", strings.ToLower(t))
	}

	q = containsAll(q, "skills", f.Skills)

	return collect(q, clampLimit(f.Limit), func(p models.Project) bool {
		return hasAll(p.Skills, f.Skills)
	})
}

// ── Profiles ────────────────────────────────────────────────────────────────

func (s *Store) GetProfile(ctx context.Context, userID string) (*models.CollaboratorProfile, error) {
	var p models.CollaboratorProfile
	if err := db.Conn(ctx, s.db).Preload("User").Take(&p, "user_id = ?", userID).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// CreateProfile inserts the user's profile and copies display name and handle
// onto the user row.
func (s *Store) CreateProfile(ctx context.Context, userID string, in ProfileInput, paymentTx *string) (*models.CollaboratorProfile, error) {
	if err := ValidateProfile(&in); err != nil {
		return nil, err
	}
	var out *models.CollaboratorProfile
	err := db.Transact(ctx, s.db, func(ctx context.Context) error {
		if _, err := s.GetProfile(ctx, userID); err == nil {
			return ErrProfileExists
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := s.updateUserNames(ctx, userID, in); err != nil {
			return err
		}
		p := &models.CollaboratorProfile{
			ID:                    uuid.New(),
			UserID:                userID,
			Bio:                   in.Bio,
			Skills:                nonNil(in.Skills),
			ProjectTypes:          nonNil(in.ProjectTypes),
			AvailabilityHoursWeek: in.AvailabilityHoursWeek,
			PaymentTx:             paymentTx,
		}
		if err := db.Conn(ctx, s.db).Omit("User").Create(p).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrProfileExists
			}
			return fmt.Errorf("create profile: %w", err)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetProfile(ctx, out.UserID)
}

// UpdateProfile replaces the editable fields of an existing profile.
func (s *Store) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*models.CollaboratorProfile, error) {
	if err := ValidateProfile(&in); err != nil {
		return nil, err
	}
	err := db.Transact(ctx, s.db, func(ctx context.Context) error {
		p, err := s.GetProfile(ctx, userID)
		if err != nil {
			return err
		}
		if err := s.updateUserNames(ctx, userID, in); err != nil {
			return err
		}
		p.Bio = in.Bio
		p.Skills = nonNil(in.Skills)
		p.ProjectTypes = nonNil(in.ProjectTypes)
		p.AvailabilityHoursWeek = in.AvailabilityHoursWeek
		if err := db.Conn(ctx, s.db).Omit("User").Save(p).Error; err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetProfile(ctx, userID)
}

func (s *Store) updateUserNames(ctx context.Context, userID string, in ProfileInput) error {
	res := db.Conn(ctx, s.db).Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]any{"display_name": in.DisplayName, "handle": in.Handle})
	if res.Error != nil {
		return fmt.Errorf("update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type ProfileFilter struct {
	Q      string
	Type   string
	Skills []string
	Limit  int
}

// ListProfiles returns matching profiles, newest first. Q matches display
// name, handle and bio.
func (s *Store) ListProfiles(ctx context.Context, f ProfileFilter) ([]models.CollaboratorProfile, error) {
	q := db.Conn(ctx, s.db).Model(&models.CollaboratorProfile{}).
		Select("collaborator_profiles.*").
		Joins("JOIN users ON users.id = collaborator_profiles.user_id").
		Preload("User").
		Order("collaborator_profiles.created_at DESC")
	if term := strings.ToLower(strings.TrimSpace(f.Q)); term != "" {
		like := "%" + escapeLike(term) + "%"
		q = q.Where("(LOWER(users.display_name) LIKE ? ESCAPE '\\' OR LOWER(users.handle) LIKE ? ESCAPE '\\' OR LOWER(collaborator_profiles.bio) LIKE ? ESCAPE '\\')",
			like, like, like)
	}
	var types []string
	if t := strings.TrimSpace(f.Type); t != "" {
		types = []string{t}
	}
	q = containsAll(q, "collaborator_profiles.project_types", types)
	q = containsAll(q, "collaborator_profiles.skills", f.Skills)

	return collect(q, clampLimit(f.Limit), func(p models.CollaboratorProfile) bool {
		return hasAll(p.ProjectTypes, types) && hasAll(p.Skills, f.Skills)
	})
}

// ── helpers ─────────────────────────────────────────────────────────────────

// listBatch bounds each page read while collecting a filtered list.
const listBatch = 2 * maxListLimit

// collect pages through q until limit rows pass keep or the rows run out.
func collect[T any](q *gorm.DB, limit int, keep func(T) bool) ([]T, error) {
	q = q.Session(&gorm.Session{})
	out := make([]T, 0, limit)
	for offset := 0; ; offset += listBatch {
		var batch []T
		if err := q.Limit(listBatch).Offset(offset).Find(&batch).Error; err != nil {
			return nil, fmt.Errorf("list: %w", err)
		}
		for _, row := range batch {
			if !keep(row) {
				continue
			}
			out = append(out, row)
			if len(out) == limit {
				return out, nil
			}
		}
		if len(batch) < listBatch {
			return out, nil
		}
	}
}

// containsAll narrows q to rows whose JSON list column contains every value.
// Only ASCII values are pushed down, since SQL LOWER does not fold the rest
// the same way on every driver; callers recheck rows exactly.
func containsAll(q *gorm.DB, column string, values []string) *gorm.DB {
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || !isASCII(v) {
			continue
		}
		enc, err := json.Marshal(v)
		if err != nil {
			continue
		}
		q = q.Where("LOWER("+column+") LIKE ? ESCAPE '\\'", "%"+escapeLike(string(enc))+"%")
	}
	return q
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func clampLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

func hasAll(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[strings.ToLower(h)] = struct{}{}
	}
	for _, w := range want {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}

func nonNil(l StringList) []string {
	if l == nil {
		return []string{}
	}
	return l
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
