package market

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/collabcast/marketplace/internal/db"
	"github.com/collabcast/marketplace/internal/models"
)

var (
	ErrOwnProject      = errors.New("cannot express interest in your own project")
	ErrProjectArchived = errors.New("project is archived")
	ErrInterestExists  = errors.New("interest already sent")
)

// ExpressInterest records fromUserID's interest in a project. The sender's
// profile is compared with the project's skills at send time.
func (s *Store) ExpressInterest(ctx context.Context, projectID uuid.UUID, fromUserID string, in InterestInput) (*models.Interest, error) {
	if err := ValidateInterest(&in); err != nil {
		return nil, err
	}
	var out *models.Interest
	err := db.Transact(ctx, s.db, func(ctx context.Context) error {
		p, err := s.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		if p.OwnerID == fromUserID {
			return ErrOwnProject
		}
		if p.Status != models.ProjectActive {
			return ErrProjectArchived
		}

		match := false
		if prof, err := s.GetProfile(ctx, fromUserID); err == nil {
			match = sharesAny(p.Skills, prof.Skills)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		i := &models.Interest{
			ID:         uuid.New(),
			ProjectID:  p.ID,
			FromUserID: fromUserID,
			Message:    in.Message,
			SkillMatch: match,
			Status:     models.InterestPending,
		}
		if err := db.Conn(ctx, s.db).Omit("Project", "FromUser").Create(i).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrInterestExists
			}
			return fmt.Errorf("create interest: %w", err)
		}
		out = i
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.loadInterest(ctx, out.ID)
}

// GetInterest returns an interest visible to userID: its sender or the
// project owner. Anyone else gets ErrNotFound.
func (s *Store) GetInterest(ctx context.Context, id uuid.UUID, userID string) (*models.Interest, error) {
	i, err := s.loadInterest(ctx, id)
	if err != nil {
		return nil, err
	}
	if i.FromUserID != userID && i.Project.OwnerID != userID {
		return nil, ErrNotFound
	}
	return i, nil
}

// SetInterestStatus moves an interest to upd.Status. Only the project owner
// may do this.
func (s *Store) SetInterestStatus(ctx context.Context, id uuid.UUID, ownerID string, upd InterestStatusUpdate) (*models.Interest, error) {
	if err := ValidateInterestStatus(&upd); err != nil {
		return nil, err
	}
	err := db.Transact(ctx, s.db, func(ctx context.Context) error {
		i, err := s.loadInterest(ctx, id)
		if err != nil {
			return err
		}
		if i.Project.OwnerID != ownerID {
			return ErrForbidden
		}
		res := db.Conn(ctx, s.db).Model(&models.Interest{}).Where("id = ?", id).Update("status", upd.Status)
		if res.Error != nil {
			return fmt.Errorf("update interest: %w", res.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.loadInterest(ctx, id)
}

// AcceptInterest marks an interest accepted. Only the project owner may
// accept.
func (s *Store) AcceptInterest(ctx context.Context, id uuid.UUID, ownerID string) (*models.Interest, error) {
	return s.SetInterestStatus(ctx, id, ownerID, InterestStatusUpdate{Status: models.InterestAccepted})
}

// DeleteInterest removes an interest. The sender may withdraw it and the
// project owner may discard it.
func (s *Store) DeleteInterest(ctx context.Context, id uuid.UUID, userID string) error {
	return db.Transact(ctx, s.db, func(ctx context.Context) error {
		if _, err := s.GetInterest(ctx, id, userID); err != nil {
			return err
		}
		if err := db.Conn(ctx, s.db).Delete(&models.Interest{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete interest: %w", err)
		}
		return nil
	})
}

// Inbox lists interests in ownerID's projects, newest first.
func (s *Store) Inbox(ctx context.Context, ownerID string, limit int) ([]models.Interest, error) {
	var out []models.Interest
	err := db.Conn(ctx, s.db).
		Select("interests.*").
		Joins("JOIN projects ON projects.id = interests.project_id").
		Where("projects.owner_id = ?", ownerID).
		Preload("Project").
		Preload("FromUser").
		Order("interests.created_at DESC").
		Limit(clampLimit(limit)).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("inbox: %w", err)
	}
	return out, nil
}

func (s *Store) loadInterest(ctx context.Context, id uuid.UUID) (*models.Interest, error) {
	var i models.Interest
	err := db.Conn(ctx, s.db).Preload("Project").Preload("FromUser").Take(&i, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &i, nil
}

func sharesAny(a, b []string) bool {
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[strings.ToLower(v)] = struct{}{}
	}
	for _, v := range a {
		if _, ok := set[strings.ToLower(v)]; ok {
			return true
		}
	}
	return false
}
