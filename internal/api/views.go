package api

import (
	"math/big"
	"strings"
	"time"

	"github.com/collabcast/marketplace/internal/fees"
	"github.com/collabcast/marketplace/internal/models"
)

type feesView struct {
	Enabled      bool    `json:"enabled"`
	Price        *string `json:"price"`
	PriceDisplay *string `json:"price_display"`
	Contract     *string `json:"contract"`
	Token        *string `json:"token"`
	ChainID      *int64  `json:"chain_id"`
}

func newFeesView(cfg fees.FeeConfig, decimals int32) feesView {
	v := feesView{Enabled: cfg.Enabled, ChainID: cfg.ChainID}
	if cfg.Price != nil {
		price := cfg.Price.String()
		display := fees.FormatPrice(cfg.Price, decimals)
		v.Price, v.PriceDisplay = &price, &display
	}
	if cfg.Contract != nil {
		s := strings.ToLower(cfg.Contract.Hex())
		v.Contract = &s
	}
	if cfg.Token != nil {
		s := strings.ToLower(cfg.Token.Hex())
		v.Token = &s
	}
	return v
}

type userView struct {
	ID          string `json:"id"`
	FID         int64  `json:"fid"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

func newUserView(u *models.User) userView {
	return userView{ID: u.ID, FID: u.FID, Handle: u.Handle, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL}
}

type projectView struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Pitch       string    `json:"pitch"`
	ProjectType string    `json:"project_type"`
	Skills      []string  `json:"skills"`
	Status      string    `json:"status"`
	PaymentTx   *string   `json:"payment_tx"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newProjectView(p *models.Project) projectView {
	skills := p.Skills
	if skills == nil {
		skills = []string{}
	}
	return projectView{
		ID:          p.ID.String(),
		OwnerID:     p.OwnerID,
		Title:       p.Title,
		Pitch:       p.Pitch,
		ProjectType: p.ProjectType,
		Skills:      skills,
		Status:      p.Status,
		PaymentTx:   p.PaymentTx,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type profileView struct {
	ID                    string    `json:"id"`
	User                  userView  `json:"user"`
	Bio                   string    `json:"bio"`
	Skills                []string  `json:"skills"`
	ProjectTypes          []string  `json:"project_types"`
	AvailabilityHoursWeek *int      `json:"availability_hours_week"`
	PaymentTx             *string   `json:"payment_tx"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func newProfileView(p *models.CollaboratorProfile) profileView {
	v := profileView{
		ID:                    p.ID.String(),
		User:                  newUserView(&p.User),
		Bio:                   p.Bio,
		Skills:                p.Skills,
		ProjectTypes:          p.ProjectTypes,
		AvailabilityHoursWeek: p.AvailabilityHoursWeek,
		PaymentTx:             p.PaymentTx,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
	if v.Skills == nil {
		v.Skills = []string{}
	}
	if v.ProjectTypes == nil {
		v.ProjectTypes = []string{}
	}
	return v
}

type paymentView struct {
	TxHash        string    `json:"tx_hash"`
	Action        string    `json:"action"`
	Payer         string    `json:"payer"`
	Amount        string    `json:"amount"`
	AmountDisplay string    `json:"amount_display"`
	BlockNumber   uint64    `json:"block_number"`
	BlockTime     time.Time `json:"block_time"`
	UserID        *string   `json:"user_id"`
	CreatedAt     time.Time `json:"created_at"`
}

func newPaymentView(r *models.PaymentRecord, decimals int32) paymentView {
	v := paymentView{
		TxHash:      r.TxHash,
		Action:      r.Action,
		Payer:       r.PayerAddress,
		Amount:      r.Amount,
		BlockNumber: r.BlockNumber,
		BlockTime:   r.BlockTime,
		UserID:      r.UserID,
		CreatedAt:   r.CreatedAt,
	}
	if amount, ok := new(big.Int).SetString(r.Amount, 10); ok {
		v.AmountDisplay = fees.FormatPrice(amount, decimals)
	}
	return v
}

type interestProjectView struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	OwnerID string `json:"owner_id"`
}

type interestView struct {
	ID         string              `json:"id"`
	Status     string              `json:"status"`
	Message    string              `json:"message"`
	SkillMatch bool                `json:"skill_match"`
	Project    interestProjectView `json:"project"`
	FromUser   userView            `json:"from_user"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

func newInterestView(i *models.Interest) interestView {
	return interestView{
		ID:         i.ID.String(),
		Status:     i.Status,
		Message:    i.Message,
		SkillMatch: i.SkillMatch,
		Project:    interestProjectView{ID: i.ProjectID.String(), Title: i.Project.Title, OwnerID: i.Project.OwnerID},
		FromUser:   newUserView(&i.FromUser),
		CreatedAt:  i.CreatedAt,
		UpdatedAt:  i.UpdatedAt,
	}
}
