package repository

import (
	"time"

	"github.com/dealerlink/lead-recovery/internal/domain"
)

// VisitorModel is the persistence model for the visitors table.
type VisitorModel struct {
	SessionID string `gorm:"type:varchar(64);primaryKey"`

	FirstName string `gorm:"type:varchar(100)"`
	LastName  string `gorm:"type:varchar(100)"`
	Email     string `gorm:"type:varchar(255)"`
	EmailHash string `gorm:"type:varchar(64)"`
	Phone     string `gorm:"type:varchar(32)"`

	Address string `gorm:"type:varchar(255)"`
	City    string `gorm:"type:varchar(100)"`
	State   string `gorm:"type:varchar(10)"`
	Zip     string `gorm:"type:varchar(16)"`

	Employer        string  `gorm:"type:varchar(255)"`
	JobTitle        string  `gorm:"type:varchar(255)"`
	AnnualIncome    float64 `gorm:"type:numeric(12,2);not null;default:0"`
	TimeOnJobMonths int     `gorm:"not null;default:0"`

	CreditScore     int     `gorm:"not null;default:0"`
	RequestedAmount float64 `gorm:"type:numeric(12,2);not null;default:0"`

	FormStarted   bool `gorm:"not null;default:false"`
	FormCompleted bool `gorm:"not null;default:false"`

	AbandonmentStep      int        `gorm:"not null;default:0"`
	AbandonmentDetected  bool       `gorm:"not null;default:false"`
	ReturnToken          string     `gorm:"type:varchar(64)"`
	ReturnTokenExpiresAt *time.Time `gorm:"type:timestamptz"`

	LastActivityAt time.Time `gorm:"type:timestamptz;not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (VisitorModel) TableName() string {
	return "visitors"
}

// OutreachAttemptModel is the persistence model for outreach_attempts.
type OutreachAttemptModel struct {
	ID                string               `gorm:"type:uuid;primaryKey"`
	VisitorID         string               `gorm:"type:varchar(64);not null"`
	Channel           domain.Channel       `gorm:"type:varchar(10);not null"`
	Message           string               `gorm:"type:text;not null"`
	ProviderMessageID string               `gorm:"type:varchar(255)"`
	Status            domain.AttemptStatus `gorm:"type:varchar(20);not null"`
	Error             string               `gorm:"type:text"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (OutreachAttemptModel) TableName() string {
	return "outreach_attempts"
}

// LeadModel is the persistence model for leads.
type LeadModel struct {
	ID            string `gorm:"type:varchar(96);primaryKey"`
	VisitorID     string `gorm:"type:varchar(64);not null"`
	LeadPackageID string `gorm:"type:uuid"`

	FirstName string `gorm:"type:varchar(100);not null"`
	LastName  string `gorm:"type:varchar(100);not null"`
	Email     string `gorm:"type:varchar(255)"`
	Phone     string `gorm:"type:varchar(32);not null"`

	Status domain.LeadStatus `gorm:"type:varchar(20);not null"`

	BoberdooSubmitted bool    `gorm:"not null;default:false"`
	BoberdooStatus    string  `gorm:"type:varchar(64)"`
	Price             float64 `gorm:"type:numeric(10,2);not null;default:0"`
	BuyerID           string  `gorm:"type:varchar(64)"`
	DealerFallback    bool    `gorm:"not null;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (LeadModel) TableName() string {
	return "leads"
}

// VisitorActivityModel is the persistence model for visitor_activities.
type VisitorActivityModel struct {
	ID        string              `gorm:"type:uuid;primaryKey"`
	VisitorID string              `gorm:"type:varchar(64);not null"`
	Type      domain.ActivityType `gorm:"type:varchar(32);not null"`
	Detail    string              `gorm:"type:text"`
	CreatedAt time.Time
}

func (VisitorActivityModel) TableName() string {
	return "visitor_activities"
}

func visitorModelFromDomain(v *domain.Visitor) *VisitorModel {
	if v == nil {
		return nil
	}

	return &VisitorModel{
		SessionID:            v.SessionID,
		FirstName:            v.FirstName,
		LastName:             v.LastName,
		Email:                v.Email,
		EmailHash:            v.EmailHash,
		Phone:                v.Phone,
		Address:              v.Address,
		City:                 v.City,
		State:                v.State,
		Zip:                  v.Zip,
		Employer:             v.Employer,
		JobTitle:             v.JobTitle,
		AnnualIncome:         v.AnnualIncome,
		TimeOnJobMonths:      v.TimeOnJobMonths,
		CreditScore:          v.CreditScore,
		RequestedAmount:      v.RequestedAmount,
		FormStarted:          v.FormStarted,
		FormCompleted:        v.FormCompleted,
		AbandonmentStep:      int(v.AbandonmentStep),
		AbandonmentDetected:  v.AbandonmentDetected,
		ReturnToken:          v.ReturnToken,
		ReturnTokenExpiresAt: v.ReturnTokenExpiresAt,
		LastActivityAt:       v.LastActivityAt,
		CreatedAt:            v.CreatedAt,
		UpdatedAt:            v.UpdatedAt,
	}
}

func visitorModelToDomain(m *VisitorModel) *domain.Visitor {
	if m == nil {
		return nil
	}

	return &domain.Visitor{
		SessionID:            m.SessionID,
		FirstName:            m.FirstName,
		LastName:             m.LastName,
		Email:                m.Email,
		EmailHash:            m.EmailHash,
		Phone:                m.Phone,
		Address:              m.Address,
		City:                 m.City,
		State:                m.State,
		Zip:                  m.Zip,
		Employer:             m.Employer,
		JobTitle:             m.JobTitle,
		AnnualIncome:         m.AnnualIncome,
		TimeOnJobMonths:      m.TimeOnJobMonths,
		CreditScore:          m.CreditScore,
		RequestedAmount:      m.RequestedAmount,
		FormStarted:          m.FormStarted,
		FormCompleted:        m.FormCompleted,
		AbandonmentStep:      domain.AbandonmentStep(m.AbandonmentStep),
		AbandonmentDetected:  m.AbandonmentDetected,
		ReturnToken:          m.ReturnToken,
		ReturnTokenExpiresAt: m.ReturnTokenExpiresAt,
		LastActivityAt:       m.LastActivityAt,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

func attemptModelFromDomain(a *domain.OutreachAttempt) *OutreachAttemptModel {
	if a == nil {
		return nil
	}

	return &OutreachAttemptModel{
		ID:                a.ID,
		VisitorID:         a.VisitorID,
		Channel:           a.Channel,
		Message:           a.Message,
		ProviderMessageID: a.ProviderMessageID,
		Status:            a.Status,
		Error:             a.Error,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

func attemptModelToDomain(m *OutreachAttemptModel) *domain.OutreachAttempt {
	if m == nil {
		return nil
	}

	return &domain.OutreachAttempt{
		ID:                m.ID,
		VisitorID:         m.VisitorID,
		Channel:           m.Channel,
		Message:           m.Message,
		ProviderMessageID: m.ProviderMessageID,
		Status:            m.Status,
		Error:             m.Error,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func leadModelFromDomain(l *domain.Lead) *LeadModel {
	if l == nil {
		return nil
	}

	return &LeadModel{
		ID:                l.ID,
		VisitorID:         l.VisitorID,
		LeadPackageID:     l.LeadPackageID,
		FirstName:         l.FirstName,
		LastName:          l.LastName,
		Email:             l.Email,
		Phone:             l.Phone,
		Status:            l.Status,
		BoberdooSubmitted: l.BoberdooSubmitted,
		BoberdooStatus:    l.BoberdooStatus,
		Price:             l.Price,
		BuyerID:           l.BuyerID,
		DealerFallback:    l.DealerFallback,
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}
}

func leadModelToDomain(m *LeadModel) *domain.Lead {
	if m == nil {
		return nil
	}

	return &domain.Lead{
		ID:                m.ID,
		VisitorID:         m.VisitorID,
		LeadPackageID:     m.LeadPackageID,
		FirstName:         m.FirstName,
		LastName:          m.LastName,
		Email:             m.Email,
		Phone:             m.Phone,
		Status:            m.Status,
		BoberdooSubmitted: m.BoberdooSubmitted,
		BoberdooStatus:    m.BoberdooStatus,
		Price:             m.Price,
		BuyerID:           m.BuyerID,
		DealerFallback:    m.DealerFallback,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func activityModelFromDomain(a *domain.VisitorActivity) *VisitorActivityModel {
	if a == nil {
		return nil
	}

	return &VisitorActivityModel{
		ID:        a.ID,
		VisitorID: a.VisitorID,
		Type:      a.Type,
		Detail:    a.Detail,
		CreatedAt: a.CreatedAt,
	}
}

func activityModelToDomain(m *VisitorActivityModel) *domain.VisitorActivity {
	if m == nil {
		return nil
	}

	return &domain.VisitorActivity{
		ID:        m.ID,
		VisitorID: m.VisitorID,
		Type:      m.Type,
		Detail:    m.Detail,
		CreatedAt: m.CreatedAt,
	}
}
