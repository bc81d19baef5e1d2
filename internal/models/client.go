package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type Client struct {
	ID          string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	FirstName   string         `gorm:"not null" json:"first_name"`
	LastName    string         `gorm:"not null" json:"last_name"`
	Email       string         `json:"email"`
	Phone       string         `gorm:"type:varchar(45)" json:"phone"`
	Street      string         `json:"street"`
	City        string         `json:"city"`
	State       string         `json:"state"`
	PostalCode  string         `gorm:"type:varchar(20)" json:"postal_code"`
	Country     string         `json:"country"`
	DateOfBirth string         `gorm:"type:varchar(20)" json:"date_of_birth"`
	Notes       string         `gorm:"type:text" json:"notes"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Client) TableName() string {
	return "clients"
}

// AttributeMap flattens the stored client fields into substitution keys.
// Computed pseudo-fields (full_name, full_address, current_date,
// current_year) are derived here at call time, never persisted.
func (c *Client) AttributeMap(now time.Time) map[string]string {
	m := map[string]string{
		"first_name":    c.FirstName,
		"last_name":     c.LastName,
		"email":         c.Email,
		"phone":         c.Phone,
		"street":        c.Street,
		"city":          c.City,
		"state":         c.State,
		"postal_code":   c.PostalCode,
		"country":       c.Country,
		"date_of_birth": c.DateOfBirth,
	}

	m["full_name"] = strings.TrimSpace(c.FirstName + " " + c.LastName)
	m["full_address"] = c.fullAddress()
	m["current_date"] = now.Format("2006-01-02")
	m["current_year"] = now.Format("2006")

	return m
}

func (c *Client) fullAddress() string {
	parts := []string{}
	for _, p := range []string{c.Street, c.City, c.State, c.PostalCode, c.Country} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	return strings.Join(parts, ", ")
}
