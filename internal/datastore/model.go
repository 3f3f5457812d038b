package datastore

import "time"

// Account is a registered farmer account. Only the bcrypt hash of the
// password is stored.
type Account struct {
	ID           uint      `gorm:"primaryKey"`
	Username     string    `gorm:"size:150;not null;uniqueIndex:idx_accounts_username"`
	PasswordHash string    `gorm:"size:255;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

// Rental is an equipment rental listing.
type Rental struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Title          string    `gorm:"size:200;not null" json:"title"`
	Description    string    `gorm:"type:text;not null" json:"description"`
	Price          float64   `gorm:"not null" json:"price"`
	Contact        string    `gorm:"size:100;not null" json:"contact"`
	EquipmentType  string    `gorm:"size:100;not null" json:"equipment_type"`
	RentalDuration string    `gorm:"size:100;not null" json:"rental_duration"`
	Location       string    `gorm:"size:200;not null" json:"location"`
	PostedBy       string    `gorm:"size:150;not null;index" json:"posted_by"`
	Photo          string    `gorm:"size:255" json:"photo"` // public URL path, empty without a photo
	PhotoPath      string    `gorm:"size:255" json:"-"`     // server-side file path
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Session maps an opaque session token to a username.
type Session struct {
	Token     string    `gorm:"primaryKey;size:64"`
	Username  string    `gorm:"size:150;not null;index"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// models lists every table migrated at startup.
func models() []any {
	return []any{&Account{}, &Rental{}, &Session{}}
}
