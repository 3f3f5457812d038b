// Package datastore persists accounts, rental listings and login sessions
// with gorm on SQLite or MySQL.
package datastore

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/krishisahay/krishisahay-go/internal/conf"
	"github.com/krishisahay/krishisahay-go/internal/errors"
	"github.com/krishisahay/krishisahay-go/internal/logger"
)

const (
	// DefaultSlowQueryThreshold is the duration after which a query is logged as slow.
	DefaultSlowQueryThreshold = 500 * time.Millisecond

	// maxPasswordBytes is the bcrypt input limit
	maxPasswordBytes = 72
	maxUsernameLen   = 150
)

var (
	// ErrUsernameTaken is returned when registering an existing username.
	ErrUsernameTaken = errors.NewStd("username already exists")

	// ErrInvalidCredentials is returned when a login does not match a stored account.
	ErrInvalidCredentials = errors.NewStd("invalid username or password")

	// ErrNotOpen is returned when the store is used before Open.
	ErrNotOpen = errors.NewStd("database connection is not initialized")
)

// dummyHash is compared against when the username does not exist, so unknown
// and known usernames take the same time to reject.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("krishisahay-timing"), bcrypt.DefaultCost)

var (
	serviceLogger logger.Logger
	loggerOnce    sync.Once
)

// GetLogger returns the datastore package logger.
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		serviceLogger = logger.Global().Module("datastore")
	})
	return serviceLogger
}

// Interface is the persistence API used by the HTTP handlers.
type Interface interface {
	Open() error
	Close() error
	// DB exposes the connection for other stores sharing the database (sessions)
	DB() *gorm.DB

	CreateAccount(ctx context.Context, username, password string) (*Account, error)
	Authenticate(ctx context.Context, username, password string) (*Account, error)

	CreateRental(ctx context.Context, rental *Rental) error
	ListRentals(ctx context.Context) ([]Rental, error)
}

// DataStore implements Interface on a gorm connection. The dialect specific
// stores embed it and provide Open.
type DataStore struct {
	db    *gorm.DB
	debug bool
}

// New returns the store for settings.Type without opening it.
func New(settings *conf.DatabaseSettings) (Interface, error) {
	switch strings.ToLower(settings.Type) {
	case "", "sqlite":
		return &SQLiteStore{Path: settings.SQLite.Path, DataStore: DataStore{debug: settings.Debug}}, nil
	case "mysql":
		return &MySQLStore{Config: settings.MySQL, DataStore: DataStore{debug: settings.Debug}}, nil
	default:
		return nil, errors.Newf("unsupported database type %q", settings.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// DB returns the underlying connection, nil before Open.
func (ds *DataStore) DB() *gorm.DB {
	return ds.db
}

// gormConfig returns the shared gorm configuration.
func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.NewGormLoggerAdapter(GetLogger().Module("gorm"), DefaultSlowQueryThreshold),
		TranslateError: true,
	}
}

// migrate creates or updates every table.
func (ds *DataStore) migrate(dialect string) error {
	start := time.Now()
	if err := ds.db.AutoMigrate(models()...); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migrate").
			Context("dialect", dialect).
			Build()
	}
	GetLogger().Info("database schema ready",
		logger.String("dialect", dialect),
		logger.Duration("elapsed", time.Since(start)))
	return nil
}

// Close closes the connection pool.
func (ds *DataStore) Close() error {
	if ds.db == nil {
		return nil
	}
	sqlDB, err := ds.db.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve generic DB object: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	ds.db = nil
	return nil
}

// CreateAccount stores a new account with a bcrypt hash of password.
func (ds *DataStore) CreateAccount(ctx context.Context, username, password string) (*Account, error) {
	if ds.db == nil {
		return nil, dbError(ErrNotOpen, "create_account")
	}
	username = strings.TrimSpace(username)
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryGeneric).
			Context("operation", "hash_password").
			Build()
	}

	account := &Account{Username: username, PasswordHash: string(hash)}
	if err := ds.db.WithContext(ctx).Create(account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.New(ErrUsernameTaken).
				Component("datastore").
				Category(errors.CategoryConflict).
				Build()
		}
		return nil, dbError(err, "create_account")
	}

	GetLogger().Info("account registered", logger.Int64("account_id", int64(account.ID)))
	return account, nil
}

// Authenticate returns the account when password matches its stored hash.
func (ds *DataStore) Authenticate(ctx context.Context, username, password string) (*Account, error) {
	if ds.db == nil {
		return nil, dbError(ErrNotOpen, "authenticate")
	}
	username = strings.TrimSpace(username)

	var account Account
	err := ds.db.WithContext(ctx).Where("username = ?", username).First(&account).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, invalidCredentials()
	case err != nil:
		return nil, dbError(err, "authenticate")
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, invalidCredentials()
	}
	return &account, nil
}

// CreateRental validates and stores a listing. ID and CreatedAt are set on success.
func (ds *DataStore) CreateRental(ctx context.Context, rental *Rental) error {
	if ds.db == nil {
		return dbError(ErrNotOpen, "create_rental")
	}
	if err := ValidateRental(rental); err != nil {
		return err
	}
	if err := ds.db.WithContext(ctx).Create(rental).Error; err != nil {
		return dbError(err, "create_rental")
	}
	GetLogger().Info("rental listed",
		logger.Int64("rental_id", int64(rental.ID)),
		logger.String("equipment_type", rental.EquipmentType))
	return nil
}

// ListRentals returns every listing, newest first.
func (ds *DataStore) ListRentals(ctx context.Context) ([]Rental, error) {
	if ds.db == nil {
		return nil, dbError(ErrNotOpen, "list_rentals")
	}
	rentals := []Rental{}
	if err := ds.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&rentals).Error; err != nil {
		return nil, dbError(err, "list_rentals")
	}
	return rentals, nil
}

// ValidateRental checks that every required listing field is present and
// the price is a finite non-negative number.
func ValidateRental(r *Rental) error {
	if r == nil {
		return errors.ValidationError("rental is required")
	}
	fields := []struct {
		name  string
		value *string
	}{
		{"title", &r.Title},
		{"description", &r.Description},
		{"contact", &r.Contact},
		{"equipment_type", &r.EquipmentType},
		{"rental_duration", &r.RentalDuration},
		{"location", &r.Location},
		{"posted_by", &r.PostedBy},
	}
	var missing []string
	for _, f := range fields {
		*f.value = strings.TrimSpace(*f.value)
		if *f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return errors.ValidationError("missing required fields: " + strings.Join(missing, ", "))
	}
	if !validPrice(r.Price) {
		return errors.ValidationError("price must be a non-negative number")
	}
	return nil
}

// ParsePrice parses a form price value.
func ParsePrice(s string) (float64, error) {
	price, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || !validPrice(price) {
		return 0, errors.ValidationError("price must be a non-negative number")
	}
	return price, nil
}

func validPrice(p float64) bool {
	return p >= 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

func validateCredentials(username, password string) error {
	switch {
	case username == "" || password == "":
		return errors.ValidationError("username and password are required")
	case len(username) > maxUsernameLen:
		return errors.ValidationError(fmt.Sprintf("username must be at most %d characters", maxUsernameLen))
	case len(password) > maxPasswordBytes:
		return errors.ValidationError(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}
	return nil
}

func invalidCredentials() error {
	return errors.New(ErrInvalidCredentials).
		Component("datastore").
		Category(errors.CategoryAuthentication).
		Build()
}

func dbError(err error, operation string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}
