package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ryanbastic/go-sheetcms/internal/idgen"
	"github.com/ryanbastic/go-sheetcms/internal/record"
	"github.com/ryanbastic/go-sheetcms/internal/repository"
	"github.com/ryanbastic/go-sheetcms/internal/schema"
)

// Account statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

var (
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrDuplicateUsername = errors.New("username already taken")
	ErrAccountDisabled   = errors.New("account is disabled")
	ErrInvalidAccount    = errors.New("invalid account details")
	ErrAccountNotFound   = errors.New("account not found")
)

// dummyHash is compared against when an email is unknown so that failed
// logins take the same time either way.
var dummyHash = sync.OnceValue(func() string {
	h, _ := bcrypt.GenerateFromPassword([]byte("unknown-account"), PasswordCost)
	return string(h)
})

// NewAccount is the input for creating an admin user.
type NewAccount struct {
	Username string
	Email    string
	Password string
	Role     Role
}

// AccountChanges is a partial update; empty fields are left alone.
type AccountChanges struct {
	Username string
	Email    string
	Password string
	Role     Role
}

// Accounts manages admin users stored in the admin_users sheet.
type Accounts struct {
	repo *repository.Repository
	now  func() time.Time
}

func NewAccounts(repo *repository.Repository) *Accounts {
	return &Accounts{repo: repo, now: time.Now}
}

// IdentityOf builds the token identity for a stored user.
func IdentityOf(rec record.Record) Identity {
	return Identity{
		UserID:   rec.ID(),
		Email:    rec.Get("email"),
		Username: rec.Get("username"),
		Role:     Role(rec.Get("role")),
	}
}

// Public strips the password hash.
func Public(rec record.Record) record.Record {
	return rec.Without("password_hash")
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validateUsername(s string) error {
	if n := len(s); n < 3 || n > 50 {
		return fmt.Errorf("%w: username must be 3-50 characters", ErrInvalidAccount)
	}
	return nil
}

func validateEmail(s string) error {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return fmt.Errorf("%w: invalid email format", ErrInvalidAccount)
	}
	return nil
}

func (a *Accounts) checkUnique(ctx context.Context, email, username, excludeID string) error {
	if email != "" {
		taken, err := a.repo.ExistsByField(ctx, schema.AdminUsers, "email", email, excludeID)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateEmail
		}
	}
	if username != "" {
		taken, err := a.repo.ExistsByField(ctx, schema.AdminUsers, "username", username, excludeID)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateUsername
		}
	}
	return nil
}

// Create validates and stores a new active user.
func (a *Accounts) Create(ctx context.Context, in NewAccount) (record.Record, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	if in.Role == "" {
		in.Role = RoleEditor
	}
	if err := validateUsername(in.Username); err != nil {
		return record.Record{}, err
	}
	if err := validateEmail(in.Email); err != nil {
		return record.Record{}, err
	}
	if !in.Role.Valid() {
		return record.Record{}, fmt.Errorf("%w: invalid role %q", ErrInvalidAccount, in.Role)
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return record.Record{}, err
	}
	if err := a.checkUnique(ctx, in.Email, in.Username, ""); err != nil {
		return record.Record{}, err
	}

	return a.repo.Create(ctx, schema.AdminUsers, map[string]string{
		schema.FieldID:  idgen.ForSheet(schema.AdminUsers),
		"username":      in.Username,
		"email":         in.Email,
		"password_hash": hash,
		"role":          string(in.Role),
		"status":        StatusActive,
	})
}

// Get returns the user with id.
func (a *Accounts) Get(ctx context.Context, id string) (record.Record, error) {
	rec, ok, err := a.repo.GetByID(ctx, schema.AdminUsers, id)
	if err != nil {
		return record.Record{}, err
	}
	if !ok {
		return record.Record{}, ErrAccountNotFound
	}
	return rec, nil
}

// Active returns the user with id if it exists and is active.
func (a *Accounts) Active(ctx context.Context, id string) (record.Record, error) {
	rec, err := a.Get(ctx, id)
	if err != nil {
		return record.Record{}, err
	}
	if rec.Get("status") != StatusActive {
		return record.Record{}, ErrAccountDisabled
	}
	return rec, nil
}

// Authenticate checks email and password and stamps last_login. The
// password is always verified against the stored bcrypt hash.
func (a *Accounts) Authenticate(ctx context.Context, email, password string) (record.Record, error) {
	matches, err := a.repo.GetByField(ctx, schema.AdminUsers, "email", normalizeEmail(email))
	if err != nil {
		return record.Record{}, err
	}
	if len(matches) == 0 {
		_ = CheckPassword(dummyHash(), password)
		return record.Record{}, ErrWrongPassword
	}
	user := matches[0]
	if err := CheckPassword(user.Get("password_hash"), password); err != nil {
		return record.Record{}, err
	}
	if user.Get("status") != StatusActive {
		return record.Record{}, ErrAccountDisabled
	}

	updated, ok, err := a.repo.Update(ctx, schema.AdminUsers, user.ID(), map[string]string{
		"last_login": record.FormatTime(a.now()),
	})
	if err != nil {
		return record.Record{}, err
	}
	if !ok {
		return record.Record{}, ErrAccountNotFound
	}
	return updated, nil
}

// Update applies changes after validating them and checking uniqueness
// against every other user.
func (a *Accounts) Update(ctx context.Context, id string, ch AccountChanges) (record.Record, error) {
	fields := map[string]string{}
	if ch.Username != "" {
		ch.Username = strings.TrimSpace(ch.Username)
		if err := validateUsername(ch.Username); err != nil {
			return record.Record{}, err
		}
		fields["username"] = ch.Username
	}
	if ch.Email != "" {
		ch.Email = normalizeEmail(ch.Email)
		if err := validateEmail(ch.Email); err != nil {
			return record.Record{}, err
		}
		fields["email"] = ch.Email
	}
	if ch.Role != "" {
		if !ch.Role.Valid() {
			return record.Record{}, fmt.Errorf("%w: invalid role %q", ErrInvalidAccount, ch.Role)
		}
		fields["role"] = string(ch.Role)
	}
	if ch.Password != "" {
		hash, err := HashPassword(ch.Password)
		if err != nil {
			return record.Record{}, err
		}
		fields["password_hash"] = hash
	}
	if err := a.checkUnique(ctx, ch.Email, ch.Username, id); err != nil {
		return record.Record{}, err
	}
	return a.update(ctx, id, fields)
}

// SetStatus activates or deactivates a user.
func (a *Accounts) SetStatus(ctx context.Context, id, status string) (record.Record, error) {
	if status != StatusActive && status != StatusInactive {
		return record.Record{}, fmt.Errorf("%w: invalid status %q", ErrInvalidAccount, status)
	}
	return a.update(ctx, id, map[string]string{"status": status})
}

// ChangePassword replaces the password after checking the current one.
func (a *Accounts) ChangePassword(ctx context.Context, id, current, next string) error {
	user, err := a.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := CheckPassword(user.Get("password_hash"), current); err != nil {
		return err
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	_, err = a.update(ctx, id, map[string]string{"password_hash": hash})
	return err
}

// Delete removes a user.
func (a *Accounts) Delete(ctx context.Context, id string) error {
	ok, err := a.repo.Remove(ctx, schema.AdminUsers, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAccountNotFound
	}
	return nil
}

func (a *Accounts) update(ctx context.Context, id string, fields map[string]string) (record.Record, error) {
	rec, ok, err := a.repo.Update(ctx, schema.AdminUsers, id, fields)
	if err != nil {
		return record.Record{}, err
	}
	if !ok {
		return record.Record{}, ErrAccountNotFound
	}
	return rec, nil
}
