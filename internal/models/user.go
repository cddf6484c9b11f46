package models

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmailRequired is returned when a user is created without an email address
var ErrEmailRequired = errors.New("email address required for user")

// unusablePassword marks an account that cannot log in with a password
const unusablePassword = "!"

// User is an account identified by its email address
type User struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Password    string    `json:"-"`
	IsActive    bool      `json:"is_active"`
	IsStaff     bool      `json:"is_staff"`
	IsSuperuser bool      `json:"is_superuser"`
	DateJoined  time.Time `json:"date_joined"`
}

// NewUser builds an active user with a normalized email and a hashed password.
// An empty password leaves the account without a usable password.
func NewUser(email, password, name string) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	u := &User{
		Email:    email,
		Name:     name,
		IsActive: true,
	}
	if err := u.SetPassword(password); err != nil {
		return nil, err
	}
	return u, nil
}

// NewSuperuser builds a user with staff and superuser flags set
func NewSuperuser(email, password string) (*User, error) {
	u, err := NewUser(email, password, "")
	if err != nil {
		return nil, err
	}
	u.IsStaff = true
	u.IsSuperuser = true
	return u, nil
}

// NormalizeEmail lower-cases the domain part of an email address.
// The local part is case sensitive and left untouched.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

// SetPassword stores the bcrypt hash of raw
func (u *User) SetPassword(raw string) error {
	if raw == "" {
		u.Password = unusablePassword
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hash)
	return nil
}

// CheckPassword reports whether raw matches the stored hash
func (u *User) CheckPassword(raw string) bool {
	if u.Password == "" || strings.HasPrefix(u.Password, unusablePassword) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(raw)) == nil
}
