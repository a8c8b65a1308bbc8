// Package models defines the domain types shared by every layer.
//
// JSON tags shape the API payloads; request types carry a Validate method
// whose error text is shown to the user as-is.
package models

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// UserStatus is the online state shown next to a user in the DM list.
type UserStatus string

const (
	UserStatusOnline  UserStatus = "online"
	UserStatusOffline UserStatus = "offline"
)

// User is a registered account. Username is the display name; Email is
// the login identifier.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email,omitempty"`
	AvatarURL    string     `json:"avatar_url"`
	PasswordHash string     `json:"-"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Author returns the snapshot stored on messages and channels.
func (u *User) Author() Author {
	return Author{ID: u.ID, Name: u.Username, Avatar: u.AvatarURL}
}

// Public strips private fields before the user is broadcast to others.
func (u User) Public() User {
	u.Email = ""
	return u
}

// Minimum password length.
const MinPasswordLength = 6

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// CreateUserRequest is the registration form.
type CreateUserRequest struct {
	Username             string `json:"username"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// Validate checks the form and reports every rule that fails, joined with
// errors.Join. The messages mention the offending field name so a form can
// highlight it.
func (r *CreateUserRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))

	var errs []error
	if r.Username == "" || r.Email == "" || r.Password == "" || r.PasswordConfirmation == "" {
		errs = append(errs, errors.New("Please fill in all fields"))
	}
	if len(r.Password) < MinPasswordLength || r.Password != r.PasswordConfirmation {
		errs = append(errs, errors.New("Password is invalid"))
	}
	if len(r.Username) > 32 {
		errs = append(errs, errors.New("username must be at most 32 characters"))
	}
	if r.Email != "" && !emailRegex.MatchString(r.Email) {
		errs = append(errs, errors.New("The email address is badly formatted"))
	}
	return errors.Join(errs...)
}

// LoginRequest is the sign-in form.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Email == "" || r.Password == "" {
		return fmt.Errorf("Please fill in all fields")
	}
	return nil
}

// GravatarURL is the default avatar: an identicon keyed by the MD5 of the
// normalized email.
func GravatarURL(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return "https://www.gravatar.com/avatar/" + hex.EncodeToString(sum[:]) + "?d=identicon"
}

// Presence is a child of the presence path.
type Presence struct {
	UserID   string     `json:"user_id"`
	Username string     `json:"username"`
	Status   UserStatus `json:"status"`
}
