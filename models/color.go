package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ColorTheme is a saved pair of sidebar colors.
type ColorTheme struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Primary   string    `json:"primary"`
	Secondary string    `json:"secondary"`
	CreatedAt time.Time `json:"created_at"`
}

var hexColorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type SaveColorRequest struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

func (r *SaveColorRequest) Validate() error {
	r.Primary = strings.ToLower(strings.TrimSpace(r.Primary))
	r.Secondary = strings.ToLower(strings.TrimSpace(r.Secondary))
	if r.Primary == "" || r.Secondary == "" {
		return fmt.Errorf("Please pick both colors")
	}
	if !hexColorRegex.MatchString(r.Primary) || !hexColorRegex.MatchString(r.Secondary) {
		return fmt.Errorf("colors must be #RRGGBB hex values")
	}
	return nil
}
