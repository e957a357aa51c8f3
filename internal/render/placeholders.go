// Package render substitutes the supported placeholder tokens into profile
// subject and body templates.
package render

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// The supported template tokens. Anything else between braces is rejected at
// profile save time and again at render time.
const (
	TokenDisplayName   = "{displayName}"
	TokenPrincipalName = "{userPrincipalName}"
	TokenDaysRemaining = "{daysRemaining}"
	TokenExpiryDate    = "{expiryDate}"
)

// expiryDateFormat is the human-readable form used for {expiryDate}.
const expiryDateFormat = "January 2, 2006"

var tokenPattern = regexp.MustCompile(`\{[a-zA-Z]+\}`)

// Values carries the per-user data substituted into a template.
type Values struct {
	DisplayName   string
	PrincipalName string
	DaysRemaining int
	ExpiresAt     *time.Time
	NeverExpires  bool
}

// Render substitutes every supported token in the template and fails on any
// unrecognized one, so a typoed placeholder surfaces as an error instead of
// leaking into outgoing mail.
func Render(template string, vals Values) (string, error) {
	if err := Validate(template); err != nil {
		return "", err
	}
	r := strings.NewReplacer(
		TokenDisplayName, vals.DisplayName,
		TokenPrincipalName, vals.PrincipalName,
		TokenDaysRemaining, strconv.Itoa(vals.DaysRemaining),
		TokenExpiryDate, formatExpiryDate(vals),
	)
	return r.Replace(template), nil
}

// Validate reports an error when the template contains a brace token outside
// the supported set.
func Validate(template string) error {
	for _, token := range tokenPattern.FindAllString(template, -1) {
		switch token {
		case TokenDisplayName, TokenPrincipalName, TokenDaysRemaining, TokenExpiryDate:
		default:
			return fmt.Errorf("unrecognized template placeholder %s", token)
		}
	}
	return nil
}

func formatExpiryDate(vals Values) string {
	if vals.NeverExpires || vals.ExpiresAt == nil {
		return "Never"
	}
	return vals.ExpiresAt.Format(expiryDateFormat)
}
