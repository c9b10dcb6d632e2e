package auth

import (
	"strings"
	"unicode"
)

const minPasswordLength = 8

// RegisterFields is the password registration form.
type RegisterFields struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	CompanyName string `json:"company_name"`
	GSTNumber   string `json:"gst_number"`
	Role        Role   `json:"role"`
}

// Validate checks format rules in a fixed order and returns the first
// violation.
func (f RegisterFields) Validate() error {
	if err := ValidateName(f.Name); err != nil {
		return err
	}
	if _, err := NormalizePhone(f.Phone); err != nil {
		return err
	}
	if err := ValidatePassword(f.Password); err != nil {
		return err
	}
	if !f.Role.SelfAssignable() {
		return ErrInvalidRole
	}
	return nil
}

// Normalized returns a copy with trimmed email/name and the 10-digit phone.
// Call it only after Validate succeeded.
func (f RegisterFields) Normalized() RegisterFields {
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	f.Name = strings.TrimSpace(f.Name)
	f.CompanyName = strings.TrimSpace(f.CompanyName)
	f.GSTNumber = strings.ToUpper(strings.TrimSpace(f.GSTNumber))
	if phone, err := NormalizePhone(f.Phone); err == nil {
		f.Phone = phone
	}
	return f
}

func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

// ValidateName accepts letters and inner spaces; at least two letters.
func ValidateName(name string) error {
	letters := 0
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r):
			letters++
		case r == ' ':
		default:
			return ErrInvalidName
		}
	}
	if letters < 2 {
		return ErrInvalidName
	}
	return nil
}

// NormalizePhone strips spaces, dashes, dots and parentheses and requires
// exactly ten digits to remain.
func NormalizePhone(phone string) (string, error) {
	var b strings.Builder
	for _, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '.', r == '(', r == ')':
		default:
			return "", ErrInvalidPhone
		}
	}
	if b.Len() != 10 {
		return "", ErrInvalidPhone
	}
	return b.String(), nil
}
