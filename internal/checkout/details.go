package checkout

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Details is the shipping and payment information collected at checkout.
// It is validated locally and never sent to the API.
type Details struct {
	Email      string
	FirstName  string
	LastName   string
	Address    string
	City       string
	State      string
	ZipCode    string
	CardNumber string
	ExpiryDate string
	CVV        string
	NameOnCard string
}

var (
	expiryRe = regexp.MustCompile(`^\d{2}/\d{2}$`)
	cvvRe    = regexp.MustCompile(`^\d{3,4}$`)
)

// FieldError describes one invalid field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every invalid field of a Details value.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "invalid checkout details: " + strings.Join(parts, "; ")
}

// Validate checks d and returns a *ValidationError naming every failing
// field, or nil.
func (d Details) Validate() error {
	var fields []FieldError
	check := func(ok bool, field, message string) {
		if !ok {
			fields = append(fields, FieldError{Field: field, Message: message})
		}
	}

	check(validEmail(d.Email), "email", "Invalid email address")
	check(minLen(d.FirstName, 2), "firstName", "First name is required")
	check(minLen(d.LastName, 2), "lastName", "Last name is required")
	check(minLen(d.Address, 5), "address", "Address is required")
	check(minLen(d.City, 2), "city", "City is required")
	check(minLen(d.State, 1), "state", "State is required")
	check(minLen(d.ZipCode, 3), "zipCode", "ZIP code is required")
	check(minLen(d.CardNumber, 13), "cardNumber", "Invalid card number")
	check(expiryRe.MatchString(d.ExpiryDate), "expiryDate", "Format must be MM/YY")
	check(cvvRe.MatchString(d.CVV), "cvv", "Invalid CVV")
	check(minLen(d.NameOnCard, 2), "nameOnCard", "Name on card is required")

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

func minLen(s string, n int) bool {
	return utf8.RuneCountInString(s) >= n
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
