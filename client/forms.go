package client

import (
	"errors"
	"log"
	"strings"

	"github.com/devchat/devchat/models"
)

// FormErrors collects the messages shown under a form. A field is
// highlighted when any message mentions its name.
type FormErrors struct {
	messages []string
}

// Add records err. Errors built with errors.Join contribute one message per
// joined error. API errors contribute their server message, one per line,
// anything else its Error string. Nil is ignored.
func (f *FormErrors) Add(err error) {
	if err == nil {
		return
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			f.Add(e)
		}
		return
	}
	msg := err.Error()
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		msg = apiErr.Message
	}
	for _, line := range strings.Split(msg, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			log.Printf("[client] form error: %s", line)
			f.messages = append(f.messages, line)
		}
	}
}

// HasError reports whether a message mentions field, ignoring case.
func (f *FormErrors) HasError(field string) bool {
	field = strings.ToLower(field)
	for _, msg := range f.messages {
		if strings.Contains(strings.ToLower(msg), field) {
			return true
		}
	}
	return false
}

func (f *FormErrors) Messages() []string {
	return append([]string(nil), f.messages...)
}

func (f *FormErrors) Empty() bool { return len(f.messages) == 0 }

func (f *FormErrors) Clear() { f.messages = nil }

// ValidateRegister runs the registration checks locally so the form can
// show them without a round trip.
func ValidateRegister(req models.CreateUserRequest) *FormErrors {
	var f FormErrors
	f.Add(req.Validate())
	return &f
}

func ValidateLogin(req models.LoginRequest) *FormErrors {
	var f FormErrors
	f.Add(req.Validate())
	return &f
}
