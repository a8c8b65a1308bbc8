package client

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/devchat/devchat/models"
)

func TestFormErrorsHighlightByFieldName(t *testing.T) {
	tests := []struct {
		name      string
		req       models.CreateUserRequest
		highlight []string
		clean     []string
	}{
		{
			name:      "short password",
			req:       models.CreateUserRequest{Username: "ada", Email: "ada@example.com", Password: "123", PasswordConfirmation: "123"},
			highlight: []string{"password"},
			clean:     []string{"email", "username"},
		},
		{
			name:      "bad email",
			req:       models.CreateUserRequest{Username: "ada", Email: "nope", Password: "secret1", PasswordConfirmation: "secret1"},
			highlight: []string{"Email"},
			clean:     []string{"password"},
		},
		{
			name:  "valid",
			req:   models.CreateUserRequest{Username: "ada", Email: "ada@example.com", Password: "secret1", PasswordConfirmation: "secret1"},
			clean: []string{"email", "password", "username"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ValidateRegister(tt.req)
			for _, field := range tt.highlight {
				assert.True(t, f.HasError(field), field)
			}
			for _, field := range tt.clean {
				assert.False(t, f.HasError(field), field)
			}
		})
	}
}

func TestValidateRegisterEmptyFormReportsEveryProblem(t *testing.T) {
	f := ValidateRegister(models.CreateUserRequest{})

	assert.Equal(t, []string{"Please fill in all fields", "Password is invalid"}, f.Messages())
	assert.True(t, f.HasError("fields"))
	assert.True(t, f.HasError("password"))
}

func TestFormErrorsSplitMultiLineServerMessage(t *testing.T) {
	var f FormErrors
	f.Add(&APIError{Status: http.StatusBadRequest, Message: "Please fill in all fields\nPassword is invalid"})

	assert.Len(t, f.Messages(), 2)
	assert.True(t, f.HasError("password"))
}

func TestFormErrorsUseServerMessage(t *testing.T) {
	var f FormErrors
	f.Add(&APIError{Status: http.StatusConflict, Message: "email already in use"})
	f.Add(nil)

	assert.Equal(t, []string{"email already in use"}, f.Messages())
	assert.True(t, f.HasError("EMAIL"))

	f.Clear()
	assert.True(t, f.Empty())
}

func TestValidateLogin(t *testing.T) {
	f := ValidateLogin(models.LoginRequest{Email: " ", Password: "x"})
	assert.False(t, f.Empty())
	assert.True(t, f.HasError("fields"))

	f = ValidateLogin(models.LoginRequest{Email: "a@b.co", Password: "x"})
	assert.True(t, f.Empty())

	var other FormErrors
	other.Add(errors.New("Password is invalid"))
	assert.True(t, other.HasError("password"))
}
