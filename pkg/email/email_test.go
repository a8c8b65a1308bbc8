package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResetLink(t *testing.T) {
	assert.Equal(t,
		"https://chat.example.com/reset-password?token=abc%2B1",
		ResetLink("https://chat.example.com/", "abc+1"))
}

func TestResetBodiesContainLink(t *testing.T) {
	link := ResetLink("https://chat.example.com", "tok")
	assert.Contains(t, resetHTML(link), link)
	assert.Contains(t, resetText(link), link)
}
