package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckEmailFormat(t *testing.T) {
	result := CheckEmail("not-an-email")
	assert.Equal(t, "invalid", result.Status)
	assert.Equal(t, "malformed address", result.Reason)
}

func TestCheckEmailDisposable(t *testing.T) {
	result := CheckEmail("someone@mailinator.com")
	assert.Equal(t, "disposable", result.Status)
}

func TestCheckEmailDisposableCaseInsensitiveDomain(t *testing.T) {
	result := CheckEmail("someone@Mailinator.COM")
	assert.Equal(t, "disposable", result.Status)
}

func TestLoadDisposableDomains(t *testing.T) {
	domains := loadDisposableDomains()
	assert.True(t, domains["yopmail.com"])
	assert.False(t, domains[""])
	assert.False(t, domains["gmail.com"])
}
