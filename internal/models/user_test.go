package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	r, err := ParseRole("")
	assert.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)

	r, err = ParseRole(" Super-Admin ")
	assert.NoError(t, err)
	assert.Equal(t, RoleSuperAdmin, r)

	_, err = ParseRole("visitor")
	assert.ErrorIs(t, err, ErrUnknownRole)
}
