package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Name     string `form:"name" validate:"required,min=2"`
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required,min=8,strongpassword"`
}

type post struct {
	Description string   `form:"description" validate:"required,min=10"`
	Lat         *float64 `form:"lat" validate:"omitempty,latitude"`
}

func (post) ValidationMessages() map[string]string {
	return map[string]string{
		"description.min": "Story description should be at least 10 characters long",
	}
}

func TestGetValidatorSingleton(t *testing.T) {
	assert.Same(t, GetValidator(), GetValidator())
}

func TestValidateStructValid(t *testing.T) {
	verr := ValidateStruct(&signup{Name: "Rina", Email: "rina@example.com", Password: "rahasia123"})
	assert.Nil(t, verr)
}

func TestValidateStructMessages(t *testing.T) {
	tests := []struct {
		name  string
		in    signup
		field string
		want  string
	}{
		{"missing name", signup{Email: "a@b.co", Password: "abcdefg1"}, "name", "name is required"},
		{"short name", signup{Name: "R", Email: "a@b.co", Password: "abcdefg1"}, "name", "name must be at least 2 characters long"},
		{"bad email", signup{Name: "Rina", Email: "rina", Password: "abcdefg1"}, "email", "email must be a valid email address"},
		{"short password", signup{Name: "Rina", Email: "a@b.co", Password: "ab1"}, "password", "password must be at least 8 characters long"},
		{"weak password", signup{Name: "Rina", Email: "a@b.co", Password: "abcdefgh"}, "password", "password should contain letters and numbers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidateStruct(&tt.in)
			require.NotNil(t, verr)
			assert.Equal(t, tt.want, verr.Field(tt.field))
			assert.Equal(t, tt.want, verr.First())
		})
	}
}

func TestValidateStructOverride(t *testing.T) {
	lat := 91.0
	verr := ValidateStruct(&post{Description: "short", Lat: &lat})
	require.NotNil(t, verr)

	assert.Len(t, verr.Errors(), 2)
	assert.Equal(t, "Story description should be at least 10 characters long", verr.Field("description"))
	assert.Equal(t, "lat must be a valid latitude (-90 to 90)", verr.Field("lat"))
	assert.Equal(t, "min", verr.Errors()[0].Tag())
	assert.Equal(t, "10", verr.Errors()[0].Param())
	assert.Contains(t, verr.Error(), "; ")
}

func TestStrongPassword(t *testing.T) {
	assert.True(t, StrongPassword("abc12345"))
	assert.True(t, StrongPassword("1a"))
	assert.False(t, StrongPassword("12345678"))
	assert.False(t, StrongPassword("password"))
	assert.False(t, StrongPassword(""))
}
