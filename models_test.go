package auth_test

import (
	"encoding/json"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/holymark/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserValidate(t *testing.T) {
	valid := auth.User{Name: "Ada", Email: "ada@x.com", Username: "ada", Image: "https://x.com/a.png"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(u *auth.User)
		field  string
	}{
		{"empty name", func(u *auth.User) { u.Name = "" }, "name"},
		{"long name", func(u *auth.User) { u.Name = strings.Repeat("x", auth.MaxNameLength+1) }, "name"},
		{"bad email", func(u *auth.User) { u.Email = "ada" }, "email"},
		{"short username", func(u *auth.User) { u.Username = "ad" }, "username"},
		{"long username", func(u *auth.User) { u.Username = strings.Repeat("u", auth.MaxUsernameLength+1) }, "username"},
		{"bad image", func(u *auth.User) { u.Image = "not a url" }, "image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := valid
			tt.mutate(&u)

			err := u.Validate()

			require.Error(t, err)
			assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidRecord))

			var richErr *goerrors.Error
			require.True(t, goerrors.As(err, &richErr))
			assert.Equal(t, goerrors.CategoryValidation, richErr.Category)
			assert.Contains(t, richErr.Metadata["fields"], tt.field)
		})
	}
}

func TestUserNameLengthCountsCharacters(t *testing.T) {
	u := auth.User{Name: strings.Repeat("é", auth.MaxNameLength), Email: "e@x.com", Username: "eee"}
	assert.NoError(t, u.Validate())
}

func TestUserJSONHidesPasswordHash(t *testing.T) {
	raw, err := json.Marshal(auth.User{ID: "1", Email: "a@x.com", PasswordHash: "$2a$10$secret"})
	require.NoError(t, err)

	assert.NotContains(t, string(raw), "secret")
	assert.NotContains(t, string(raw), "password")
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ada@x.com", auth.NormalizeEmail("  ADA@X.com "))
	assert.Equal(t, "ada", auth.NormalizeUsername(" Ada\t"))
	assert.Equal(t, "ada@x.com", auth.NormalizeIdentifier("Ada@X.com"))
}

func TestUserIdentity(t *testing.T) {
	var nilUser *auth.User
	assert.Nil(t, nilUser.Identity())
	assert.False(t, nilUser.HasPassword())

	u := &auth.User{ID: "1", Name: "Ada", Email: "a@x.com", Username: "ada", Image: "i", PasswordHash: "h"}
	assert.Equal(t, &auth.Identity{ID: "1", Name: "Ada", Email: "a@x.com", Username: "ada", Image: "i"}, u.Identity())
	assert.True(t, u.HasPassword())
}
