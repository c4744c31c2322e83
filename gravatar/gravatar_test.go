package gravatar

import (
	"testing"

	"github.com/grindolympiads/examgate/config"
	"github.com/stretchr/testify/assert"
)

func TestURL(t *testing.T) {
	cfg := &config.GravatarConfig{Enabled: true, DefaultImage: "robohash", Rating: "g", Size: 80}

	url := URL("Student@Example.com ", cfg)
	// md5 of the trimmed, lowercased address.
	assert.Contains(t, url, "https://www.gravatar.com/avatar/")
	assert.Equal(t, url, URL("student@example.com", cfg), "email is normalized before hashing")
	assert.Contains(t, url, "d=robohash")
	assert.Contains(t, url, "r=g")
	assert.Contains(t, url, "s=80")
}

func TestURLDisabled(t *testing.T) {
	assert.Empty(t, URL("student@example.com", &config.GravatarConfig{Enabled: false}))
	assert.Empty(t, URL("student@example.com", nil))
	assert.Empty(t, URL("", &config.GravatarConfig{Enabled: true}))
}
