// Package gravatar builds Gravatar URLs used as avatar fallback for users
// whose profile carries no avatar of its own.
package gravatar

import (
	"crypto/md5"
	"fmt"
	"net/url"
	"strings"

	"github.com/grindolympiads/examgate/config"
)

// URL generates a Gravatar URL for the given email address using the
// provided configuration. Returns an empty string if Gravatar is disabled or
// email is empty.
func URL(email string, cfg *config.GravatarConfig) string {
	if cfg == nil || !cfg.Enabled || email == "" {
		return ""
	}

	email = strings.TrimSpace(strings.ToLower(email))
	hash := md5.Sum([]byte(email))

	params := url.Values{}
	if cfg.DefaultImage != "" {
		params.Add("d", cfg.DefaultImage)
	}
	if cfg.Rating != "" {
		params.Add("r", cfg.Rating)
	}
	if cfg.Size > 0 {
		params.Add("s", fmt.Sprintf("%d", cfg.Size))
	}

	gravatarURL := fmt.Sprintf("https://www.gravatar.com/avatar/%x", hash)
	if len(params) > 0 {
		gravatarURL += "?" + params.Encode()
	}
	return gravatarURL
}
