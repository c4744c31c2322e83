// Package cache holds the on-disk avatar cache used by the avatar proxy
// endpoint.
package cache

import (
	"crypto/md5"
	"fmt"
	"image"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
)

// AvatarCache downloads user avatars, scales them down and keeps them on
// disk, so the SPA never hits the upstream avatar hosts directly.
type AvatarCache struct {
	cacheDir string
	client   *http.Client
	maxSize  int // Maximum width/height for scaled avatars
	quality  int // JPEG quality (1-100)
}

// NewAvatarCache creates a new avatar cache manager.
func NewAvatarCache(cacheDir string) *AvatarCache {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		log.Errorf("Failed to create avatar cache directory: %v", err)
	}

	return &AvatarCache{
		cacheDir: cacheDir,
		maxSize:  256,
		quality:  85,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// cacheKey generates a cache key from the avatar URL.
func (ac *AvatarCache) cacheKey(avatarURL string) string {
	hash := md5.Sum([]byte(avatarURL))
	return fmt.Sprintf("%x", hash)
}

func (ac *AvatarCache) cacheFilePath(avatarURL string) string {
	return filepath.Join(ac.cacheDir, ac.cacheKey(avatarURL)+".jpg")
}

// CachedPath returns the local path for an avatar, downloading and scaling it
// if necessary.
func (ac *AvatarCache) CachedPath(avatarURL string, size int) (string, error) {
	if avatarURL == "" {
		return "", fmt.Errorf("empty avatar URL")
	}

	cacheFilePath := ac.cacheFilePath(avatarURL)
	if _, err := os.Stat(cacheFilePath); err == nil {
		log.Debugf("Using cached avatar: %s", cacheFilePath)
		return cacheFilePath, nil
	}

	return ac.downloadAndCache(avatarURL, cacheFilePath, size)
}

// downloadAndCache downloads an avatar, scales it and saves it to the cache.
func (ac *AvatarCache) downloadAndCache(avatarURL, cacheFilePath string, size int) (string, error) {
	tempFilePath := filepath.Join(filepath.Dir(cacheFilePath), "tmp_"+filepath.Base(cacheFilePath))
	defer os.Remove(tempFilePath)

	resp, err := ac.client.Get(avatarURL)
	if err != nil {
		return "", fmt.Errorf("failed to download avatar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download avatar: HTTP %d", resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to decode avatar: %w", err)
	}

	if size <= 0 || size > ac.maxSize {
		size = ac.maxSize
	}

	// Avatars are displayed square; Fill crops to the shorter dimension.
	scaled := imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)

	if err := imaging.Save(scaled, tempFilePath, imaging.JPEGQuality(ac.quality)); err != nil {
		return "", fmt.Errorf("failed to save avatar: %w", err)
	}

	if err := os.Rename(tempFilePath, cacheFilePath); err != nil {
		return "", fmt.Errorf("failed to move temp file: %w", err)
	}

	log.Debugf("Cached avatar: %s -> %s", avatarURL, cacheFilePath)
	return cacheFilePath, nil
}

// Serve serves a cached avatar, downloading it on first access.
func (ac *AvatarCache) Serve(avatarURL string, size int, w http.ResponseWriter, r *http.Request) error {
	cacheFilePath, err := ac.CachedPath(avatarURL, size)
	if err != nil {
		log.Errorf("Failed to get cached avatar: %v", err)
		http.Error(w, "Failed to get avatar", http.StatusBadGateway)
		return err
	}

	file, err := os.Open(cacheFilePath)
	if err != nil {
		log.Errorf("Failed to open cached avatar: %v", err)
		http.Error(w, "Failed to open avatar", http.StatusInternalServerError)
		return err
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		http.Error(w, "Failed to stat avatar", http.StatusInternalServerError)
		return err
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, fileInfo.Name(), fileInfo.ModTime(), file)
	return nil
}

// CleanupOld removes cached avatars older than the specified duration.
func (ac *AvatarCache) CleanupOld(maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge)
	var removed int
	var freed int64

	err := filepath.Walk(ac.cacheDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && info.ModTime().Before(cutoff) {
			freed += info.Size()
			removed++
			return os.Remove(path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if removed > 0 {
		log.Info("Cleaned up old cached avatars", "removed", removed, "freed", humanize.Bytes(uint64(freed)))
	}
	return nil
}
