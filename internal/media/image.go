// Package media finds preview images for the crop editor and asks the desktop
// for directories.
package media

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MaxPreviewBytes caps the size of an image returned as a data URL.
const MaxPreviewBytes = 20 << 20

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".bmp":  "image/bmp",
	".webp": "image/webp",
}

// Image is the first image of a directory, ready to show in a browser view.
type Image struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	DataURL  string `json:"data_url"`
}

func IsImageFile(name string) bool {
	_, ok := imageTypes[strings.ToLower(filepath.Ext(name))]
	return ok
}

// FirstImage returns the lexicographically first image file directly inside
// dir. ok is false when the directory holds no images.
func FirstImage(dir string) (img Image, ok bool, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Image{}, false, fmt.Errorf("read image directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !IsImageFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return Image{}, false, nil
	}
	sort.Strings(names)

	path := filepath.Join(dir, names[0])
	info, err := os.Stat(path)
	if err != nil {
		return Image{}, false, fmt.Errorf("stat image: %w", err)
	}
	if info.Size() > MaxPreviewBytes {
		return Image{}, false, fmt.Errorf("image %s is too large for preview (%d bytes)", names[0], info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, false, fmt.Errorf("read image: %w", err)
	}

	mimeType := mimeTypeFor(names[0])
	return Image{
		Path:     path,
		Name:     names[0],
		MimeType: mimeType,
		Size:     info.Size(),
		DataURL:  "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data),
	}, true, nil
}

func mimeTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := imageTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
