package media

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIsImageFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"a.jpg", true},
		{"a.JPEG", true},
		{"b.png", true},
		{"c.Bmp", true},
		{"d.webp", true},
		{"e.gif", false},
		{"f.mp4", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := IsImageFile(tt.name); got != tt.want {
			t.Errorf("IsImageFile(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFirstImage(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", "x")
	writeFile(t, dir, "b.png", "png-bytes")
	writeFile(t, dir, "a.JPG", "jpg-bytes")
	writeFile(t, dir, ".hidden.png", "h")
	if err := os.Mkdir(filepath.Join(dir, "0.png"), 0755); err != nil {
		t.Fatal(err)
	}

	img, ok, err := FirstImage(dir)
	if err != nil {
		t.Fatalf("FirstImage() error = %v", err)
	}
	if !ok {
		t.Fatal("FirstImage() found nothing")
	}
	if img.Name != "a.JPG" {
		t.Errorf("Name = %q, want a.JPG", img.Name)
	}
	if img.MimeType != "image/jpeg" {
		t.Errorf("MimeType = %q", img.MimeType)
	}

	prefix := "data:image/jpeg;base64,"
	if !strings.HasPrefix(img.DataURL, prefix) {
		t.Fatalf("DataURL = %q", img.DataURL)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(img.DataURL, prefix))
	if err != nil || string(decoded) != "jpg-bytes" {
		t.Errorf("decoded = %q, %v", decoded, err)
	}
}

func TestFirstImage_None(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "clip.mp4", "x")

	_, ok, err := FirstImage(dir)
	if err != nil {
		t.Fatalf("FirstImage() error = %v", err)
	}
	if ok {
		t.Error("FirstImage() should report no image")
	}
}

func TestFirstImage_MissingDir(t *testing.T) {
	if _, _, err := FirstImage(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("FirstImage() should fail for a missing directory")
	}
}

func TestStaticPicker(t *testing.T) {
	ctx := context.Background()

	if _, err := (StaticPicker{}).Pick(ctx, "x"); !errors.Is(err, ErrCancelled) {
		t.Errorf("empty StaticPicker error = %v, want ErrCancelled", err)
	}
	got, err := StaticPicker{Path: "/drafts"}.Pick(ctx, "x")
	if err != nil || got != "/drafts" {
		t.Errorf("Pick() = %q, %v", got, err)
	}
}

func TestPickerCommand(t *testing.T) {
	name, args := pickerCommand("linux", "")
	if name != "zenity" || args[len(args)-1] != "--title=Choose a folder" {
		t.Errorf("linux = %s %v", name, args)
	}
	if name, _ := pickerCommand("darwin", "Drafts"); name != "osascript" {
		t.Errorf("darwin = %s", name)
	}
	_, args = pickerCommand("windows", "Bob's folder")
	if !strings.Contains(args[len(args)-1], "Bob''s folder") {
		t.Errorf("windows title not escaped: %v", args)
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestCleanPickedPath(t *testing.T) {
	tests := []struct {
		out  string
		want string
	}{
		{"/Users/me/Drafts/\n", "/Users/me/Drafts"},
		{"/", "/"},
		{"//", "/"},
		{"C:\\Drafts\\\r\n", "C:\\Drafts"},
		{"C:\\", "C:\\"},
	}
	for _, tt := range tests {
		got, err := cleanPickedPath(tt.out)
		if err != nil || got != tt.want {
			t.Errorf("cleanPickedPath(%q) = %q, %v; want %q", tt.out, got, err, tt.want)
		}
	}

	if _, err := cleanPickedPath("  \n"); !errors.Is(err, ErrCancelled) {
		t.Errorf("empty output error = %v, want ErrCancelled", err)
	}
}
