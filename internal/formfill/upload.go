package formfill

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod"
)

const (
	startQuality = 85
	qualityStep  = 5
	qualityFloor = 10
)

// UploadPhoto compresses the first photo under the size budget and injects it
// into the first file input on the page. Missing file inputs are skipped, not
// fatal; some agencies collect photos by email after first contact.
func (f *Filler) UploadPhoto(p *rod.Page, photoPaths []string, maxKB int) {
	if len(photoPaths) == 0 {
		return
	}

	path, err := CompressImage(photoPaths[0], maxKB)
	if err != nil {
		f.log.Warn("compression failed, uploading original", "photo", photoPaths[0], "err", err)
		path = photoPaths[0]
	}

	el, err := p.Timeout(5 * time.Second).Element(`input[type="file"]`)
	if err != nil {
		f.log.Info("no file input found, skipping upload")
		return
	}
	if err := el.SetFiles([]string{path}); err != nil {
		f.log.Warn("file upload failed", "photo", path, "err", err)
		return
	}
	f.log.Info("photo uploaded", "photo", path)
}

// CompressImage re-encodes the image as JPEG, stepping quality down until it
// fits the budget or hits the quality floor. Returns the path of the
// compressed copy.
func CompressImage(path string, maxKB int) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	img, _, err := image.Decode(src)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}

	var buf bytes.Buffer
	quality := startQuality
	for {
		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", err
		}
		if buf.Len() <= maxKB*1024 || quality <= qualityFloor {
			break
		}
		quality -= qualityStep
	}

	out := strings.TrimSuffix(path, filepath.Ext(path)) + "_compressed.jpg"
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return "", err
	}
	return out, nil
}
