package renderer

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// AssetName is the template placeholder an image is bound to.
type AssetName string

const (
	AssetBackground     AssetName = "backgroundImage"
	AssetLogoLeft       AssetName = "logoLeftImage"
	AssetLogoRight      AssetName = "logoRightImage"
	AssetVerified       AssetName = "verifiedImage"
	AssetAccreditation1 AssetName = "accreditation1"
	AssetAccreditation2 AssetName = "accreditation2"
	AssetAccreditation3 AssetName = "accreditation3"
	AssetAccreditation4 AssetName = "accreditation4"
	AssetBrandLogo      AssetName = "broadbeachLogo"
)

// DefaultAssetFiles maps every asset to its file name inside the asset directory.
var DefaultAssetFiles = map[AssetName]string{
	AssetBackground:     "c1.jpeg",
	AssetLogoLeft:       "c2.png",
	AssetLogoRight:      "c3.png",
	AssetVerified:       "c4.png",
	AssetAccreditation1: "c5.png",
	AssetAccreditation2: "c6.jpg",
	AssetAccreditation3: "c7.jpeg",
	AssetAccreditation4: "c8.jpg",
	AssetBrandLogo:      "c3.png",
}

// Assets holds inline data URLs keyed by asset name. A missing entry renders as "".
type Assets map[AssetName]string

// Loaded counts the assets that resolved to image data.
func (a Assets) Loaded() int {
	n := 0
	for _, v := range a {
		if v != "" {
			n++
		}
	}
	return n
}

// Manifest overrides asset file locations. Relative paths resolve against the
// manifest's own directory.
//
//	assets:
//	  backgroundImage: backgrounds/gold.jpg
//	  accreditation4: ""   # leave blank
type Manifest struct {
	Assets map[string]string `yaml:"assets"`
}

// LoadManifest reads a YAML asset manifest.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read asset manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse asset manifest: %w", err)
	}
	return &m, nil
}

// LoadAssets reads every named image from dir, applying manifest overrides
// when manifestPath is set. Unreadable images become empty references and are
// logged; only a broken manifest is an error.
func LoadAssets(dir, manifestPath string, logger *zap.Logger) (Assets, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	paths := make(map[AssetName]string, len(DefaultAssetFiles))
	for name, file := range DefaultAssetFiles {
		paths[name] = filepath.Join(dir, file)
	}

	if manifestPath != "" {
		m, err := LoadManifest(manifestPath)
		if err != nil {
			return nil, err
		}
		base := filepath.Dir(manifestPath)
		for key, p := range m.Assets {
			name := AssetName(key)
			if _, known := DefaultAssetFiles[name]; !known {
				logger.Warn("Ignoring unknown asset in manifest", zap.String("asset", key))
				continue
			}
			if p != "" && !filepath.IsAbs(p) {
				p = filepath.Join(base, p)
			}
			paths[name] = p
		}
	}

	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, string(name))
	}
	sort.Strings(names)

	assets := make(Assets, len(paths))
	for _, key := range names {
		name := AssetName(key)
		p := paths[name]
		if p == "" {
			assets[name] = ""
			continue
		}
		dataURL, err := imageDataURL(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Warn("Image not found", zap.String("asset", key), zap.String("path", p))
			} else {
				logger.Error("Error reading image", zap.String("asset", key), zap.String("path", p), zap.Error(err))
			}
			assets[name] = ""
			continue
		}
		assets[name] = dataURL
	}

	logger.Info("Certificate assets loaded",
		zap.Int("loaded", assets.Loaded()),
		zap.Int("total", len(assets)))
	return assets, nil
}

func imageDataURL(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("image %s is empty", path)
	}
	return "data:" + detectImageType(path, raw) + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}

// detectImageType sniffs the content and falls back to the file extension.
func detectImageType(path string, raw []byte) string {
	if mt := mimetype.Detect(raw); strings.HasPrefix(mt.String(), "image/") {
		// Drop parameters such as "; charset=utf-8" on SVG.
		return strings.SplitN(mt.String(), ";", 2)[0]
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "svg":
		return "image/svg+xml"
	case "":
		return "application/octet-stream"
	}
	return "image/" + ext
}
