package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultFontDir is the subdirectory within the user's home directory.
const defaultFontDir = ".config/mtserver/fonts"

// ResolveFontDir returns the absolute directory client font names are looked
// up in. A relative configured path is taken relative to the working
// directory; an empty one falls back to ~/.config/mtserver/fonts.
func ResolveFontDir(configured string) (string, error) {
	if configured == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		return filepath.Join(homeDir, defaultFontDir), nil
	}

	abs, err := filepath.Abs(configured)
	if err != nil {
		return "", fmt.Errorf("failed to resolve font directory '%s': %w", configured, err)
	}
	return abs, nil
}
