package utils

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/goombaio/namegenerator"
)

// ErrNoClipboard is returned when no clipboard utility is available
var ErrNoClipboard = errors.New("no clipboard program found")

var nameSeparators = strings.NewReplacer(
	" ", "-", "_", "-", ".", "-", ",", "-",
	";", "-", ":", "-", "/", "-", "\\", "-",
)

// GenerateRunName creates a memorable run name from the score file name,
// e.g. "string-quartet-wispy-dust"
func GenerateRunName(sourcePath string) string {
	name := namegenerator.NewNameGenerator(time.Now().UTC().UnixNano()).Generate()
	name = strings.ReplaceAll(name, "_", "-")

	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	if prefix := SanitizeName(base); prefix != "" {
		return prefix + "-" + name
	}
	return name
}

// SanitizeName lowercases name and turns separators into single hyphens
func SanitizeName(name string) string {
	name = nameSeparators.Replace(strings.ToLower(name))
	for strings.Contains(name, "--") {
		name = strings.ReplaceAll(name, "--", "-")
	}
	return strings.Trim(name, "-")
}

// CopyToClipboard writes text to the system clipboard
func CopyToClipboard(text string) error {
	if clipboard.Unsupported {
		return ErrNoClipboard
	}
	return clipboard.WriteAll(text)
}
