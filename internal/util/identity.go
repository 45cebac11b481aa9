package util

import (
	"fmt"
	"html"
	"math/rand"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

const (
	MaxIdentityLen = 32
	maxFileNameLen = 128
)

var labelPolicy = bluemonday.StrictPolicy()

// NormalizeIdentity trims user input into an identity. An empty result means
// the input was blank.
func NormalizeIdentity(input string) string {
	return SanitizeLabel(input, MaxIdentityLen)
}

// SanitizeLabel strips markup and control characters from a peer-supplied
// string and caps it at maxLen runes.
func SanitizeLabel(s string, maxLen int) string {
	if s == "" {
		return ""
	}
	cleaned := html.UnescapeString(labelPolicy.Sanitize(html.UnescapeString(s)))

	var b strings.Builder
	b.Grow(len(cleaned))
	n := 0
	for _, r := range cleaned {
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			continue
		}
		if maxLen > 0 && n >= maxLen {
			break
		}
		b.WriteRune(r)
		n++
	}
	return strings.TrimSpace(b.String())
}

// SanitizeFileName reduces a peer-supplied file name to a safe base name.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(SanitizeLabel(name, 0))
	if len([]rune(name)) > maxFileNameLen {
		name = string([]rune(name)[:maxFileNameLen])
	}
	switch name {
	case "", ".", "..", "/":
		return "attachment"
	}
	return name
}

// RandomIdentity picks a call sign with a numeric tag, for users who leave the
// identity prompt blank.
func RandomIdentity() string {
	names := []string{
		"Alpha", "Bravo", "Charlie", "Delta", "Echo", "Foxtrot", "Golf", "Hotel", "India", "Juliett",
		"Kilo", "Lima", "Mike", "November", "Oscar", "Papa", "Quebec", "Romeo", "Sierra", "Tango",
		"Uniform", "Victor", "Whiskey", "X-ray", "Yankee", "Zulu", "Ruby", "Sapphire", "Emerald", "Topaz",
		"Cipher", "Specter", "Ghost", "Shadow", "Phantom", "Viper", "Cobra", "Glitch", "Byte", "Kernel",
	}
	name := names[rand.Intn(len(names))]
	tag := rand.Intn(9000) + 1000
	return fmt.Sprintf("%s-%d", name, tag)
}
