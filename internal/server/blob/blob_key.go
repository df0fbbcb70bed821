package blob

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Match: starts with one or more / OR contains \ OR has a .. segment
var regexForbiddenPatterns = regexp.MustCompile(`^/+|\\+|(^|/)\.\.(/|$)`)

// ValidateKey checks a key for S3 and local file system compatibility.
func ValidateKey(key string) bool {
	// S3 keys must be between 1 and 1024 bytes long
	if len(key) == 0 || len(key) > 1024 {
		return false
	} else if key == "." || key == ".." {
		return false
	}

	if regexForbiddenPatterns.MatchString(key) {
		return false
	}

	return utf8.ValidString(key)
}

// SaveKey addresses one save file: the identity that owns it, the game, the
// sync-folder key and the path relative to the folder root.
type SaveKey struct {
	User   string
	Game   string
	Folder string
	Path   string
}

// Prefix is the key prefix shared by every file of the folder.
func (k SaveKey) Prefix() string {
	return k.User + "/" + k.Game + "/" + k.Folder + "/"
}

func (k SaveKey) String() string {
	return k.Prefix() + k.Path
}

func (k SaveKey) Validate() error {
	for _, seg := range []string{k.User, k.Game, k.Folder} {
		if seg == "" || strings.HasPrefix(seg, ".") || strings.Contains(seg, "/") || !ValidateKey(seg) {
			return fmt.Errorf("%w: %q", ErrInvalidKey, k.String())
		}
	}
	if !ValidateKey(k.Path) || strings.HasSuffix(k.Path, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, k.String())
	}
	return nil
}

// ParseKey splits a stored key back into its parts.
func ParseKey(key string) (SaveKey, error) {
	parts := strings.SplitN(key, "/", 4)
	if len(parts) != 4 {
		return SaveKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	k := SaveKey{User: parts[0], Game: parts[1], Folder: parts[2], Path: parts[3]}
	return k, k.Validate()
}
