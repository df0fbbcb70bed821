// Package pathres expands sync folder templates such as
// `$UNITY_CONFIG/Team Cherry/Hollow Knight` into concrete paths for the
// current host, optionally inside a Windows compatibility prefix.
package pathres

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/openmined/gamebox/internal/manifest"
)

const (
	TokenGameRoot     = "$GAME_ROOT"
	TokenDocuments    = "$DOCUMENTS"
	TokenUnityConfig  = "$UNITY_CONFIG"
	TokenUnrealConfig = "$UNREAL_CONFIG"
)

var ErrUnresolvedToken = errors.New("unresolved path token")

// GameContext carries what a template needs to know about one game.
type GameContext struct {
	InstallRoot string
	GameFolder  string
	// Compat is set when the game runs under the compatibility layer.
	Compat bool
}

type Resolver struct {
	goos         string
	getenv       func(string) string
	compatPrefix string
	compatUser   string
	lenient      bool
}

type Option func(*Resolver)

// WithCompat configures the compatibility layer prefix (the directory that
// contains drive_c) and the user name inside it. An empty user falls back to
// the host user.
func WithCompat(prefix, user string) Option {
	return func(r *Resolver) {
		r.compatPrefix = prefix
		r.compatUser = user
	}
}

// Lenient makes unresolvable tokens contribute nothing instead of failing.
// The resulting path is usually wrong; only use it for best-effort listings.
func Lenient() Option {
	return func(r *Resolver) { r.lenient = true }
}

// WithPlatform overrides the host OS and environment lookup.
func WithPlatform(goos string, getenv func(string) string) Option {
	return func(r *Resolver) {
		r.goos = goos
		r.getenv = getenv
	}
}

func New(opts ...Option) *Resolver {
	r := &Resolver{goos: runtime.GOOS, getenv: os.Getenv}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// UsesCompat reports whether a game has to run under the compatibility
// layer on this host: non-Windows host, a configured prefix and a game that
// only ships a Windows executable.
func (r *Resolver) UsesCompat(meta *manifest.Metadata) bool {
	return r.goos != manifest.PlatformWindows && r.compatPrefix != "" && meta != nil && meta.WindowsOnly()
}

// Resolve walks the template's segments and substitutes recognized tokens.
// Unrecognized segments, including other `$NAME` values, are kept literally.
func (r *Resolver) Resolve(template string, gc *GameContext) (string, error) {
	if gc == nil {
		gc = &GameContext{}
	}
	segments := strings.FieldsFunc(template, func(c rune) bool { return c == '/' || c == '\\' })

	var parts []string
	if strings.HasPrefix(template, "/") {
		parts = append(parts, string(filepath.Separator))
	}

	for _, seg := range segments {
		var (
			val string
			err error
		)
		switch seg {
		case TokenGameRoot:
			val, err = r.gameRoot(gc)
		case TokenDocuments:
			val, err = r.documents(gc)
		case TokenUnityConfig:
			val, err = r.unityConfig(gc)
		case TokenUnrealConfig:
			val, err = r.unrealConfig(gc)
		default:
			parts = append(parts, seg)
			continue
		}

		if err != nil {
			if r.lenient {
				continue
			}
			return "", fmt.Errorf("%w: %s: %w", ErrUnresolvedToken, seg, err)
		}
		parts = append(parts, val)
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("%w: %q resolved to nothing", ErrUnresolvedToken, template)
	}
	return filepath.Join(parts...), nil
}

func (r *Resolver) gameRoot(gc *GameContext) (string, error) {
	if gc.InstallRoot == "" || gc.GameFolder == "" {
		return "", errors.New("install root or game folder not set")
	}
	return filepath.Join(gc.InstallRoot, gc.GameFolder), nil
}

func (r *Resolver) documents(gc *GameContext) (string, error) {
	if gc.Compat {
		return r.compatUserDir("Documents")
	}
	switch r.goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		if dir := r.getenv("XDG_DOCUMENTS_DIR"); dir != "" {
			return dir, nil
		}
	}
	return r.homeJoin("Documents")
}

func (r *Resolver) unityConfig(gc *GameContext) (string, error) {
	if gc.Compat {
		return r.compatUserDir("AppData", "LocalLow")
	}
	switch r.goos {
	case "windows":
		return r.homeJoin("AppData", "LocalLow")
	case "darwin":
		return r.homeJoin("Library", "Application Support")
	default:
		return r.xdgConfig("unity3d")
	}
}

func (r *Resolver) unrealConfig(gc *GameContext) (string, error) {
	if gc.Compat {
		return r.compatUserDir("AppData", "Local")
	}
	switch r.goos {
	case "windows":
		if dir := r.getenv("LOCALAPPDATA"); dir != "" {
			return dir, nil
		}
		return r.homeJoin("AppData", "Local")
	case "darwin":
		return r.homeJoin("Library", "Application Support", "Epic")
	default:
		return r.xdgConfig("Epic")
	}
}

func (r *Resolver) compatUserDir(elem ...string) (string, error) {
	if r.compatPrefix == "" {
		return "", errors.New("compatibility prefix not configured")
	}
	user := r.compatUser
	if user == "" {
		user = r.getenv("USER")
	}
	if user == "" {
		return "", errors.New("compatibility user unknown")
	}
	base := []string{r.compatPrefix, "drive_c", "users", user}
	return filepath.Join(append(base, elem...)...), nil
}

func (r *Resolver) home() (string, error) {
	key := "HOME"
	if r.goos == "windows" {
		key = "USERPROFILE"
	}
	if h := r.getenv(key); h != "" {
		return h, nil
	}
	return "", fmt.Errorf("%s not set", key)
}

func (r *Resolver) homeJoin(elem ...string) (string, error) {
	h, err := r.home()
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{h}, elem...)...), nil
}

func (r *Resolver) xdgConfig(sub string) (string, error) {
	if dir := r.getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, sub), nil
	}
	return r.homeJoin(".config", sub)
}
