package pathres

import (
	"path/filepath"
	"testing"

	"github.com/openmined/gamebox/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(kv map[string]string) func(string) string {
	return func(k string) string { return kv[k] }
}

func TestResolve_GameRoot(t *testing.T) {
	r := New(WithPlatform("linux", envOf(nil)))
	got, err := r.Resolve("$GAME_ROOT/saves", &GameContext{InstallRoot: "/games", GameFolder: "MyGame"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/games", "MyGame", "saves"), got)
}

func TestResolve_LiteralSegments(t *testing.T) {
	r := New(WithPlatform("linux", envOf(nil)))

	got, err := r.Resolve("/srv/$SOMETHING/x", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/srv", "$SOMETHING", "x"), got)
}

func TestResolve_Linux(t *testing.T) {
	r := New(WithPlatform("linux", envOf(map[string]string{"HOME": "/home/ana"})))

	got, err := r.Resolve("$DOCUMENTS/My Games", &GameContext{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/ana", "Documents", "My Games"), got)

	got, err = r.Resolve("$UNITY_CONFIG/Team Cherry/Hollow Knight", &GameContext{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/ana", ".config", "unity3d", "Team Cherry", "Hollow Knight"), got)

	got, err = r.Resolve("$UNREAL_CONFIG/Game/Saved", &GameContext{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/ana", ".config", "Epic", "Game", "Saved"), got)
}

func TestResolve_LinuxXDG(t *testing.T) {
	r := New(WithPlatform("linux", envOf(map[string]string{
		"HOME":              "/home/ana",
		"XDG_CONFIG_HOME":   "/cfg",
		"XDG_DOCUMENTS_DIR": "/docs",
	})))

	got, err := r.Resolve("$DOCUMENTS", &GameContext{})
	require.NoError(t, err)
	assert.Equal(t, "/docs", got)

	got, err = r.Resolve("$UNITY_CONFIG", &GameContext{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/cfg", "unity3d"), got)
}

func TestResolve_Windows(t *testing.T) {
	r := New(WithPlatform("windows", envOf(map[string]string{
		"USERPROFILE":  "/Users/ana",
		"LOCALAPPDATA": "/Users/ana/AppData/Local",
	})))

	got, err := r.Resolve("$UNITY_CONFIG/Studio/Game", &GameContext{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/Users/ana", "AppData", "LocalLow", "Studio", "Game"), got)

	got, err = r.Resolve(`$UNREAL_CONFIG\Game\Saved`, &GameContext{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/Users/ana/AppData/Local", "Game", "Saved"), got)
}

func TestResolve_Compat(t *testing.T) {
	r := New(
		WithPlatform("linux", envOf(map[string]string{"HOME": "/home/ana", "USER": "ana"})),
		WithCompat("/home/ana/.wine", ""),
	)
	gc := &GameContext{Compat: true}

	cases := map[string]string{
		"$DOCUMENTS/My Games":   filepath.Join("/home/ana/.wine", "drive_c", "users", "ana", "Documents", "My Games"),
		"$UNITY_CONFIG/Studio":  filepath.Join("/home/ana/.wine", "drive_c", "users", "ana", "AppData", "LocalLow", "Studio"),
		"$UNREAL_CONFIG/Studio": filepath.Join("/home/ana/.wine", "drive_c", "users", "ana", "AppData", "Local", "Studio"),
	}
	for tmpl, want := range cases {
		got, err := r.Resolve(tmpl, gc)
		require.NoError(t, err, tmpl)
		assert.Equal(t, want, got, tmpl)
	}
}

func TestResolve_StrictFailsOnMissingEnv(t *testing.T) {
	r := New(WithPlatform("linux", envOf(nil)))

	_, err := r.Resolve("$DOCUMENTS/My Games", &GameContext{})
	assert.ErrorIs(t, err, ErrUnresolvedToken)

	_, err = r.Resolve("$GAME_ROOT/saves", &GameContext{})
	assert.ErrorIs(t, err, ErrUnresolvedToken)

	// compat requested but no prefix configured
	_, err = r.Resolve("$DOCUMENTS", &GameContext{Compat: true})
	assert.ErrorIs(t, err, ErrUnresolvedToken)
}

func TestResolve_LenientOmitsToken(t *testing.T) {
	r := New(WithPlatform("linux", envOf(nil)), Lenient())

	got, err := r.Resolve("$DOCUMENTS/My Games/Saves", &GameContext{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("My Games", "Saves"), got)

	_, err = r.Resolve("$DOCUMENTS", &GameContext{})
	assert.ErrorIs(t, err, ErrUnresolvedToken)
}

func TestUsesCompat(t *testing.T) {
	winOnly := &manifest.Metadata{Executables: map[string]string{manifest.PlatformWindows: "g.exe"}}
	native := &manifest.Metadata{Executables: map[string]string{manifest.PlatformWindows: "g.exe", manifest.PlatformLinux: "g"}}

	linux := New(WithPlatform("linux", envOf(nil)), WithCompat("/wine", "u"))
	assert.True(t, linux.UsesCompat(winOnly))
	assert.False(t, linux.UsesCompat(native))

	noPrefix := New(WithPlatform("linux", envOf(nil)))
	assert.False(t, noPrefix.UsesCompat(winOnly))

	windows := New(WithPlatform("windows", envOf(nil)), WithCompat("/wine", "u"))
	assert.False(t, windows.UsesCompat(winOnly))
}
