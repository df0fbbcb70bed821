package manifest

import (
	"fmt"
	"strings"
)

// EngineKind is the closed set of engines the catalog knows about. Detection
// happens outside this module; the kind only selects defaults.
type EngineKind uint8

const (
	EngineUnknown EngineKind = iota
	EngineUnity
	EngineUnreal
	EngineGodot
	EngineRenPy
)

type engineInfo struct {
	name string
	// default sync folder templates; "{name}" is replaced by the game name
	syncFolders []string
	excludes    []string
}

var engines = [...]engineInfo{
	EngineUnknown: {
		name:        "unknown",
		syncFolders: []string{"$GAME_ROOT/saves"},
	},
	EngineUnity: {
		name:        "unity",
		syncFolders: []string{"$UNITY_CONFIG/{name}"},
		excludes:    []string{"Unity/", "Player.log", "Player-prev.log"},
	},
	EngineUnreal: {
		name:        "unreal",
		syncFolders: []string{"$UNREAL_CONFIG/{name}/Saved/SaveGames"},
		excludes:    []string{"Crashes/", "Logs/"},
	},
	EngineGodot: {
		name:        "godot",
		syncFolders: []string{"$GAME_ROOT/saves"},
		excludes:    []string{".import/"},
	},
	EngineRenPy: {
		name:        "renpy",
		syncFolders: []string{"$GAME_ROOT/game/saves"},
		excludes:    []string{"*.log"},
	},
}

func (k EngineKind) valid() bool {
	return int(k) < len(engines)
}

func (k EngineKind) String() string {
	if !k.valid() {
		return fmt.Sprintf("EngineKind(%d)", uint8(k))
	}
	return engines[k].name
}

// DefaultSyncFolders returns the templates used when metadata declares none.
func (k EngineKind) DefaultSyncFolders(game string) []string {
	if !k.valid() {
		k = EngineUnknown
	}
	out := make([]string, len(engines[k].syncFolders))
	for i, tmpl := range engines[k].syncFolders {
		out[i] = strings.ReplaceAll(tmpl, "{name}", game)
	}
	return out
}

func (k EngineKind) DefaultExcludes() []string {
	if !k.valid() {
		return nil
	}
	return append([]string(nil), engines[k].excludes...)
}

func ParseEngine(s string) (EngineKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "unknown":
		return EngineUnknown, nil
	case "ren'py":
		return EngineRenPy, nil
	}
	for k, info := range engines {
		if info.name == s {
			return EngineKind(k), nil
		}
	}
	return EngineUnknown, fmt.Errorf("unknown engine %q", s)
}

func (k EngineKind) MarshalText() ([]byte, error) {
	if !k.valid() {
		return nil, fmt.Errorf("invalid engine kind %d", uint8(k))
	}
	return []byte(engines[k].name), nil
}

func (k *EngineKind) UnmarshalText(b []byte) error {
	parsed, err := ParseEngine(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
