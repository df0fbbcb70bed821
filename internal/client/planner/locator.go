package planner

import (
	"net/url"
	"strings"
)

// BulkLocator is the server resource for one install file of a game.
func BulkLocator(game, rel string) string {
	return "games/" + url.PathEscape(game) + "/files/" + escapePath(rel)
}

// SaveLocator is the server resource for one file of a sync folder.
func SaveLocator(game, folder, rel string) string {
	return "saves/" + url.PathEscape(game) + "/" + url.PathEscape(folder) + "/files/" + escapePath(rel)
}

func escapePath(rel string) string {
	parts := strings.Split(strings.TrimLeft(rel, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
