package manifest

// GameInfo is one entry of the library listing.
type GameInfo struct {
	Name   string     `json:"name"`
	Engine EngineKind `json:"engine"`
}

type GameList struct {
	Games []GameInfo `json:"games"`
}

type SaveList struct {
	Files []SaveFileRecord `json:"files"`
}

const EventSaveUpdated = "save.updated"

// SaveEvent is pushed to connected clients of the same identity after a save
// upload lands.
type SaveEvent struct {
	Type   string         `json:"type"`
	Game   string         `json:"game"`
	Folder string         `json:"folder"`
	File   SaveFileRecord `json:"file"`
	Device string         `json:"device,omitempty"`
}
