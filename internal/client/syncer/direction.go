package syncer

import (
	"os"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/gamebox/internal/client/transfer"
	"github.com/openmined/gamebox/internal/manifest"
)

type Direction uint8

const (
	Both Direction = iota
	Pull
	Push
)

func (d Direction) String() string {
	switch d {
	case Pull:
		return "pull"
	case Push:
		return "push"
	}
	return "both"
}

// resolveConflicts keeps one direction for paths planned both ways: the side
// with the newer timestamp wins, the remote on a tie.
func resolveConflicts(down, up []transfer.Job, remote []manifest.SaveFileRecord) ([]transfer.Job, []transfer.Job) {
	downPaths := mapset.NewThreadUnsafeSet[string]()
	for _, j := range down {
		downPaths.Add(j.RelPath)
	}
	upPaths := mapset.NewThreadUnsafeSet[string]()
	for _, j := range up {
		upPaths.Add(j.RelPath)
	}
	both := downPaths.Intersect(upPaths)
	if both.Cardinality() == 0 {
		return down, up
	}

	remoteTime := make(map[string]int64, len(remote))
	for _, r := range remote {
		if _, dup := remoteTime[r.Path]; !dup {
			remoteTime[r.Path] = r.LastModified.Unix()
		}
	}

	localWins := mapset.NewThreadUnsafeSet[string]()
	for _, j := range up {
		if !both.Contains(j.RelPath) {
			continue
		}
		info, err := os.Stat(j.Source)
		if err == nil && info.ModTime().Unix() > remoteTime[j.RelPath] {
			localWins.Add(j.RelPath)
		}
	}

	keptDown := down[:0:0]
	for _, j := range down {
		if !localWins.Contains(j.RelPath) {
			keptDown = append(keptDown, j)
		}
	}
	keptUp := up[:0:0]
	for _, j := range up {
		if !both.Contains(j.RelPath) || localWins.Contains(j.RelPath) {
			keptUp = append(keptUp, j)
		}
	}
	return keptDown, keptUp
}
