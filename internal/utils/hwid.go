package utils

import (
	"os"
	"sync"

	"github.com/denisbrodbeck/machineid"
)

var deviceID = sync.OnceValue(func() string {
	if id, err := machineid.ProtectedID("gamebox"); err == nil {
		return id[:16]
	}
	host, _ := os.Hostname()
	return host
})

// DeviceID is a stable, app-scoped identifier for this machine.
func DeviceID() string {
	return deviceID()
}
