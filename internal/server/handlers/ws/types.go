package ws

import "log/slog"

// ClientInfo describes who is on the other end of a connection. Save events
// are routed by User; Device lets clients recognise their own uploads.
type ClientInfo struct {
	User    string
	Device  string
	IPAddr  string
	Version string
}

func (i *ClientInfo) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user", i.User),
		slog.String("device", i.Device),
		slog.String("ip", i.IPAddr),
		slog.String("version", i.Version),
	)
}
