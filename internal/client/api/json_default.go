//go:build !sonic

package api

import "github.com/goccy/go-json"

var (
	jsonMarshal   = json.Marshal
	jsonUnmarshal = json.Unmarshal
)
