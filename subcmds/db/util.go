// Copyright (c) 2025 BVK Chaitanya

package db

import (
	"fmt"

	"github.com/bvk/snipebot/gobs"
)

func TypeNameValue(typename string) (any, error) {
	var v any
	switch typename {
	case "PositionState":
		v = new(gobs.PositionState)
	case "ScannerState":
		v = new(gobs.ScannerState)
	case "TelegramState":
		v = new(gobs.TelegramState)
	default:
		return nil, fmt.Errorf("unsupported type name %q", typename)
	}
	return v, nil
}
