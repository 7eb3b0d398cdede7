package source

import (
	"fmt"
	"time"
)

// New builds the Source implementation for sourceType, pointed at location.
// readInterval governs how often the source is polled for new samples while
// streaming. It is the coordinator's sole entry point for source
// construction; adding a new source type means adding one case here.
func New(sourceType, location string, readInterval time.Duration) (Source, error) {
	switch sourceType {
	case "file":
		return NewFileSource(location, readInterval), nil
	case "hidens", "mcs":
		return NewSimulatedSource(sourceType, location, readInterval)
	default:
		return nil, fmt.Errorf("unknown source type %q", sourceType)
	}
}
