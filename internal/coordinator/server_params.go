package coordinator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/baccuslab/blds/internal/wire"
)

// setServerParam applies a set-server-param request to the cached server
// state.
func (c *Coordinator) setServerParam(param string, raw []byte) (string, error) {
	if c.sink != nil {
		return "", StateError{Msg: "Cannot set server parameters while a recording is active. Stop it first."}
	}

	switch param {
	case "save-file":
		name := string(raw)
		path := filepath.Join(c.state.saveDirectory, recordingNameOrDefault(name))
		if _, err := os.Stat(path); err == nil {
			return "", IOError{Msg: fmt.Sprintf("path already exists: %s", path)}
		}
		c.state.saveFile = name
		return "", nil

	case "save-directory":
		dir := string(raw)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return "", IOError{Msg: fmt.Sprintf("directory does not exist: %s", dir)}
		}
		c.state.saveDirectory = dir
		return "", nil

	case "recording-length":
		v, _, err := wire.GetUint32(raw)
		if err != nil {
			return "", ProtocolError{Msg: fmt.Sprintf("recording-length: %v", err)}
		}
		c.state.recordingLength = v
		return "", nil

	case "read-interval":
		v, _, err := wire.GetUint32(raw)
		if err != nil {
			return "", ProtocolError{Msg: fmt.Sprintf("read-interval: %v", err)}
		}
		c.state.readInterval = v
		return "", nil

	default:
		return "", ProtocolError{Msg: fmt.Sprintf("unknown server parameter %q", param)}
	}
}

func recordingNameOrDefault(name string) string {
	if name == "" {
		return "placeholder"
	}
	return name
}

// getServerParam returns the already wire-encoded value for param.
func (c *Coordinator) getServerParam(param string) ([]byte, error) {
	switch param {
	case "save-file":
		return []byte(c.state.saveFile), nil
	case "save-directory":
		return []byte(c.state.saveDirectory), nil
	case "recording-length":
		return wire.PutUint32(nil, c.state.recordingLength), nil
	case "read-interval":
		return wire.PutUint32(nil, c.state.readInterval), nil
	case "recording-exists":
		return wire.PutBool(nil, c.sink != nil), nil
	case "recording-position":
		pos := float32(0)
		if c.sink != nil {
			pos = float32(c.sink.Length())
		}
		return wire.PutFloat32(nil, pos), nil
	case "source-exists":
		return wire.PutBool(nil, c.srcState != stateAbsent), nil
	case "source-type":
		return []byte(c.srcType), nil
	case "start-time":
		return []byte(c.state.startTime.Format("2006-01-02T15:04:05Z07:00")), nil
	case "source-location":
		return []byte(c.srcLocation), nil
	default:
		return nil, ProtocolError{Msg: fmt.Sprintf("unknown server parameter %q", param)}
	}
}
