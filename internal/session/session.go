// Package session implements the per-connection protocol adapter: it owns
// one TCP connection, turns incoming frames into typed request events, and
// serializes typed responses back out. A session has no knowledge of the
// source or recording sink it is ultimately talking about; it only knows
// the wire format and its own small slice of per-connection state.
package session

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/baccuslab/blds/internal/wire"
)

// Session owns one client connection.
type Session struct {
	conn       net.Conn
	remoteAddr string
	logger     *slog.Logger

	writeMu sync.Mutex

	// pending, allData are mutated only by the coordinator goroutine that
	// reads this session's events, never by Run's read loop — no lock
	// needed.
	pending []PendingRequest
	allData bool
}

// New wraps conn as a Session. remoteAddr is cached at construction since a
// connection's RemoteAddr becomes unavailable once it is closed.
func New(conn net.Conn, logger *slog.Logger) *Session {
	return &Session{
		conn:       conn,
		remoteAddr: conn.RemoteAddr().String(),
		logger:     logger,
	}
}

// RemoteAddr returns the session's cached peer address.
func (s *Session) RemoteAddr() string { return s.remoteAddr }

// Close closes the underlying connection.
func (s *Session) Close() error { return s.conn.Close() }

// Run reads frames from the connection until ctx is cancelled or the
// connection fails, sending one Envelope per parsed event to out. It emits
// a final Closed event before returning. Run must be called exactly once,
// and the caller is expected to run it in its own goroutine.
func (s *Session) Run(ctx context.Context, out chan<- Envelope) {
	r := bufio.NewReader(s.conn)

	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	out <- Envelope{Session: s, Event: Connected{}}

	for {
		frame, err := wire.ReadFrame(r)
		if errors.Is(err, wire.ErrMalformedFrame) {
			// ReadFrame has already consumed the whole payload, so the
			// stream is still aligned on the next frame.
			out <- Envelope{Session: s, Event: ProtocolFault{Msg: err.Error()}}
			continue
		}
		if err != nil {
			out <- Envelope{Session: s, Event: Closed{Err: err}}
			return
		}

		event, err := decode(frame)
		if err != nil {
			out <- Envelope{Session: s, Event: ProtocolFault{Msg: err.Error()}}
			continue
		}
		out <- Envelope{Session: s, Event: event}
	}
}

func decode(f *wire.Frame) (Event, error) {
	switch f.Type {
	case "create-source":
		return CreateSource{Location: string(f.Body)}, nil

	case "delete-source":
		return DeleteSource{}, nil

	case "set":
		param, raw, err := splitParam(f.Body)
		if err != nil {
			return nil, err
		}
		return SetServerParam{Param: param, Raw: raw}, nil

	case "get":
		param, _, err := splitParam(f.Body)
		if err != nil {
			return nil, err
		}
		return GetServerParam{Param: param}, nil

	case "set-source":
		param, raw, err := splitParam(f.Body)
		if err != nil {
			return nil, err
		}
		return SetSourceParam{Param: param, Raw: raw}, nil

	case "get-source":
		param, _, err := splitParam(f.Body)
		if err != nil {
			return nil, err
		}
		return GetSourceParam{Param: param}, nil

	case "start-recording":
		return StartRecording{}, nil

	case "stop-recording":
		return StopRecording{}, nil

	case "get-data":
		start, rest, err := wire.GetFloat32(f.Body)
		if err != nil {
			return nil, fmt.Errorf("get-data start: %w", err)
		}
		stop, _, err := wire.GetFloat32(rest)
		if err != nil {
			return nil, fmt.Errorf("get-data stop: %w", err)
		}
		return GetData{Start: start, Stop: stop}, nil

	case "get-all-data":
		v, _, err := wire.GetBool(f.Body)
		if err != nil {
			return nil, fmt.Errorf("get-all-data: %w", err)
		}
		return GetAllData{Requested: v}, nil

	default:
		return nil, fmt.Errorf("unknown message type %q", f.Type)
	}
}

func splitParam(body []byte) (param string, rest []byte, err error) {
	i := bytes.IndexByte(body, '\n')
	if i < 0 {
		return "", nil, fmt.Errorf("missing newline after parameter name")
	}
	return string(body[:i]), body[i+1:], nil
}

func (s *Session) write(msgType string, body []byte) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := wire.WriteFrame(s.conn, msgType, body); err != nil {
		s.logger.Warn("write failed", "remote", s.remoteAddr, "type", msgType, "error", err)
	}
}

func encodeSuccessMsg(success bool, msg string) []byte {
	buf := wire.PutBool(nil, success)
	return append(buf, msg...)
}

func (s *Session) SendSourceCreateResponse(success bool, msg string) {
	s.write("source-created", encodeSuccessMsg(success, msg))
}

func (s *Session) SendSourceDeleteResponse(success bool, msg string) {
	s.write("source-deleted", encodeSuccessMsg(success, msg))
}

func (s *Session) SendServerSetResponse(param string, success bool, msg string) {
	buf := wire.PutBool(nil, success)
	buf = append(buf, param...)
	buf = append(buf, '\n')
	buf = append(buf, msg...)
	s.write("set", buf)
}

// SendServerGetResponse sends the response to a server-scope get. data is
// the already-encoded value on success (see the per-key encoding table);
// on failure it is ignored and msg is sent instead.
func (s *Session) SendServerGetResponse(param string, success bool, data []byte, msg string) {
	buf := wire.PutBool(nil, success)
	buf = append(buf, param...)
	buf = append(buf, '\n')
	if success {
		buf = append(buf, data...)
	} else {
		buf = append(buf, msg...)
	}
	s.write("get", buf)
}

func (s *Session) SendSourceSetResponse(param string, success bool, msg string) {
	buf := wire.PutBool(nil, success)
	buf = append(buf, param...)
	buf = append(buf, '\n')
	buf = append(buf, msg...)
	s.write("set-source", buf)
}

func (s *Session) SendSourceGetResponse(param string, success bool, data []byte, msg string) {
	buf := wire.PutBool(nil, success)
	buf = append(buf, param...)
	buf = append(buf, '\n')
	if success {
		buf = append(buf, data...)
	} else {
		buf = append(buf, msg...)
	}
	s.write("get-source", buf)
}

func (s *Session) SendStartRecordingResponse(success bool, msg string) {
	s.write("recording-started", encodeSuccessMsg(success, msg))
}

func (s *Session) SendStopRecordingResponse(success bool, msg string) {
	s.write("recording-stopped", encodeSuccessMsg(success, msg))
}

func (s *Session) SendAllDataResponse(success bool, msg string) {
	s.write("get-all-data", encodeSuccessMsg(success, msg))
}

func (s *Session) SendDataFrame(frame wire.DataFrame) {
	s.write("data", wire.EncodeDataFrame(frame))
}

func (s *Session) SendError(msg string) {
	s.write("error", []byte(msg))
}
