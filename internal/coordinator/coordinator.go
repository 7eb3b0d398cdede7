package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/baccuslab/blds/internal/recording"
	"github.com/baccuslab/blds/internal/session"
	"github.com/baccuslab/blds/internal/source"
	"github.com/baccuslab/blds/internal/wire"
)

// Coordinator is the single mutator of server state, the managed source,
// and the recording sink. Exactly one goroutine ever runs its Run loop;
// every other goroutine talks to it through channels.
type Coordinator struct {
	cfg    Config
	logger *slog.Logger

	state    serverState
	srcState sourceState

	src         source.Source
	srcType     string
	srcLocation string
	srcCancel   context.CancelFunc

	sink         recording.Sink
	sinkIsHidens bool

	clients []*session.Session

	pendingCreate           *session.Session
	pendingStreamStart      *session.Session
	pendingStreamStopClient *session.Session // nil when triggered by recording-finished

	pendingGets []*session.Session
	pendingSets []*session.Session

	sessionEvents chan session.Envelope
	sourceEvents  chan source.Event

	statusRequests       chan statusRequest
	sourceStatusRequests chan sourceStatusRequest

	newSessions chan *session.Session

	// newSource is overridable in tests to avoid depending on real file or
	// simulated-device drivers.
	newSource func(typ, location string, readInterval time.Duration) (source.Source, error)
}

// New builds a Coordinator from cfg. Run must be called to drive it.
func New(cfg Config, logger *slog.Logger) *Coordinator {
	if cfg.SaveFilenameFormat == "" {
		cfg.SaveFilenameFormat = "2006-01-02T15-04-05"
	}
	return &Coordinator{
		cfg:    cfg,
		logger: logger,
		state: serverState{
			saveDirectory:   cfg.DefaultSaveDirectory,
			recordingLength: cfg.DefaultRecordingLength,
			readInterval:    cfg.DefaultReadInterval,
			startTime:       time.Now(),
			sourceStatus:    source.StatusMap{},
		},
		sessionEvents:        make(chan session.Envelope, 256),
		sourceEvents:         make(chan source.Event, 256),
		statusRequests:       make(chan statusRequest),
		sourceStatusRequests: make(chan sourceStatusRequest),
		newSessions:          make(chan *session.Session, 16),
		newSource:            source.New,
	}
}

// AddSession registers sess with the coordinator and starts its read loop.
// Safe to call from the TCP acceptor's goroutine.
func (c *Coordinator) AddSession(ctx context.Context, sess *session.Session) {
	go sess.Run(ctx, c.sessionEvents)
}

// Run drives the coordinator's event loop until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return

		case env := <-c.sessionEvents:
			c.handleSessionEnvelope(env)

		case ev := <-c.sourceEvents:
			c.handleSourceEvent(ev)

		case req := <-c.statusRequests:
			req.resp <- c.snapshotStatus()

		case req := <-c.sourceStatusRequests:
			if c.srcState == stateAbsent || c.srcState == stateCreating {
				req.resp <- sourceStatusResult{exists: false}
			} else {
				req.resp <- sourceStatusResult{status: c.state.sourceStatus.Clone(), exists: true}
			}
		}
	}
}

func (c *Coordinator) shutdown() {
	for _, cl := range c.clients {
		cl.Close()
	}
	c.clients = nil
	if c.sink != nil {
		c.sink.Close()
		c.sink = nil
	}
	if c.srcCancel != nil {
		c.srcCancel()
	}
	if c.src != nil {
		c.src.Close()
		c.src = nil
	}
}

func (c *Coordinator) handleSessionEnvelope(env session.Envelope) {
	sess := env.Session
	switch ev := env.Event.(type) {
	case session.Connected:
		c.clients = append(c.clients, sess)
		c.logger.Info("client connected", "remote", sess.RemoteAddr())

	case session.Closed:
		c.removeClient(sess)

	case session.ProtocolFault:
		sess.SendError(ev.Msg)

	case session.CreateSource:
		c.handleCreateSource(sess, ev)

	case session.DeleteSource:
		c.handleDeleteSource(sess)

	case session.SetServerParam:
		c.handleSetServerParam(sess, ev)

	case session.GetServerParam:
		c.handleGetServerParam(sess, ev)

	case session.SetSourceParam:
		c.handleSetSourceParam(sess, ev)

	case session.GetSourceParam:
		c.handleGetSourceParam(sess, ev)

	case session.StartRecording:
		c.handleStartRecording(sess)

	case session.StopRecording:
		c.handleStopRecording(sess)

	case session.GetData:
		c.handleGetData(sess, ev)

	case session.GetAllData:
		c.handleGetAllData(sess, ev)
	}
}

func (c *Coordinator) removeClient(sess *session.Session) {
	for i, cl := range c.clients {
		if cl == sess {
			c.clients = append(c.clients[:i], c.clients[i+1:]...)
			break
		}
	}
	c.logger.Info("client disconnected", "remote", sess.RemoteAddr())
}

// handleCreateSource creates and initializes the managed data source.
func (c *Coordinator) handleCreateSource(sess *session.Session, ev session.CreateSource) {
	if c.srcState != stateAbsent {
		sess.SendSourceCreateResponse(false, "Cannot create data source while another exists.")
		return
	}

	typ, location, err := splitSourceLocation(ev.Location)
	if err != nil {
		sess.SendSourceCreateResponse(false, err.Error())
		return
	}

	interval := time.Duration(c.state.readInterval) * time.Millisecond
	src, err := c.newSource(typ, location, interval)
	if err != nil {
		sess.SendSourceCreateResponse(false, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.src = src
	c.srcType = typ
	c.srcLocation = location
	c.srcCancel = cancel
	c.srcState = stateCreating
	c.pendingCreate = sess

	go src.Run(ctx)
	c.relaySourceEvents(ctx, src)
	src.RequestInit()
}

// splitSourceLocation parses the "type\nlocation" body of create-source
// into its source-type and location parts, or just a type when it has no
// location suffix.
func splitSourceLocation(body string) (typ, location string, err error) {
	for i := 0; i < len(body); i++ {
		if body[i] == '\n' {
			return body[:i], body[i+1:], nil
		}
	}
	return body, "", nil
}

func (c *Coordinator) relaySourceEvents(ctx context.Context, src source.Source) {
	evCh := src.Events()
	go func() {
		for {
			select {
			case ev, ok := <-evCh:
				if !ok {
					return
				}
				select {
				case c.sourceEvents <- ev:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (c *Coordinator) handleDeleteSource(sess *session.Session) {
	if c.sink != nil {
		sess.SendSourceDeleteResponse(false, "Cannot delete data source while a recording exists. Stop it first.")
		return
	}
	if c.srcState == stateAbsent {
		sess.SendSourceDeleteResponse(false, "No data source exists.")
		return
	}
	c.teardownSource()
	sess.SendSourceDeleteResponse(true, "")
}

func (c *Coordinator) teardownSource() {
	if c.srcCancel != nil {
		c.srcCancel()
		c.srcCancel = nil
	}
	if c.src != nil {
		c.src.Close()
		c.src = nil
	}
	c.srcType = ""
	c.srcLocation = ""
	c.srcState = stateAbsent
	c.state.sourceStatus = source.StatusMap{}
}

func (c *Coordinator) handleStartRecording(sess *session.Session) {
	if c.srcState != stateReady {
		sess.SendStartRecordingResponse(false, "Source must be ready and not already recording.")
		return
	}
	if c.sink != nil {
		sess.SendStartRecordingResponse(false, "A recording already exists.")
		return
	}

	sampleRate := c.statusFloat(source.KeySampleRate)
	nchannels := int(c.statusInt(source.KeyNChannels))
	isHidens := c.srcType == "hidens"

	path, err := c.recordingPath()
	if err != nil {
		sess.SendStartRecordingResponse(false, err.Error())
		return
	}

	sink, err := recording.CreateSQLiteSink(path, sampleRate, nchannels, isHidens)
	if err != nil {
		sess.SendStartRecordingResponse(false, err.Error())
		return
	}

	c.seedSinkMetadata(sink, isHidens)

	c.sink = sink
	c.sinkIsHidens = isHidens
	c.pendingStreamStart = sess
	c.src.RequestStartStream()
}

// seedSinkMetadata writes the header fields a new recording should carry
// from the cached source status: gain, offset, the creation date, and
// whichever of configuration/analog-output-size applies to the device
// type. Failures are logged, not fatal — a recording missing a header
// field is still a usable recording.
func (c *Coordinator) seedSinkMetadata(sink recording.Sink, isHidens bool) {
	if err := sink.SetGain(float32(c.statusFloat(source.KeyGain))); err != nil {
		c.logger.Warn("failed to set recording gain", "error", err)
	}
	if err := sink.SetOffset(float32(c.statusFloat(source.KeyAdcRange))); err != nil {
		c.logger.Warn("failed to set recording offset", "error", err)
	}
	if err := sink.SetDate(time.Now()); err != nil {
		c.logger.Warn("failed to set recording date", "error", err)
	}

	if isHidens {
		if err := sink.SetConfiguration(c.statusBytes(source.KeyConfiguration)); err != nil {
			c.logger.Warn("failed to set recording configuration", "error", err)
		}
		return
	}
	if c.statusBool(source.KeyHasAnalogOutput) {
		if err := sink.SetAnalogOutputSize(c.statusSeqLen(source.KeyAnalogOutput)); err != nil {
			c.logger.Warn("failed to set recording analog-output-size", "error", err)
		}
	}
}

func (c *Coordinator) recordingPath() (string, error) {
	if c.state.saveDirectory == "" {
		return "", IOError{Msg: "no save-directory configured"}
	}
	name := c.state.saveFile
	if name == "" {
		name = recording.DefaultFilename(time.Now(), c.cfg.SaveFilenameFormat)
	} else {
		name = recording.WithExtension(name)
	}
	path := filepath.Join(c.state.saveDirectory, name)
	if _, err := os.Stat(path); err == nil {
		return "", recording.ErrPathExists{Path: path}
	}
	return path, nil
}

func (c *Coordinator) handleStopRecording(sess *session.Session) {
	if c.srcState != stateStreaming {
		sess.SendStopRecordingResponse(false, "No recording is active.")
		return
	}
	c.pendingStreamStopClient = sess
	c.src.RequestStopStream()
}

// recordingFinished is triggered internally (not by a client) when the
// sink's length reaches recording-length. The sink is torn down
// synchronously, before stop-stream is even requested, so any
// SamplesAvailable batches already in flight behind the stop-stream
// request find handleSamples's sink-nil guard and are dropped instead of
// being appended and broadcast past recording-length.
func (c *Coordinator) recordingFinished() {
	c.pendingStreamStopClient = nil
	c.discardSink()
	c.src.RequestStopStream()
}

func (c *Coordinator) handleSetServerParam(sess *session.Session, ev session.SetServerParam) {
	msg, err := c.setServerParam(ev.Param, ev.Raw)
	if err != nil {
		sess.SendServerSetResponse(ev.Param, false, err.Error())
		return
	}
	sess.SendServerSetResponse(ev.Param, true, msg)
}

func (c *Coordinator) handleGetServerParam(sess *session.Session, ev session.GetServerParam) {
	data, err := c.getServerParam(ev.Param)
	if err != nil {
		sess.SendServerGetResponse(ev.Param, false, nil, err.Error())
		return
	}
	sess.SendServerGetResponse(ev.Param, true, data, "")
}

func (c *Coordinator) handleSetSourceParam(sess *session.Session, ev session.SetSourceParam) {
	if c.srcState != stateReady {
		sess.SendSourceSetResponse(ev.Param, false, "Source parameters may only be set while the source is ready.")
		return
	}
	v := source.BytesValue(ev.Raw)
	c.pendingSets = append(c.pendingSets, sess)
	c.src.RequestSet(ev.Param, v)
}

func (c *Coordinator) handleGetSourceParam(sess *session.Session, ev session.GetSourceParam) {
	if c.src == nil {
		sess.SendSourceGetResponse(ev.Param, false, nil, "No data source exists.")
		return
	}
	c.pendingGets = append(c.pendingGets, sess)
	c.src.RequestGet(ev.Param)
}

func (c *Coordinator) handleGetData(sess *session.Session, ev session.GetData) {
	if c.sink == nil {
		sess.SendError("No recording exists to read from.")
		return
	}
	if err := verifyChunkRequest(ev.Start, ev.Stop, c.sink.SampleRate(), c.cfg.MaxChunkSize, c.state.recordingLength); err != nil {
		sess.SendError(err.Error())
		return
	}

	endSample := uint64(float64(ev.Stop) * c.sink.SampleRate())
	if endSample <= c.sink.NSamples() {
		c.readAndSend(sess, ev.Start, ev.Stop)
		return
	}
	sess.AddPendingRequest(session.PendingRequest{Start: ev.Start, Stop: ev.Stop})
}

// verifyChunkRequest enforces start ≥ 0, stop > start + 1/sampleRate,
// stop − start ≤ maxChunkSize, stop ≤ recordingLength.
func verifyChunkRequest(start, stop float32, sampleRate, maxChunkSize float64, recordingLength uint32) error {
	if start < 0 {
		return ValidationError{Msg: "start must be non-negative"}
	}
	if float64(stop) <= float64(start)+1/sampleRate {
		return ValidationError{Msg: fmt.Sprintf("stop must exceed start by at least one sample period (%.6fs)", 1/sampleRate)}
	}
	if float64(stop-start) > maxChunkSize {
		return ValidationError{Msg: fmt.Sprintf("requested range exceeds max-chunk-size (%.3fs)", maxChunkSize)}
	}
	if float64(stop) > float64(recordingLength) {
		return ValidationError{Msg: fmt.Sprintf("stop exceeds recording-length (%ds)", recordingLength)}
	}
	return nil
}

func (c *Coordinator) readAndSend(sess *session.Session, start, stop float32) {
	startSample := uint64(float64(start) * c.sink.SampleRate())
	endSample := uint64(float64(stop) * c.sink.SampleRate())
	m, err := c.sink.Read(startSample, endSample)
	if err != nil {
		sess.SendError(fmt.Sprintf("failed to read recording: %v", err))
		return
	}
	sess.SendDataFrame(wire.DataFrame{Start: start, Stop: stop, Samples: m})
}

func (c *Coordinator) handleGetAllData(sess *session.Session, ev session.GetAllData) {
	if ev.Requested && c.sink != nil {
		sess.SendAllDataResponse(false, "Cannot subscribe to all-data while a recording exists.")
		return
	}
	sess.SetAllData(ev.Requested)
	sess.SendAllDataResponse(true, "")
}

func (c *Coordinator) statusFloat(key string) float64 {
	if v, ok := c.state.sourceStatus[key]; ok {
		return v.Float
	}
	return 0
}

func (c *Coordinator) statusInt(key string) int64 {
	if v, ok := c.state.sourceStatus[key]; ok {
		return v.Int
	}
	return 0
}

func (c *Coordinator) statusBool(key string) bool {
	if v, ok := c.state.sourceStatus[key]; ok {
		return v.Bool
	}
	return false
}

func (c *Coordinator) statusBytes(key string) []byte {
	if v, ok := c.state.sourceStatus[key]; ok {
		return v.Bytes
	}
	return nil
}

func (c *Coordinator) statusSeqLen(key string) int {
	if v, ok := c.state.sourceStatus[key]; ok {
		return len(v.Seq)
	}
	return 0
}
