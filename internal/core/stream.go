package core

import "github.com/amoylab/mdprovider/pkg/omm"

// StreamItem is the server side record of one open request.
type StreamItem interface {
	ModelType() omm.MsgModelType
	Close()
}

// Stream is the general purpose StreamItem: one request stream of one session,
// with the attributes a re-request may change.
type Stream struct {
	model    omm.MsgModelType
	session  *ClientSession
	token    omm.Token
	attrib   *omm.Attrib
	priority omm.Priority
	paused   bool
	closed   bool
	onClose  []func(*Stream)
}

var _ StreamItem = (*Stream)(nil)

// NewStream builds a stream from the request that opened it.
func NewStream(session *ClientSession, token omm.Token, req *omm.Msg) *Stream {
	s := &Stream{
		model:   req.ModelType,
		session: session,
		token:   token,
		attrib:  req.Attrib.Clone(),
		paused:  req.Has(omm.IndPause),
	}
	if s.attrib == nil {
		s.attrib = &omm.Attrib{}
	}
	if req.Priority != nil {
		s.priority = *req.Priority
	} else {
		s.priority = omm.Priority{Class: 1, Count: 1}
	}
	return s
}

func (s *Stream) ModelType() omm.MsgModelType { return s.model }
func (s *Stream) Session() *ClientSession { return s.session }
func (s *Stream) Token() omm.Token { return s.token }
func (s *Stream) Name() string { return s.attrib.Name }
func (s *Stream) Filter() uint32 { return s.attrib.Filter }
func (s *Stream) Attrib() *omm.Attrib { return s.attrib }
func (s *Stream) Priority() omm.Priority { return s.priority }
func (s *Stream) Paused() bool { return s.paused }
func (s *Stream) Closed() bool { return s.closed }

// ServiceName returns the service the stream was opened on, if the request named one.
func (s *Stream) ServiceName() (string, bool) {
	if s.attrib.ServiceName == "" {
		return "", false
	}
	return s.attrib.ServiceName, true
}

// ApplyReRequest updates priority and pause state in place. It reports whether
// the stream was resumed by this re-request.
func (s *Stream) ApplyReRequest(req *omm.Msg) (resumed bool) {
	if req.Priority != nil {
		s.priority = *req.Priority
	}
	wasPaused := s.paused
	s.paused = req.Has(omm.IndPause)
	if req.Attrib != nil && req.Attrib.Filter != 0 {
		s.attrib.Filter = req.Attrib.Filter
	}
	return wasPaused && !s.paused
}

// OnClose registers fn to run once when the stream is closed.
func (s *Stream) OnClose(fn func(*Stream)) {
	s.onClose = append(s.onClose, fn)
}

// Close is idempotent.
func (s *Stream) Close() {
	if s.closed {
		return
	}
	s.closed = true
	for _, fn := range s.onClose {
		fn(s)
	}
	s.onClose = nil
}
