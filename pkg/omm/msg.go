package omm

// Priority of a streaming request. Consumers may raise or lower it on re-request.
type Priority struct {
	Class uint8  `json:"class"`
	Count uint16 `json:"count"`
}

// Attrib identifies what a request asks for and carries domain specific attributes.
type Attrib struct {
	Name        string      `json:"name,omitempty"`
	NameType    uint8       `json:"nameType,omitempty"`
	ServiceName string      `json:"service,omitempty"`
	ServiceID   uint16      `json:"serviceId,omitempty"`
	Filter      uint32      `json:"filter,omitempty"`
	Elements    ElementList `json:"attrib,omitempty"`
}

// Clone returns a deep copy of the attrib.
func (a *Attrib) Clone() *Attrib {
	if a == nil {
		return nil
	}
	c := *a
	c.Elements = a.Elements.Clone()
	return &c
}

// Msg is the unit exchanged on a stream. Requests and responses share the shape; the wire
// encoding is the transport's business.
type Msg struct {
	Type        MsgType
	ModelType   MsgModelType
	Indications Indication
	Solicited   bool
	StreamState StreamState
	DataState   DataState
	StatusCode  StatusCode
	StatusText  string
	Attrib      *Attrib
	Priority    *Priority
	Payload     Payload
	SeqNum      uint32
}

// Has reports whether all bits of flag are set on the message.
func (m *Msg) Has(flag Indication) bool {
	return m.Indications.Has(flag)
}

// Name returns the attrib name, or "" when the message has no attrib.
func (m *Msg) Name() string {
	if m.Attrib == nil {
		return ""
	}
	return m.Attrib.Name
}

// ServiceName returns the attrib service name, or "".
func (m *Msg) ServiceName() string {
	if m.Attrib == nil {
		return ""
	}
	return m.Attrib.ServiceName
}

// Filter returns the attrib filter, or 0.
func (m *Msg) Filter() uint32 {
	if m.Attrib == nil {
		return 0
	}
	return m.Attrib.Filter
}

// IsFinal reports whether no further message will follow on the stream after m.
func (m *Msg) IsFinal() bool {
	switch m.Type {
	case MsgTypeCloseReq:
		return true
	case MsgTypeStatusResp:
		return m.StreamState == StreamClosed || m.StreamState == StreamClosedRecover ||
			m.StreamState == StreamNonStreaming
	case MsgTypeRefreshResp:
		switch m.StreamState {
		case StreamClosed, StreamClosedRecover:
			return true
		case StreamNonStreaming:
			return m.Has(IndRefreshComplete)
		}
	}
	return false
}

// NewStatus builds a status response.
func NewStatus(model MsgModelType, stream StreamState, data DataState, code StatusCode, text string) *Msg {
	return &Msg{
		Type:        MsgTypeStatusResp,
		ModelType:   model,
		StreamState: stream,
		DataState:   data,
		StatusCode:  code,
		StatusText:  text,
	}
}

// NewRefresh builds a complete OPEN/OK refresh. Callers adjust the fields for fragments or
// snapshots.
func NewRefresh(model MsgModelType, solicited bool) *Msg {
	return &Msg{
		Type:        MsgTypeRefreshResp,
		ModelType:   model,
		Indications: IndRefreshComplete,
		Solicited:   solicited,
		StreamState: StreamOpen,
		DataState:   DataOk,
	}
}

// NewUpdate builds an update response.
func NewUpdate(model MsgModelType, payload Payload) *Msg {
	return &Msg{
		Type:      MsgTypeUpdateResp,
		ModelType: model,
		Payload:   payload,
	}
}

// NewCloseRequest builds a close for the given domain.
func NewCloseRequest(model MsgModelType) *Msg {
	return &Msg{
		Type:      MsgTypeCloseReq,
		ModelType: model,
	}
}
