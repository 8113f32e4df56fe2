package omm

import (
	"fmt"
	"strings"
)

// MsgModelType classifies a request by domain.
type MsgModelType uint8

const (
	ModelLogin         MsgModelType = 1
	ModelSource        MsgModelType = 4
	ModelDictionary    MsgModelType = 5
	ModelMarketPrice   MsgModelType = 6
	ModelMarketByOrder MsgModelType = 7
	ModelMarketByPrice MsgModelType = 8
	ModelMarketMaker   MsgModelType = 9
	ModelSymbolList    MsgModelType = 10

	// ModelCustomBase is the first model type available for custom domains
	ModelCustomBase MsgModelType = 128
)

// ModelDirectory is the common name for the source directory domain
const ModelDirectory = ModelSource

var modelTypeNames = map[MsgModelType]string{
	ModelLogin:         "Login",
	ModelSource:        "Source",
	ModelDictionary:    "Dictionary",
	ModelMarketPrice:   "MarketPrice",
	ModelMarketByOrder: "MarketByOrder",
	ModelMarketByPrice: "MarketByPrice",
	ModelMarketMaker:   "MarketMaker",
	ModelSymbolList:    "SymbolList",
}

func (t MsgModelType) String() string {
	if name, ok := modelTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Domain(%d)", uint8(t))
}

// ParseModelType accepts either a domain name (case-insensitive) or its number.
func ParseModelType(s string) (MsgModelType, error) {
	for t, name := range modelTypeNames {
		if strings.EqualFold(name, s) {
			return t, nil
		}
	}
	if strings.EqualFold(s, "Directory") {
		return ModelDirectory, nil
	}
	var n uint8
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, fmt.Errorf("unknown message model type %q", s)
	}
	return MsgModelType(n), nil
}

// MsgType is the kind of message carried on a stream.
type MsgType uint8

const (
	MsgTypeRequest MsgType = iota + 1
	MsgTypeCloseReq
	MsgTypeRefreshResp
	MsgTypeUpdateResp
	MsgTypeStatusResp
	MsgTypeGeneric
)

var msgTypeNames = map[MsgType]string{
	MsgTypeRequest:     "request",
	MsgTypeCloseReq:    "close",
	MsgTypeRefreshResp: "refresh",
	MsgTypeUpdateResp:  "update",
	MsgTypeStatusResp:  "status",
	MsgTypeGeneric:     "generic",
}

func (t MsgType) String() string {
	if name, ok := msgTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("MsgType(%d)", uint8(t))
}

// ParseMsgType is the inverse of MsgType.String.
func ParseMsgType(s string) (MsgType, error) {
	for t, name := range msgTypeNames {
		if strings.EqualFold(name, s) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown message type %q", s)
}

// StreamState describes the life of a stream after a response.
type StreamState uint8

const (
	StreamUnspecified StreamState = iota
	StreamOpen
	StreamNonStreaming
	StreamClosedRecover
	StreamClosed
)

func (s StreamState) String() string {
	switch s {
	case StreamOpen:
		return "Open"
	case StreamNonStreaming:
		return "NonStreaming"
	case StreamClosedRecover:
		return "ClosedRecover"
	case StreamClosed:
		return "Closed"
	default:
		return "Unspecified"
	}
}

// DataState describes the quality of the data on a stream.
type DataState uint8

const (
	DataNoChange DataState = iota
	DataOk
	DataSuspect
)

func (s DataState) String() string {
	switch s {
	case DataOk:
		return "Ok"
	case DataSuspect:
		return "Suspect"
	default:
		return "NoChange"
	}
}

// StatusCode qualifies a status.
type StatusCode uint8

const (
	StatusNone StatusCode = iota
	StatusNotFound
	StatusTimeout
	StatusNotAuthorized
	StatusInvalidArgument
	StatusUsageError
	StatusPreempted
	StatusNotOpen
	StatusTooManyItems
	StatusAlreadyOpen
	StatusNoResources
)

var statusCodeNames = map[StatusCode]string{
	StatusNone:            "None",
	StatusNotFound:        "NotFound",
	StatusTimeout:         "Timeout",
	StatusNotAuthorized:   "NotAuthorized",
	StatusInvalidArgument: "InvalidArgument",
	StatusUsageError:      "UsageError",
	StatusPreempted:       "Preempted",
	StatusNotOpen:         "NotOpen",
	StatusTooManyItems:    "TooManyItems",
	StatusAlreadyOpen:     "AlreadyOpen",
	StatusNoResources:     "NoResources",
}

func (c StatusCode) String() string {
	if name, ok := statusCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("StatusCode(%d)", uint8(c))
}

// Indication is a bit set of request/response flags.
type Indication uint16

const (
	// IndRefresh asks for a refresh payload now
	IndRefresh Indication = 1 << iota
	// IndNonStreaming marks a snapshot request
	IndNonStreaming
	// IndRefreshComplete marks the last refresh fragment
	IndRefreshComplete
	// IndPause pauses updates on an open stream
	IndPause
	// IndClearCache tells the consumer to drop cached data before applying
	IndClearCache
)

func (i Indication) Has(flag Indication) bool { return i&flag == flag }

var indicationNames = []struct {
	flag Indication
	name string
}{
	{IndRefresh, "refresh"},
	{IndNonStreaming, "nonstreaming"},
	{IndRefreshComplete, "refresh_complete"},
	{IndPause, "pause"},
	{IndClearCache, "clear_cache"},
}

// Names lists the flags set in i.
func (i Indication) Names() []string {
	var names []string
	for _, n := range indicationNames {
		if i.Has(n.flag) {
			names = append(names, n.name)
		}
	}
	return names
}

// ParseIndications builds an Indication from flag names. Unknown names are an error.
func ParseIndications(names []string) (Indication, error) {
	var ind Indication
	for _, s := range names {
		found := false
		for _, n := range indicationNames {
			if strings.EqualFold(n.name, s) {
				ind |= n.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown indication %q", s)
		}
	}
	return ind, nil
}

// Token correlates every message of one request stream. Tokens are issued by the transport.
type Token uint64

// Handle identifies a client connection, a listener or a timer registration.
type Handle string

// NilHandle is never issued by a transport.
const NilHandle Handle = ""
