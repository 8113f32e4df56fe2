package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/amoylab/mdprovider/pkg/omm"

	"github.com/tidwall/gjson"
)

// Frame types that never reach the dispatcher
const (
	framePing  = "ping"
	framePong  = "pong"
	frameError = "error"
)

var (
	errMissingID   = errors.New("frame without id")
	errMissingType = errors.New("frame without type")
)

// inFrame is a consumer request or close. Refresh and Streaming default to true.
type inFrame struct {
	ID        omm.Token     `json:"id"`
	Type      string        `json:"type"`
	Domain    string        `json:"domain"`
	Key       *omm.Attrib   `json:"key"`
	Refresh   *bool         `json:"refresh"`
	Streaming *bool         `json:"streaming"`
	Pause     bool          `json:"pause"`
	Priority  *omm.Priority `json:"priority"`
}

type wireState struct {
	Stream string `json:"stream"`
	Data   string `json:"data"`
	Code   string `json:"code,omitempty"`
	Text   string `json:"text,omitempty"`
}

// outFrame is what the provider writes for every omm.Msg.
type outFrame struct {
	ID         omm.Token    `json:"id"`
	Type       string       `json:"type"`
	Domain     string       `json:"domain,omitempty"`
	Key        *omm.Attrib  `json:"key,omitempty"`
	State      *wireState   `json:"state,omitempty"`
	Solicited  bool         `json:"solicited,omitempty"`
	Complete   bool         `json:"complete,omitempty"`
	ClearCache bool         `json:"clearCache,omitempty"`
	SeqNumber  uint32       `json:"seqNumber,omitempty"`
	Payload    *wirePayload `json:"payload,omitempty"`
}

type wirePayload struct {
	Kind     omm.PayloadKind  `json:"kind"`
	Fields   []omm.FieldEntry `json:"fields,omitempty"`
	Elements omm.ElementList  `json:"elements,omitempty"`
	Summary  *wirePayload     `json:"summary,omitempty"`
	Entries  []wireEntry      `json:"entries,omitempty"`
}

type wireEntry struct {
	ID       uint32          `json:"id,omitempty"`
	Action   string          `json:"action,omitempty"`
	Key      any             `json:"key,omitempty"`
	Value    *wirePayload    `json:"value,omitempty"`
	Elements omm.ElementList `json:"elements,omitempty"`
}

// controlFrame answers pings and reports frames that could not be decoded.
type controlFrame struct {
	ID   omm.Token `json:"id,omitempty"`
	Type string    `json:"type"`
	Text string    `json:"text,omitempty"`
}

// splitFrames returns the frames of one websocket message, which is either a
// single JSON object or an array of them.
func splitFrames(data []byte) ([]gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if root.IsArray() {
		return root.Array(), nil
	}
	if !root.IsObject() {
		return nil, errors.New("frame is not an object")
	}
	return []gjson.Result{root}, nil
}

// frameType peeks at the type of one frame without decoding it.
func frameType(frame gjson.Result) string {
	return frame.Get("type").String()
}

// decodeRequest turns a request or close frame into an omm.Msg.
func decodeRequest(frame gjson.Result) (omm.Token, *omm.Msg, error) {
	if !frame.Get("id").Exists() {
		return 0, nil, errMissingID
	}
	var in inFrame
	if err := json.Unmarshal([]byte(frame.Raw), &in); err != nil {
		return 0, nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	if in.Type == "" {
		return in.ID, nil, errMissingType
	}

	msgType, err := omm.ParseMsgType(in.Type)
	if err != nil {
		return in.ID, nil, err
	}
	if msgType != omm.MsgTypeRequest && msgType != omm.MsgTypeCloseReq {
		return in.ID, nil, fmt.Errorf("consumers may not send %s frames", msgType)
	}

	model := omm.ModelMarketPrice
	if in.Domain != "" {
		if model, err = omm.ParseModelType(in.Domain); err != nil {
			return in.ID, nil, err
		}
	}

	msg := &omm.Msg{Type: msgType, ModelType: model, Attrib: in.Key, Priority: in.Priority}
	if msgType == omm.MsgTypeCloseReq {
		return in.ID, msg, nil
	}
	if msg.Attrib == nil {
		msg.Attrib = &omm.Attrib{}
	}
	if in.Refresh == nil || *in.Refresh {
		msg.Indications |= omm.IndRefresh
	}
	if in.Streaming != nil && !*in.Streaming {
		msg.Indications |= omm.IndNonStreaming
	}
	if in.Pause {
		msg.Indications |= omm.IndPause
	}
	return in.ID, msg, nil
}

// encodeMsg renders msg for the consumer on token.
func encodeMsg(token omm.Token, msg *omm.Msg) ([]byte, error) {
	out := outFrame{
		ID:         token,
		Type:       msg.Type.String(),
		Domain:     msg.ModelType.String(),
		Key:        msg.Attrib,
		Solicited:  msg.Solicited,
		Complete:   msg.Has(omm.IndRefreshComplete),
		ClearCache: msg.Has(omm.IndClearCache),
		SeqNumber:  msg.SeqNum,
		Payload:    encodePayload(msg.Payload),
	}
	if msg.Type == omm.MsgTypeRefreshResp || msg.Type == omm.MsgTypeStatusResp {
		out.State = &wireState{
			Stream: msg.StreamState.String(),
			Data:   msg.DataState.String(),
			Text:   msg.StatusText,
		}
		if msg.StatusCode != omm.StatusNone {
			out.State.Code = msg.StatusCode.String()
		}
	}
	return json.Marshal(&out)
}

func encodePayload(p omm.Payload) *wirePayload {
	if p == nil {
		return nil
	}
	w := &wirePayload{Kind: p.Kind()}
	switch v := p.(type) {
	case *omm.FieldList:
		w.Fields = v.Entries
	case omm.ElementList:
		w.Elements = v
	case *omm.Map:
		w.Summary = encodePayload(v.Summary)
		for _, e := range v.Entries {
			w.Entries = append(w.Entries, wireEntry{Action: e.Action, Key: e.Key, Value: encodePayload(e.Value)})
		}
	case *omm.Series:
		if v.Summary != nil {
			w.Summary = encodePayload(v.Summary)
		}
		for _, e := range v.Entries {
			w.Entries = append(w.Entries, wireEntry{Value: encodePayload(e)})
		}
	case *omm.FilterList:
		for _, e := range v.Entries {
			w.Entries = append(w.Entries, wireEntry{ID: e.ID, Action: e.Action, Elements: e.Data})
		}
	}
	return w
}

func encodeControl(token omm.Token, typ, text string) []byte {
	data, _ := json.Marshal(&controlFrame{ID: token, Type: typ, Text: text})
	return data
}
