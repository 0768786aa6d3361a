// Package bridge holds the process-wide tab state and routes panel messages
// to their handlers.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind identifies a bridge message.
type Kind string

// Message kinds understood by the bridge.
const (
	KindOpenTab             Kind = "OPEN_TAB"
	KindCloseTab            Kind = "CLOSE_TAB"
	KindOpenDevtools        Kind = "OPEN_DEVTOOLS"
	KindGetPageInfo         Kind = "GET_PAGE_INFO"
	KindGetAvailableModels  Kind = "GET_AVAILABLE_MODELS"
	KindSendToAI            Kind = "SEND_TO_AI"
	KindToggleElementPicker Kind = "TOGGLE_ELEMENT_PICKER"
	KindElementSelected     Kind = "ELEMENT_SELECTED"
	KindPointerMove         Kind = "POINTER_MOVE"
	KindClick               Kind = "CLICK"
	KindResolveSelector     Kind = "RESOLVE_SELECTOR"
)

// PanelPortName is the port name panels connect with. Only ports with this
// name receive pushed selections.
const PanelPortName = "devtools-panel"

// Bridge errors
var (
	ErrUnknownKind = errors.New("unknown message type")
	ErrTabNotFound = errors.New("tab not found")
	ErrBadPayload  = errors.New("invalid message data")
	ErrNoTarget    = errors.New("no target element")
	ErrLocalTarget = errors.New("local pages cannot be opened over the network")
)

// Message is an inbound request. TabID zero addresses the active tab.
type Message struct {
	ID    string          `json:"id,omitempty"`
	Type  Kind            `json:"type"`
	TabID int             `json:"tabId,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the message data into v. Empty data leaves v untouched.
func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadPayload, m.Type, err)
	}
	return nil
}

// NewMessage builds a Message with data marshaled to JSON.
func NewMessage(kind Kind, tabID int, data any) (Message, error) {
	msg := Message{Type: kind, TabID: tabID}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return msg, err
		}
		msg.Data = raw
	}
	return msg, nil
}

// Reply answers a Message, or carries a push when ID is empty.
type Reply struct {
	ID    string `json:"id,omitempty"`
	Type  Kind   `json:"type,omitempty"`
	TabID int    `json:"tabId,omitempty"`
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// NewReply wraps a handler result for msg.
func NewReply(msg Message, data any, err error) Reply {
	r := Reply{ID: msg.ID, Type: msg.Type, TabID: msg.TabID}
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.OK = true
	r.Data = data
	return r
}

// OpenTabData is the OPEN_TAB payload. HTML, when set, is used instead of
// loading URL.
type OpenTabData struct {
	URL  string `json:"url"`
	HTML string `json:"html,omitempty"`
}

// TabInfo describes an open tab.
type TabInfo struct {
	ID    int    `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// PointerData addresses an element for POINTER_MOVE, CLICK and
// RESOLVE_SELECTOR. Path wins over Target when both are set.
type PointerData struct {
	Path   []int  `json:"path,omitempty"`
	Target string `json:"target,omitempty"`
}

// EventResult reports what listeners did with a dispatched event.
type EventResult struct {
	DefaultPrevented   bool `json:"defaultPrevented"`
	PropagationStopped bool `json:"propagationStopped"`
}

// ResolveResult is the RESOLVE_SELECTOR reply.
type ResolveResult struct {
	Selector string `json:"selector"`
	Query    string `json:"query"`
	Kind     string `json:"kind"`
	Strategy string `json:"strategy"`
	Unique   bool   `json:"unique"`
}
