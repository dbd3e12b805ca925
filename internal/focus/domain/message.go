package domain

import "errors"

// MessageType names a UI control protocol request.
type MessageType string

const (
	MsgGetStatus        MessageType = "GET_STATUS"
	MsgUpdateWebsites   MessageType = "UPDATE_WEBSITES"
	MsgUpdateAllowlist  MessageType = "UPDATE_ALLOWLIST"
	MsgGetCurrentTabURL MessageType = "GET_CURRENT_TAB_URL"
)

// ErrUnknownMessage is returned for control messages with an unsupported type.
var ErrUnknownMessage = errors.New("unknown message type")

// ErrNoSenderTab is returned when a tab-scoped message arrives without a tab.
var ErrNoSenderTab = errors.New("message requires a sender tab")

// Message is a request from the popup, settings page or interstitial.
type Message struct {
	Type     MessageType `json:"type"`
	Websites []string    `json:"websites,omitempty"`
}

// Sender identifies where a message came from. TabID is nil for pages that
// are not tabs (the popup).
type Sender struct {
	TabID *TabID `json:"tabId,omitempty"`
}

// StatusResponse answers GET_STATUS.
type StatusResponse struct {
	IsBlocking      bool     `json:"isBlocking"`
	BlockedWebsites []string `json:"blockedWebsites"`
	AllowWebsites   []string `json:"allowWebsites"`
}

// UpdateResponse answers UPDATE_WEBSITES and UPDATE_ALLOWLIST.
type UpdateResponse struct {
	Success bool `json:"success"`
}

// TabURLResponse answers GET_CURRENT_TAB_URL. URL is empty when unknown.
type TabURLResponse struct {
	URL string `json:"url"`
}
