package bridge

import (
	"encoding/json"

	"github.com/haukened/focusgate/internal/focus/domain"
)

// Envelope kinds.
const (
	KindRequest         = "request"
	KindResponse        = "response"
	KindEvent           = "event"
	KindControl         = "control"
	KindControlResponse = "control-response"
)

// Methods the daemon calls on the extension.
const (
	MethodUpdateDynamicRules = "updateDynamicRules"
	MethodQueryTabs          = "queryTabs"
	MethodGetTab             = "getTab"
	MethodUpdateTab          = "updateTab"
)

// Events the extension reports.
const (
	EventBeforeNavigate = "beforeNavigate"
	EventTabActivated   = "tabActivated"
	EventTabUpdated     = "tabUpdated"
)

// Envelope is the single JSON frame exchanged in both directions.
type Envelope struct {
	Kind    string          `json:"kind"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
	Event   string          `json:"event,omitempty"`
	TabID   *domain.TabID   `json:"tabId,omitempty"`
	FrameID int             `json:"frameId,omitempty"`
	URL     string          `json:"url,omitempty"`
	Message *domain.Message `json:"message,omitempty"`
}

type updateRulesParams struct {
	RemoveRuleIDs []int         `json:"removeRuleIds"`
	AddRules      []domain.Rule `json:"addRules"`
}

type tabParams struct {
	TabID domain.TabID `json:"tabId"`
	URL   string       `json:"url,omitempty"`
}
