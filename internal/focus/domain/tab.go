package domain

// TabID identifies a browser tab for the lifetime of the browser session.
type TabID int

// Tab is a snapshot of an open browser tab.
type Tab struct {
	ID  TabID  `json:"id"`
	URL string `json:"url"`
}

// NavigationEvent is a navigation about to commit in some frame of a tab.
type NavigationEvent struct {
	TabID   TabID  `json:"tabId"`
	FrameID int    `json:"frameId"`
	URL     string `json:"url"`
}

// TopLevel reports whether the event concerns the tab's main frame.
func (e NavigationEvent) TopLevel() bool { return e.FrameID == 0 }
