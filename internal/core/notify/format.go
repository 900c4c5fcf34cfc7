package notify

import (
	"fmt"
	"html"
)

// Action IDs understood by the flows.
const (
	ActionMoreInfo = "moreinfo"
	ActionSuppress = "suppress"
)

const (
	labelMoreInfo = "More information"
	labelSuppress = "Don't show again"
	seeURLFormat  = "See %s for more information"
)

// Content is what a flow wants to say, independent of the server.
type Content struct {
	Message string
	// URL is the reference page for "more information".
	URL string
	// SuppressAction is the action ID for "don't show again". Flows that
	// can show several categories at once use a per-category ID.
	SuppressAction string
}

// Rendered is the server-specific body and action list.
type Rendered struct {
	Body    string
	Actions []Action
}

// SuppressActionFor returns the per-category "don't show again" action ID.
func SuppressActionFor(category string) string {
	return ActionSuppress + "_" + category
}

// Render shapes content for a server with the given capabilities. Servers
// with actions get buttons; otherwise the reference URL is appended to the
// body, as a hyperlink when supported.
func Render(caps Capabilities, content Content) Rendered {
	escape := func(s string) string { return s }
	if caps.Has(CapBodyMarkup) {
		escape = html.EscapeString
	}

	suppressID := content.SuppressAction
	if suppressID == "" {
		suppressID = ActionSuppress
	}

	var (
		actions []Action
		suffix  string
	)
	switch {
	case caps.Has(CapActions):
		actions = []Action{
			{ID: ActionMoreInfo, Label: labelMoreInfo},
			{ID: suppressID, Label: labelSuppress},
		}
	case caps.Has(CapBodyHyperlinks):
		suffix = fmt.Sprintf(`<a href="%s">%s</a>`, escape(content.URL), escape(labelMoreInfo))
	default:
		suffix = escape(fmt.Sprintf(seeURLFormat, content.URL))
	}

	body := escape(content.Message)
	if suffix != "" {
		body += ". " + suffix
	}

	return Rendered{Body: body, Actions: actions}
}
