package dialog

// Kind classifies a response directive for transports and the audit trail.
type Kind string

const (
	KindMenu        Kind = "menu"
	KindGreeting    Kind = "greeting"
	KindResults     Kind = "results"
	KindNoResults   Kind = "no_results"
	KindDetail      Kind = "detail"
	KindAck         Kind = "ack"
	KindError       Kind = "error"
	KindSoftFailure Kind = "soft_failure"
	KindEnd         Kind = "end"
)

// OptionRef is one selectable option in a rendered directive.
type OptionRef struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// Directive is what the engine hands to the outbound transport: message text
// plus, when applicable, the options the channel may render as buttons.
type Directive struct {
	Kind    Kind        `json:"kind"`
	Text    string      `json:"text"`
	Options []OptionRef `json:"options,omitempty"`
}
