package wire

import "encoding/json"

// Envelope wraps a command body with the issuer and signature fields a
// signed command carries over the duplex connection. The signing and
// verification themselves are out of scope here: this type only carries
// the bytes an external signer produced and the ability they authorize.
type Envelope struct {
	Ability   Ability         `json:"cmd"`
	Issuer    string          `json:"iss"`
	Payload   json.RawMessage `json:"args"`
	Signature []byte          `json:"sig,omitempty"`
}

// Frame is one message on the duplex connection. A request frame carries
// an Envelope; a response frame carries exactly one of Ok/Error for a
// request/response exchange, or an Effect/SubscriptionID for an
// asynchronous push tied to a live subscription.
type Frame struct {
	ID             string          `json:"id"`
	Envelope       *Envelope       `json:"cmd,omitempty"`
	Ok             json.RawMessage `json:"ok,omitempty"`
	Error          json.RawMessage `json:"error,omitempty"`
	Effect         *Effect         `json:"effect,omitempty"`
	SubscriptionID string          `json:"subscriptionId,omitempty"`
}

// IsPush reports whether this frame is an unsolicited subscription push
// rather than a reply correlated to a request ID.
func (f Frame) IsPush() bool {
	return f.Effect != nil && f.ID == ""
}
