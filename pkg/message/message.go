package message

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"
)

// Origin tells which side of the conversation a message belongs to.
type Origin string

const (
	OriginSelf   Origin = "self"
	OriginRemote Origin = "remote"
)

// Kind is the payload type of a message.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Envelope is the wire shape exchanged with the backend, in both
// directions: the pull endpoint returns arrays of these, the push channel
// delivers one per frame, and sends post one.
type Envelope struct {
	FromUser string `json:"from_user"`
	Type     string `json:"type,omitempty"`
	Text     string `json:"text,omitempty"`
	ImageB64 string `json:"image_b64,omitempty"`
}

// Message is the canonical unit of conversation after normalization.
//
// Exactly one of Text and Image carries the payload, selected by Kind. A
// message stays bound to the session it was appended to and is never moved
// or edited afterwards.
type Message struct {
	ID        string
	SessionID string
	Origin    Origin
	Kind      Kind
	Text      string
	Image     []byte
	SentAt    time.Time
}

// Normalize maps one raw backend envelope into the canonical Message shape.
//
// There is no failure path: absent or malformed fields degrade to a text
// message with an empty payload so one bad envelope cannot stall the
// conversation stream.
func Normalize(env Envelope, sessionID string, localUser string, now time.Time) Message {
	msg := Message{
		SessionID: sessionID,
		Origin:    OriginRemote,
		Kind:      KindText,
		Text:      env.Text,
		SentAt:    now,
	}

	if env.FromUser == localUser {
		msg.Origin = OriginSelf
	}

	if env.Type == string(KindImage) || env.ImageB64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(env.ImageB64)
		if err == nil && len(decoded) > 0 {
			msg.Kind = KindImage
			msg.Image = decoded
			msg.Text = ""
		} else {
			// Image envelope without usable image data renders as empty text.
			msg.Kind = KindText
			msg.Text = ""
		}
	}

	return msg
}

// ToEnvelope maps a canonical message back to the wire shape for sending.
func ToEnvelope(msg Message, localUser string) Envelope {
	env := Envelope{
		FromUser: localUser,
		Type:     string(msg.Kind),
		Text:     msg.Text,
	}

	if msg.Kind == KindImage {
		env.Text = ""
		env.ImageB64 = base64.StdEncoding.EncodeToString(msg.Image)
	}

	return env
}

// Fingerprint is the content identity used for echo suppression and
// cross-source de-duplication: kind plus payload equality, nothing more.
func (m Message) Fingerprint() string {
	if m.Kind == KindImage {
		sum := sha256.Sum256(m.Image)
		return "image:" + hex.EncodeToString(sum[:])
	}

	return "text:" + m.Text
}

// EqualContent reports whether two messages carry the same payload.
func (m Message) EqualContent(other Message) bool {
	if m.Kind != other.Kind {
		return false
	}
	if m.Kind == KindImage {
		return bytes.Equal(m.Image, other.Image)
	}

	return m.Text == other.Text
}
