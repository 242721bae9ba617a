package grid

import "time"

// OpKind identifies a long-running workflow that shares the arbitration slot.
type OpKind string

const (
	OpSuggest OpKind = "suggest"
	OpSimilar OpKind = "similar"
)

// Token identifies one started workflow. Tokens compare by Seq.
type Token struct {
	Kind     OpKind
	TargetID string
	Seq      uint64
	IssuedAt time.Time
}

// IsZero reports whether the token was never issued.
func (t Token) IsZero() bool { return t.Seq == 0 }

// Arbiter holds the single active token across suggestion and find-similar
// workflows. Starting any operation supersedes the previous one.
type Arbiter struct {
	seq    uint64
	active Token
	now    func() time.Time
}

func NewArbiter() *Arbiter {
	return &Arbiter{now: time.Now}
}

// Start mints a token and makes it the only active one.
func (a *Arbiter) Start(kind OpKind, targetID string) Token {
	a.seq++
	a.active = Token{Kind: kind, TargetID: targetID, Seq: a.seq, IssuedAt: a.now()}
	return a.active
}

// IsStillActive must be checked by every continuation before touching shared state.
func (a *Arbiter) IsStillActive(t Token) bool {
	return !t.IsZero() && t.Seq == a.active.Seq
}

// Finish releases the slot if t still holds it.
func (a *Arbiter) Finish(t Token) {
	if a.IsStillActive(t) {
		a.active = Token{}
	}
}

// Active returns the current token, if any.
func (a *Arbiter) Active() (Token, bool) {
	return a.active, !a.active.IsZero()
}
