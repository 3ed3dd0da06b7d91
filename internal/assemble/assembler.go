// Package assemble turns raw message records into domain comments:
// deduplication by message id, 1:1 conversion of chat payloads, routing of
// state/signal payloads to an observer, and optional batch sorting for
// backward downloads where out-of-order segment arrival is expected.
package assemble

import (
	"fmt"
	"sort"
	"time"

	"github.com/nicolive-tools/ndgr-downloader/internal/protocol"
)

// Comment is the domain output derived 1:1 from a chat message record.
type Comment struct {
	ID            string     `json:"id"`
	At            time.Time  `json:"at"`
	LiveID        int64      `json:"live_id,omitempty"`
	Content       string     `json:"content"`
	VPos          int64      `json:"vpos"`
	No            int64      `json:"no,omitempty"`
	RawUserID     int64      `json:"raw_user_id,omitempty"`
	HashedUserID  string     `json:"hashed_user_id,omitempty"`
	AccountStatus string     `json:"account_status"`
	Attributes    Attributes `json:"attributes"`
}

// Attributes are the comment's rendering attributes.
type Attributes struct {
	Position string `json:"position"`
	Size     string `json:"size"`
	Color    string `json:"color"`
	Font     string `json:"font"`
	Opacity  string `json:"opacity"`
}

// StateEvent carries a non-comment record (state update or signal) to the
// observer. These are consumed for control purposes only and never enter the
// comment sequence.
type StateEvent struct {
	ID     string
	At     time.Time
	State  *protocol.State
	Signal *protocol.Signal
}

// Assembler holds the running set of seen message ids for one collection
// session. It is owned by a single subscription and is not safe for
// concurrent use.
type Assembler struct {
	seen     map[string]struct{}
	batch    bool
	buf      []Comment
	observer func(StateEvent)
}

// New returns an assembler that emits comments in arrival order (live mode).
func New() *Assembler {
	return &Assembler{seen: make(map[string]struct{})}
}

// NewBatch returns an assembler that buffers comments until Flush, which
// emits them sorted by timestamp (bulk/backward mode).
func NewBatch() *Assembler {
	return &Assembler{seen: make(map[string]struct{}), batch: true}
}

// SetObserver routes state and signal records to fn. Without an observer
// they are dropped.
func (a *Assembler) SetObserver(fn func(StateEvent)) {
	a.observer = fn
}

// Push feeds one raw message record. In live mode it returns the converted
// comment and true when the record is a not-yet-seen chat message. In batch
// mode chat messages are buffered and Push always returns false. Repeated
// ids are idempotent re-delivery, never errors.
func (a *Assembler) Push(m protocol.ChunkedMessage) (Comment, bool) {
	if m.Meta == nil || m.Meta.ID == "" {
		return Comment{}, false
	}

	if m.Chat == nil {
		// State/signal routing does not touch comment dedup state.
		if a.observer != nil && (m.State != nil || m.Signal != nil) {
			a.observer(StateEvent{ID: m.Meta.ID, At: m.Meta.At, State: m.State, Signal: m.Signal})
		}
		return Comment{}, false
	}

	if _, dup := a.seen[m.Meta.ID]; dup {
		return Comment{}, false
	}
	a.seen[m.Meta.ID] = struct{}{}

	c := convert(m)
	if a.batch {
		a.buf = append(a.buf, c)
		return Comment{}, false
	}
	return c, true
}

// Seed preloads previously collected comments into the session: their ids
// count as seen, so a resumed traversal that replays a link emits nothing
// twice, and in batch mode they rejoin the buffer for the next Flush.
func (a *Assembler) Seed(comments []Comment) {
	for _, c := range comments {
		if _, dup := a.seen[c.ID]; dup {
			continue
		}
		a.seen[c.ID] = struct{}{}
		if a.batch {
			a.buf = append(a.buf, c)
		}
	}
}

// Flush returns all buffered comments sorted by timestamp ascending, ties
// broken by arrival order, and clears the buffer. Dedup state is kept: the
// session continues until the assembler is discarded.
func (a *Assembler) Flush() []Comment {
	out := a.buf
	a.buf = nil
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].At.Before(out[j].At)
	})
	return out
}

// SeenCount reports how many distinct comment ids this session has emitted.
func (a *Assembler) SeenCount() int {
	return len(a.seen)
}

func convert(m protocol.ChunkedMessage) Comment {
	chat := m.Chat
	c := Comment{
		ID:            m.Meta.ID,
		At:            m.Meta.At,
		Content:       chat.Content,
		VPos:          chat.VPos,
		No:            chat.No,
		RawUserID:     chat.RawUserID,
		HashedUserID:  chat.HashedUserID,
		AccountStatus: chat.AccountStatus.String(),
	}
	if m.Meta.Origin != nil {
		c.LiveID = m.Meta.Origin.LiveID
	}

	mod := chat.Modifier
	if mod == nil {
		mod = &protocol.Modifier{}
	}
	c.Attributes = Attributes{
		Position: mod.Position.String(),
		Size:     mod.Size.String(),
		Color:    colorOf(mod),
		Font:     mod.Font.String(),
		Opacity:  mod.Opacity.String(),
	}
	return c
}

// colorOf prefers the full RGB color when both forms are present.
func colorOf(mod *protocol.Modifier) string {
	if mod.FullColor != nil {
		return fmt.Sprintf("#%02X%02X%02X", mod.FullColor.R&0xff, mod.FullColor.G&0xff, mod.FullColor.B&0xff)
	}
	return mod.NamedColor.String()
}
