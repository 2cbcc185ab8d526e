package document

import (
	"errors"
	"fmt"
)

// ErrStale is returned when an update was computed against a document older
// than the current one
var ErrStale = errors.New("stale update")

// Apply merges an update into the document and returns the resulting
// document. The receiver is left untouched.
//
// A text box replacing a text box keeps the existing raw content: the
// renderer only ever sends derived data, never hand-authored body text.
func (d *Document) Apply(update DocumentUpdate) (*Document, error) {
	if update.DocCreated < d.Created {
		return nil, fmt.Errorf("update for %s based on %d, document is %d: %w",
			update.ID, update.DocCreated, d.Created, ErrStale)
	}
	if update.Element == nil {
		return nil, fmt.Errorf("update for %s: missing element", update.ID)
	}

	next := d.Clone()
	incoming := update.Element

	if existing, ok := d.Elements[update.ID].(*TextBox); ok {
		if box, ok := incoming.(*TextBox); ok {
			merged := *box
			merged.RawContent = existing.RawContent
			incoming = &merged
		}
	}

	next.Elements[update.ID] = incoming
	return next, nil
}
