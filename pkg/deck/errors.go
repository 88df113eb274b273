package deck

import "errors"

// ErrReshuffleInProgress is returned by Draw, Reshuffle, and
// ReshuffleAsync while an async reshuffle is pending (§4.7, §7 kind
// 8: "Reshuffle-in-progress error").
var ErrReshuffleInProgress = errors.New("deck: async reshuffle in progress")

// ErrDuplicateID is returned by AddStorylet when the id is already
// present in the deck (§3: "id uniqueness is deck-global").
var ErrDuplicateID = errors.New("deck: duplicate storylet id")

// ErrUnknownID identifies a storylet id the deck does not own. No Deck
// method returns it: Play and the draw calls take *storylet.Storylet
// values and do not check deck membership.
var ErrUnknownID = errors.New("deck: unknown storylet id")
