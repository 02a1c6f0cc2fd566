package ddml

import "github.com/iotaledger/streams-go/pkg/spongos"

// LinkStore maps a link identifier to the Spongos inner state committed
// immediately after wrapping or unwrapping the message at that link, plus
// caller-supplied metadata. The Join command uses a lookup against this
// store to continue a message's transcript from its predecessor.
type LinkStore[Link comparable, Info any] interface {
	Lookup(link Link) (spongos.Inner, Info, error)
	Update(link Link, inner spongos.Inner, info Info) error
	Erase(link Link)
}

// MapLinkStore is an in-memory LinkStore backed by a Go map, sufficient for
// the in-process and snapshot-restorable User state this module implements.
type MapLinkStore[Link comparable, Info any] struct {
	entries map[Link]mapLinkEntry[Info]
}

type mapLinkEntry[Info any] struct {
	inner spongos.Inner
	info  Info
}

// NewMapLinkStore creates an empty link store.
func NewMapLinkStore[Link comparable, Info any]() *MapLinkStore[Link, Info] {
	return &MapLinkStore[Link, Info]{entries: make(map[Link]mapLinkEntry[Info])}
}

func (m *MapLinkStore[Link, Info]) Lookup(link Link) (spongos.Inner, Info, error) {
	e, ok := m.entries[link]
	if !ok {
		var zero Info
		return spongos.Inner{}, zero, errLinkNotFound
	}
	return e.inner, e.info, nil
}

// Update records inner+info for link. A mismatch against an already-stored
// Inner for the same link is surfaced as an error by the caller (the
// keystore owner), not detected here: this type stores last-write-wins and
// leaves "first one makes the history" policy decisions to its caller.
func (m *MapLinkStore[Link, Info]) Update(link Link, inner spongos.Inner, info Info) error {
	m.entries[link] = mapLinkEntry[Info]{inner: inner, info: info}
	return nil
}

func (m *MapLinkStore[Link, Info]) Erase(link Link) {
	delete(m.entries, link)
}

// Entry is one stored link, flattened for enumeration.
type Entry[Link comparable, Info any] struct {
	Link  Link
	Inner spongos.Inner
	Info  Info
}

// Entries returns every stored link as a flat slice, used to snapshot a
// link store's full contents.
func (m *MapLinkStore[Link, Info]) Entries() []Entry[Link, Info] {
	out := make([]Entry[Link, Info], 0, len(m.entries))
	for link, e := range m.entries {
		out = append(out, Entry[Link, Info]{Link: link, Inner: e.inner, Info: e.info})
	}
	return out
}

type linkNotFoundError struct{}

func (linkNotFoundError) Error() string { return "ddml: link not found" }

var errLinkNotFound = linkNotFoundError{}
