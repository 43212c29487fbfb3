package chat

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/hrygo/skinsense/ai/normalize"
)

// signatures remembers the last fingerprint sent per event kind so repeated
// tool rounds do not re-emit identical payloads. It belongs to one request.
type signatures struct {
	products string
	routine  string
	summary  string
}

func (s *signatures) slot(kind EventType) *string {
	switch kind {
	case EventProducts:
		return &s.products
	case EventRoutine:
		return &s.routine
	case EventSummary:
		return &s.summary
	}
	return nil
}

// duplicate reports whether sig matches the last signature sent for kind.
// An empty signature always counts as a duplicate.
func (s *signatures) duplicate(kind EventType, sig string) bool {
	if sig == "" {
		return true
	}
	last := s.slot(kind)
	return last != nil && *last == sig
}

// sent records sig as the last signature that reached the client for kind.
func (s *signatures) sent(kind EventType, sig string) {
	if last := s.slot(kind); last != nil {
		*last = sig
	}
}

// productsSignature fingerprints the set of product ids. Order and field
// layout of the upstream payload do not matter.
func productsSignature(products []normalize.Product) string {
	if len(products) == 0 {
		return ""
	}
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ProductID)
	}
	sort.Strings(ids)
	return digest("products", ids)
}

// routineSignature fingerprints the routine by its steps' product
// references. Step order is significant.
func routineSignature(r *normalize.Routine) string {
	if r == nil {
		return ""
	}
	refs := make([]string, 0, len(r.Steps)+1)
	refs = append(refs, r.RoutineID)
	for _, s := range r.Steps {
		refs = append(refs, s.ProductID+"|"+s.ProductSlug)
	}
	return digest("routine", refs)
}

// summarySignature relies on encoding/json writing map keys in sorted order.
func summarySignature(summary map[string]any) string {
	if len(summary) == 0 {
		return ""
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return ""
	}
	return digest("summary", []string{string(raw)})
}

func digest(kind string, parts []string) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(h.Sum(nil))
}
