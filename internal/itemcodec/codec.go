// Package itemcodec packs a user's linked items into the single text field used by
// older deployments: entries joined by "~", each entry "access_token|item_id".
package itemcodec

import (
	"fmt"
	"strings"

	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/errs"
	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/model"
)

// Delimiters of the encoded field.
const (
	EntrySep = "~"
	PairSep  = "|"
)

// Decode parses an encoded item field. Empty input yields zero items; empty chunks are skipped.
func Decode(raw string) ([]model.Item, error) {
	out := []model.Item{}
	if raw == "" {
		return out, nil
	}
	for i, chunk := range strings.Split(raw, EntrySep) {
		if chunk == "" {
			continue
		}
		parts := strings.Split(chunk, PairSep)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("entry[%d]: %w", i, errs.ErrMalformedItemRecord)
		}
		out = append(out, model.Item{AccessToken: parts[0], ItemID: parts[1]})
	}
	return out, nil
}

// Encode joins items in the given order.
func Encode(items []model.Item) (string, error) {
	var b strings.Builder
	for i, it := range items {
		if err := Validate(it); err != nil {
			return "", fmt.Errorf("item[%d]: %w", i, err)
		}
		if i > 0 {
			b.WriteString(EntrySep)
		}
		b.WriteString(it.AccessToken)
		b.WriteString(PairSep)
		b.WriteString(it.ItemID)
	}
	return b.String(), nil
}

// Validate rejects items that could not survive an encode/decode round trip.
func Validate(it model.Item) error {
	switch {
	case it.AccessToken == "" || it.ItemID == "":
		return fmt.Errorf("%w: empty access token or item id", errs.ErrValidation)
	case strings.ContainsAny(it.AccessToken, EntrySep+PairSep):
		return fmt.Errorf("%w: access token contains a delimiter", errs.ErrValidation)
	case strings.ContainsAny(it.ItemID, EntrySep+PairSep):
		return fmt.Errorf("%w: item id contains a delimiter", errs.ErrValidation)
	}
	return nil
}
