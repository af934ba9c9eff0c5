package rbac

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"backoffice/internal/core/apperror"
)

// ParseRightIDs turns the body of a role-rights request into a sorted set of
// positive permission ids. rightIDs wins when it is present and not null;
// otherwise rights is used. Either may be a JSON array of numbers or numeric
// strings, or a comma-separated string. Tokens that are not positive integers
// are dropped. An absent value, or one that is neither an array nor a string,
// is the empty set.
func ParseRightIDs(rightIDs, rights json.RawMessage) ([]int64, error) {
	raw := rights
	field := "rights"
	if !isAbsent(rightIDs) {
		raw = rightIDs
		field = "right_ids"
	}
	if isAbsent(raw) {
		return []int64{}, nil
	}

	tokens, err := rightTokens(raw)
	if err != nil {
		return nil, apperror.NewInvalidArgument(fmt.Sprintf("%s is not valid JSON", field)).
			WithCause(err)
	}

	ids := make([]int64, 0, len(tokens))
	for _, tok := range tokens {
		id, err := strconv.ParseInt(strings.TrimSpace(tok), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}

	slices.Sort(ids)
	return slices.Compact(ids), nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func rightTokens(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return strings.Split(s, ","), nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			item = bytes.TrimSpace(item)
			if len(item) > 0 && item[0] == '"' {
				var s string
				if err := json.Unmarshal(item, &s); err != nil {
					return nil, err
				}
				out = append(out, s)
				continue
			}
			out = append(out, string(item))
		}
		return out, nil
	default:
		return nil, nil
	}
}
