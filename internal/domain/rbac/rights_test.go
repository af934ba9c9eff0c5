package rbac

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/core/apperror"
)

func TestParseRightIDs(t *testing.T) {
	tests := []struct {
		name     string
		rightIDs string
		rights   string
		want     []int64
	}{
		{"right_ids array", `[3, 1, 2]`, ``, []int64{1, 2, 3}},
		{"rights comma string", ``, `"5,2, 5 ,9"`, []int64{2, 5, 9}},
		{"rights string array", ``, `["4","4","1"]`, []int64{1, 4}},
		{"right_ids wins", `[7]`, `"1,2"`, []int64{7}},
		{"null right_ids falls back", `null`, `[8]`, []int64{8}},
		{"both absent", ``, ``, []int64{}},
		{"empty string", ``, `""`, []int64{}},
		{"empty array", `[]`, ``, []int64{}},
		{"trailing comma", ``, `"1,2,"`, []int64{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRightIDs(json.RawMessage(tt.rightIDs), json.RawMessage(tt.rights))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRightIDsDropsInvalidTokens(t *testing.T) {
	tests := []struct {
		name     string
		rightIDs string
		rights   string
		want     []int64
	}{
		{"zero in string", ``, `"1, 0, 2"`, []int64{1, 2}},
		{"negative", `[1, -2]`, ``, []int64{1}},
		{"word", ``, `"3,abc"`, []int64{3}},
		{"fraction", `[1.5, 4]`, ``, []int64{4}},
		{"nested array", `[[1], "6"]`, ``, []int64{6}},
		{"object", `{"a":1}`, ``, []int64{}},
		{"bare number", `5`, ``, []int64{}},
		{"bool", ``, `true`, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRightIDs(json.RawMessage(tt.rightIDs), json.RawMessage(tt.rights))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRightIDsRejectsMalformedJSON(t *testing.T) {
	_, err := ParseRightIDs(json.RawMessage(`[1,`), nil)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidArgument(err))
}
