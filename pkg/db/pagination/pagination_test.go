package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "12", CreatedAt: "2025-01-15T00:00:00Z"})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "12", cursor.ID)

	_, err = DecodeCursor("%%%")
	assert.Error(t, err)
}

func TestTrim(t *testing.T) {
	a, b, c := 1, 2, 3
	rows := []*int{&a, &b, &c}

	page, info := Trim(rows, 2, func(v *int) string { return "cur" })
	assert.Len(t, page, 2)
	assert.True(t, info.HasMore)
	assert.Equal(t, "cur", info.NextPageToken)

	page, info = Trim(rows, 5, func(v *int) string { return "cur" })
	assert.Len(t, page, 3)
	assert.False(t, info.HasMore)
}

func TestLimit(t *testing.T) {
	assert.Equal(t, 50, Pagination{}.Limit())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Limit())
	assert.Equal(t, 10, Pagination{PageSize: 10}.Limit())
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("not-a-token!")
	assert.ErrorIs(t, err, ErrInvalidCursor)

	_, _, err = Cursor{ID: "x", CreatedAt: "2025-01-15T00:00:00Z"}.Position()
	assert.ErrorIs(t, err, ErrInvalidCursor)
}
