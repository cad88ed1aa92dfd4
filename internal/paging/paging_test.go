package paging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPages(t *testing.T) {
	tests := []struct {
		total, perPage, want int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
		{5, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Pages(tt.total, tt.perPage), "Pages(%d, %d)", tt.total, tt.perPage)
	}
}

func TestParams_Validate(t *testing.T) {
	p, err := Params{Page: 2, PerPage: 500}.Validate(0)
	require.NoError(t, err)
	assert.Equal(t, MaxPerPage, p.PerPage)
	assert.Equal(t, 100, p.Offset())

	p, err = Params{Page: 1, PerPage: 80}.Validate(50)
	require.NoError(t, err)
	assert.Equal(t, 50, p.PerPage)

	_, err = Params{Page: 0, PerPage: 10}.Validate(0)
	assert.ErrorIs(t, err, ErrInvalidPage)

	_, err = Params{Page: 1, PerPage: -1}.Validate(0)
	assert.ErrorIs(t, err, ErrInvalidPage)
}

func TestNewPage(t *testing.T) {
	page := NewPage[int](Params{Page: 3, PerPage: 10}, nil, 25)

	assert.NotNil(t, page.Items)
	assert.Equal(t, Pagination{Page: 3, PerPage: 10, Total: 25, Pages: 3}, page.Pagination)
}
