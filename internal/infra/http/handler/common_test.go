package handler

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meterly/api/pkg/pagination"
)

func TestPaginate(t *testing.T) {
	items := make([]int, 25)
	for i := range items {
		items[i] = i
	}

	t.Run("first page", func(t *testing.T) {
		result := paginate(items, pagination.New(1, 10))
		assert.Len(t, result.Data, 10)
		assert.Equal(t, 0, result.Data[0])
		assert.Equal(t, int64(25), result.Total)
		assert.Equal(t, 3, result.TotalPages)
	})

	t.Run("partial last page", func(t *testing.T) {
		result := paginate(items, pagination.New(3, 10))
		assert.Len(t, result.Data, 5)
		assert.Equal(t, 20, result.Data[0])
	})

	t.Run("page past the end is empty", func(t *testing.T) {
		result := paginate(items, pagination.New(9, 10))
		assert.Empty(t, result.Data)
		assert.Equal(t, int64(25), result.Total)
	})

	t.Run("empty input", func(t *testing.T) {
		result := paginate([]int(nil), pagination.New(1, 10))
		assert.NotNil(t, result.Data)
		assert.Empty(t, result.Data)
	})
}

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"ok","surprise":true}`))
	err := decodeJSON(req, &dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "surprise")
}
