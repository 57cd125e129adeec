package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate_KeyOrderIndependent(t *testing.T) {
	a := map[string]any{
		"name":    "SUNRISE DEVELOPMENT GROUP LLC",
		"address": "123 OCEAN DR",
		"officers": []any{
			map[string]any{"name": "JOHN SMITH", "title": "MGR"},
		},
	}
	b := map[string]any{
		"officers": []any{
			map[string]any{"title": "MGR", "name": "JOHN SMITH"},
		},
		"address": "123 OCEAN DR",
		"name":    "SUNRISE DEVELOPMENT GROUP LLC",
	}

	assert.Equal(t, Generate(a), Generate(b))
}

func TestGenerate_DifferentRecordsDiffer(t *testing.T) {
	a := map[string]any{"name": "SUNRISE DEVELOPMENT GROUP LLC"}
	b := map[string]any{"name": "SUNRISE DEVELOPMENT GROUP, LLC"}

	assert.NotEqual(t, Generate(a), Generate(b))
}

func TestGenerate_ArrayOrderMatters(t *testing.T) {
	a := map[string]any{"owners": []any{"JOHN SMITH", "JANE DOE"}}
	b := map[string]any{"owners": []any{"JANE DOE", "JOHN SMITH"}}

	assert.NotEqual(t, Generate(a), Generate(b))
}
