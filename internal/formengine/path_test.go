package formengine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	p, err := ParsePath("lineItems.0.amount")
	require.NoError(t, err)
	assert.Equal(t, Path{Name("lineItems"), Index(0), Name("amount")}, p)
	assert.Equal(t, "lineItems.0.amount", p.String())

	for _, bad := range []string{"", "  ", "a..b", ".a", "a."} {
		_, err := ParsePath(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestPath_AppendDoesNotAlias(t *testing.T) {
	base := make(Path, 1, 4)
	base[0] = Name("lineItems")

	a := base.Append(Index(0))
	b := base.Append(Index(1))

	assert.Equal(t, "lineItems.0", a.String())
	assert.Equal(t, "lineItems.1", b.String())
	assert.Len(t, base, 1)
}

func TestPath_JSON(t *testing.T) {
	p := Path{Name("lineItems"), Index(2), Name("7")}

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `["lineItems",2,"7"]`, string(raw))

	var back Path
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.Equal(p))

	var dotted Path
	require.NoError(t, json.Unmarshal([]byte(`"taxDetails.cgst"`), &dotted))
	assert.Equal(t, Path{Name("taxDetails"), Name("cgst")}, dotted)

	var bad Path
	assert.Error(t, json.Unmarshal([]byte(`["a",-1]`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`["a",1.5]`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &bad))
}
