package payload

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{
  "steps": [
    {"id": "swap", "items": [{"data": {"from": "0xabc", "value": "100", "chainId": 8453}}]}
  ],
  "details": {"currencyOut": {"amount": "1250000000"}, "timeEstimate": 12.5, "ok": true, "none": null}
}`

func TestParseAndPath(t *testing.T) {
	v, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, Object, v.Kind())
	assert.Equal(t, "1250000000", v.Path("details.currencyOut.amount").Str())
	assert.Equal(t, "swap", v.Path("steps.0.id").Str())

	chainID, ok := v.Path("steps.0.items.0.data.chainId").Int64()
	require.True(t, ok)
	assert.Equal(t, int64(8453), chainID)

	eta, ok := v.Path("details.timeEstimate").Float64()
	require.True(t, ok)
	assert.Equal(t, 12.5, eta)

	assert.True(t, v.Path("details.none").IsNull())
	assert.True(t, v.Path("details.missing.deeper").IsNull())
	assert.True(t, v.Path("steps.7").IsNull())
	assert.Equal(t, "true", v.Path("details.ok").Text())
}

func TestFirstText(t *testing.T) {
	v, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "1250000000", v.FirstText("toAmount", "details.toAmount", "details.currencyOut.amount"))
	assert.Equal(t, "", v.FirstText("toAmount"))
}

func TestMarshalRoundTripKeepsNumbers(t *testing.T) {
	in := `{"big":115792089237316195423570985008687907853269984665640564039457584007913129639935,"list":[1,"a",null,false]}`
	v, err := Parse([]byte(in))
	require.NoError(t, err)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestCloneIsDeep(t *testing.T) {
	v, err := Parse([]byte(sample))
	require.NoError(t, err)

	c := v.Clone()
	mapped := c.MapStrings(func(_, s string) string { return strings.ToUpper(s) })

	assert.Equal(t, "0xabc", v.Path("steps.0.items.0.data.from").Str())
	assert.Equal(t, "0xabc", c.Path("steps.0.items.0.data.from").Str())
	assert.Equal(t, "0XABC", mapped.Path("steps.0.items.0.data.from").Str())
}

func TestWalkReportsKeys(t *testing.T) {
	v, err := Parse([]byte(`{"sender":"0x1","nested":[{"user":"0x2"}],"plain":["0x3"]}`))
	require.NoError(t, err)

	seen := map[string]string{}
	v.Walk(func(key, s string) { seen[s] = key })

	assert.Equal(t, map[string]string{"0x1": "sender", "0x2": "user", "0x3": "plain"}, seen)
	assert.True(t, v.Any(func(s string) bool { return s == "0x2" }))
	assert.False(t, v.Any(func(s string) bool { return s == "0x4" }))
}
