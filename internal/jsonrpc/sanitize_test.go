package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "object result with empty content",
			in:   `{"jsonrpc":"2.0","id":1,"result":{"__schema":"v2-object-result","structuredContent":{"repo":"o/r"},"content":[]}}`,
			want: `{"jsonrpc":"2.0","id":1,"result":{"__schema":"v2-object-result","structuredContent":{"repo":"o/r"}}}`,
		},
		{
			name: "short v2 marker",
			in:   `{"result":{"__schema":"v2","content":[]}}`,
			want: `{"result":{"__schema":"v2"}}`,
		},
		{
			name: "non-empty content kept",
			in:   `{"result":{"__schema":"v2","content":["x"]}}`,
			want: `{"result":{"__schema":"v2","content":["x"]}}`,
		},
		{
			name: "v1 marker untouched",
			in:   `{"result":{"__schema":"v1","content":[]}}`,
			want: `{"result":{"__schema":"v1","content":[]}}`,
		},
		{
			name: "no marker untouched",
			in:   `{"result":{"content":[]}}`,
			want: `{"result":{"content":[]}}`,
		},
		{
			name: "null content is not an empty array",
			in:   `{"result":{"__schema":"v2","content":null}}`,
			want: `{"result":{"__schema":"v2","content":null}}`,
		},
		{
			name: "error response untouched",
			in:   `{"jsonrpc":"2.0","id":2,"error":{"code":-32601,"message":"nope"}}`,
			want: `{"jsonrpc":"2.0","id":2,"error":{"code":-32601,"message":"nope"}}`,
		},
		{
			name: "scalar result untouched",
			in:   `{"result":"done"}`,
			want: `{"result":"done"}`,
		},
		{
			name: "invalid json passes through",
			in:   `{"result":{"__schema":"v2","content":[]`,
			want: `{"result":{"__schema":"v2","content":[]`,
		},
		{
			name: "empty input",
			in:   ``,
			want: ``,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize([]byte(tt.in))
			if json.Valid([]byte(tt.want)) && tt.want != "" {
				assert.JSONEq(t, tt.want, string(got))
			} else {
				assert.Equal(t, tt.want, string(got))
			}
		})
	}
}

func TestSanitize_Batch(t *testing.T) {
	in := `[
		{"id":1,"result":{"__schema":"v2-object-result","content":[]}},
		{"id":2,"result":{"__schema":"v1","content":[]}},
		{"id":3,"result":{"__schema":"v2","content":[{"type":"text","text":"x"}]}},
		null
	]`

	got := Sanitize([]byte(in))

	assert.JSONEq(t, `[
		{"id":1,"result":{"__schema":"v2-object-result"}},
		{"id":2,"result":{"__schema":"v1","content":[]}},
		{"id":3,"result":{"__schema":"v2","content":[{"type":"text","text":"x"}]}},
		null
	]`, string(got))
}

func TestSanitize_NestedResponses(t *testing.T) {
	in := `{"responses":[{"id":1,"result":{"__schema":"v2","content":[]}},{"id":2,"result":{"__schema":"v1","content":[]}}]}`

	got := Sanitize([]byte(in))

	assert.JSONEq(t, `{"responses":[{"id":1,"result":{"__schema":"v2"}},{"id":2,"result":{"__schema":"v1","content":[]}}]}`, string(got))
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		`{"result":{"__schema":"v2-object-result","structuredContent":{"a":1},"content":[]}}`,
		`[{"result":{"__schema":"v2","content":[]}},{"result":{"__schema":"v1","content":[]}}]`,
		`{"result":{"__schema":"v2","content":["x"]}}`,
	}
	for _, in := range inputs {
		once := Sanitize([]byte(in))
		twice := Sanitize(once)
		assert.Equal(t, string(once), string(twice), in)
	}
}

func TestSanitize_DoesNotModifyInput(t *testing.T) {
	in := []byte(`{"result":{"__schema":"v2","content":[]}}`)
	orig := string(in)

	_ = Sanitize(in)

	assert.Equal(t, orig, string(in))
}

func TestSanitize_UnchangedReturnsSameBytes(t *testing.T) {
	in := []byte(`{ "result" : { "__schema" : "v1", "content" : [] } }`)

	got := Sanitize(in)

	assert.Equal(t, string(in), string(got), "non-matching payload keeps its formatting")
}

func TestSanitize_KeepsHTMLCharacters(t *testing.T) {
	in := `{"result":{"__schema":"v2","structuredContent":{"title":"a <b> & c"},"content":[]}}`

	got := Sanitize([]byte(in))

	assert.Contains(t, string(got), `"a <b> & c"`)
}

func TestSplit(t *testing.T) {
	msgs, batch, err := Split([]byte(` {"jsonrpc":"2.0","id":1,"method":"ping"} `))
	require.NoError(t, err)
	assert.False(t, batch)
	require.Len(t, msgs, 1)

	msgs, batch, err = Split([]byte(`[{"jsonrpc":"2.0","method":"a"},{"jsonrpc":"2.0","id":2,"method":"b"}]`))
	require.NoError(t, err)
	assert.True(t, batch)
	assert.Len(t, msgs, 2)

	_, _, err = Split([]byte(`[]`))
	assert.ErrorIs(t, err, ErrEmptyBatch)

	_, _, err = Split([]byte(`{"jsonrpc":`))
	assert.Error(t, err)

	_, _, err = Split(nil)
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	req, rpcErr := Decode(json.RawMessage(`{"jsonrpc":"2.0","id":"abc","method":"tools/list"}`))
	require.Nil(t, rpcErr)
	assert.Equal(t, "tools/list", req.Method)
	assert.Equal(t, `"abc"`, string(req.ID))
	assert.False(t, req.IsNotification())

	req, rpcErr = Decode(json.RawMessage(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	require.Nil(t, rpcErr)
	assert.True(t, req.IsNotification())

	_, rpcErr = Decode(json.RawMessage(`{"jsonrpc":"1.0","id":1,"method":"x"}`))
	require.NotNil(t, rpcErr)
	assert.Equal(t, CodeInvalidRequest, rpcErr.Code)

	_, rpcErr = Decode(json.RawMessage(`{"jsonrpc":"2.0","id":1}`))
	require.NotNil(t, rpcErr)
	assert.Equal(t, CodeInvalidRequest, rpcErr.Code)

	_, rpcErr = Decode(json.RawMessage(`42`))
	require.NotNil(t, rpcErr)
	assert.Equal(t, CodeInvalidRequest, rpcErr.Code)
}

func TestResponse_NullIDOnParseError(t *testing.T) {
	out, err := json.Marshal(NewError(nil, &Error{Code: CodeParseError, Message: "parse error"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"parse error"}}`, string(out))
}
