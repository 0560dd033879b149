package ailink

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clauselens/clauselens/internal/core"
)

func TestParseResponseStripsFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		kind PayloadKind
		raw  string
	}{
		{"plain json", `{"a":"b"}`, PayloadObject, `{"a":"b"}`},
		{"json fence", "```json\n{\"a\":\"b\"}\n```", PayloadObject, `{"a":"b"}`},
		{"bare fence", "```\n{\"a\":\"b\"}\n```", PayloadObject, `{"a":"b"}`},
		{"inline tag", "```json{\"a\":\"b\"}```", PayloadObject, `{"a":"b"}`},
		{"surrounding space", "  \n```json\n{\"a\":\"b\"}\n```  \n", PayloadObject, `{"a":"b"}`},
		{"free text", "The clause is fine.", PayloadRaw, "The clause is fine."},
		{"fenced prose", "```\nplain words here\n```", PayloadRaw, "plain words here"},
		{"json array", `["a","b"]`, PayloadRaw, `["a","b"]`},
		{"json string", `"abc"`, PayloadRaw, `"abc"`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := ParseResponse(tc.in)
			require.Equal(t, tc.kind, payload.Kind)
			require.Equal(t, tc.raw, payload.Raw)
		})
	}
}

func TestNormalizeReturnsInnerMultilingualValue(t *testing.T) {
	raw := `{"explanation":{"en":"Plain","hi":"सरल","mr":"साधे"}}`
	got := Normalize(raw, "explanation")
	require.Equal(t, core.MultilingualText{EN: "Plain", HI: "सरल", MR: "साधे"}, got)
}

func TestNormalizeReplicatesNonJSON(t *testing.T) {
	require.Equal(t, core.MultilingualText{EN: "abc", HI: "abc", MR: "abc"}, Normalize("abc", "explanation"))
}

func TestNormalizeIsIdempotent(t *testing.T) {
	first := Normalize("```json\n{\"risk\":{\"en\":\"High\",\"hi\":\"उच्च\",\"mr\":\"उच्च\"}}\n```", "risk")

	encoded, err := json.Marshal(first)
	require.NoError(t, err)

	second := Normalize(string(encoded), "risk")
	require.Equal(t, first, second)

	require.Equal(t, first, Extract(PayloadFromText(first), "risk"))
}

func TestNormalizeFallsBackToRawText(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		field string
		want  core.MultilingualText
	}{
		{
			name:  "field missing",
			raw:   `{"summary":"x"}`,
			field: "explanation",
			want:  core.Replicate(`{"summary":"x"}`),
		},
		{
			name:  "field is a number",
			raw:   `{"risk":3}`,
			field: "risk",
			want:  core.Replicate(`{"risk":3}`),
		},
		{
			name:  "field is a string",
			raw:   `{"risk":"Low risk"}`,
			field: "risk",
			want:  core.Replicate("Low risk"),
		},
		{
			name:  "field object without languages",
			raw:   `{"risk":{"level":"high"}}`,
			field: "risk",
			want:  core.Replicate(`{"risk":{"level":"high"}}`),
		},
		{
			name:  "partial languages",
			raw:   `{"risk":{"en":"Low"}}`,
			field: "risk",
			want:  core.Replicate("Low"),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Normalize(tc.raw, tc.field))
		})
	}
}

func TestPayloadMarshalJSON(t *testing.T) {
	data, err := json.Marshal(ParseResponse(`{"a":1}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(data))

	data, err = json.Marshal(ParseResponse("hello"))
	require.NoError(t, err)
	require.JSONEq(t, `"hello"`, string(data))

	data, err = json.Marshal(PayloadFromText(core.NoResponseText))
	require.NoError(t, err)
	require.JSONEq(t, `{"en":"⚠️ No response","hi":"⚠️ कोई उत्तर नहीं","mr":"⚠️ प्रतिसाद नाही"}`, string(data))
}
