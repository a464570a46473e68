package document

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestJSONRoundTripKeepsOrderAndLiterals(t *testing.T) {
	input := `{"b":1,"a":[true,null,"x"],"c":{"d":1.50,"e":-2e10}}`

	n, err := JSONCodec{}.Decode([]byte(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, n.Fields().Keys())

	out, err := JSONCodec{}.Encode(n)
	require.NoError(t, err)
	assert.Equal(t, input, string(out))
}

func TestJSONDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, err error)
	}{
		{
			name:  "empty",
			input: "",
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, io.ErrUnexpectedEOF) },
		},
		{
			name:  "trailing value",
			input: `{"a":1} {"b":2}`,
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrTrailingData) },
		},
		{
			name:  "truncated",
			input: `{"a":`,
			check: func(t *testing.T, err error) { assert.Error(t, err) },
		},
		{
			name:  "not json",
			input: `hello`,
			check: func(t *testing.T, err error) { assert.Error(t, err) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := JSONCodec{}.Decode([]byte(tt.input))
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestJSONDecodeDepth(t *testing.T) {
	nested := func(open, close string, depth int) []byte {
		return []byte(strings.Repeat(open, depth) + "1" + strings.Repeat(close, depth))
	}

	tests := []struct {
		name    string
		input   []byte
		wantErr bool
	}{
		{name: "arrays at the limit", input: nested("[", "]", maxJSONDepth)},
		{name: "arrays past the limit", input: nested("[", "]", maxJSONDepth+1), wantErr: true},
		{name: "objects at the limit", input: nested(`{"a":`, "}", maxJSONDepth)},
		{name: "objects past the limit", input: nested(`{"a":`, "}", maxJSONDepth+1), wantErr: true},
		{name: "far past the limit", input: nested("[", "]", 1_000_000), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := JSONCodec{}.Decode(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, errJSONTooDeep)
				return
			}
			require.NoError(t, err)

			out, err := JSONCodec{Indent: " "}.Encode(n)
			require.NoError(t, err)
			assert.NotEmpty(t, out)
		})
	}
}

func TestJSONDecodeTrailingWhitespace(t *testing.T) {
	n, err := JSONCodec{}.Decode([]byte("  {\"a\":1}\n\n"))
	require.NoError(t, err)
	assert.Equal(t, KindObject, n.Kind())
}

func TestJSONDecodeScalars(t *testing.T) {
	tests := []struct {
		input string
		want  *Node
	}{
		{`"s"`, String("s")},
		{`12`, Number("12")},
		{`false`, Bool(false)},
		{`null`, Null()},
		{`[]`, Array()},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			n, err := JSONCodec{}.Decode([]byte(tt.input))
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(n))
		})
	}
}

func TestJSONEncode(t *testing.T) {
	t.Run("indent", func(t *testing.T) {
		out, err := JSONCodec{Indent: "  "}.Encode(Object().Set("a", Int(1)))
		require.NoError(t, err)
		assert.Equal(t, "{\n  \"a\": 1\n}", string(out))
	})

	t.Run("no html escaping", func(t *testing.T) {
		out, err := JSONCodec{}.Encode(String("<a&b>"))
		require.NoError(t, err)
		assert.Equal(t, `"<a&b>"`, string(out))
	})

	t.Run("escapes quotes", func(t *testing.T) {
		out, err := JSONCodec{}.Encode(String(`say "hi"`))
		require.NoError(t, err)
		assert.Equal(t, `"say \"hi\""`, string(out))
	})

	t.Run("invalid number", func(t *testing.T) {
		_, err := JSONCodec{}.Encode(Number("abc"))
		assert.Error(t, err)
	})
}

func TestValidNumber(t *testing.T) {
	for _, n := range []Num{"0", "-1", "3.14", "1e400", "-0.5E-3"} {
		assert.True(t, ValidNumber(n), string(n))
	}
	for _, n := range []Num{"", "abc", `"1"`, "01", "1.", "+1", "true"} {
		assert.False(t, ValidNumber(n), string(n))
	}
}

func TestYAMLDecode(t *testing.T) {
	input := `
name: alice
age: 30
ratio: 0.5
active: true
nothing: ~
zip: "01234"
tags: [a, b]
base: &base
  host: db
copy: *base
`
	n, err := YAMLCodec{}.Decode([]byte(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "age", "ratio", "active", "nothing", "zip", "tags", "base", "copy"}, n.Fields().Keys())

	get := func(key string) *Node {
		v, ok := n.Fields().Get(key)
		require.True(t, ok, key)
		return v
	}

	assert.True(t, get("name").Equal(String("alice")))
	assert.True(t, get("age").Equal(Number("30")))
	assert.True(t, get("ratio").Equal(Number("0.5")))
	assert.True(t, get("active").Equal(Bool(true)))
	assert.Equal(t, KindNull, get("nothing").Kind())
	assert.True(t, get("zip").Equal(String("01234")))
	assert.True(t, get("tags").Equal(Array(String("a"), String("b"))))
	assert.True(t, get("copy").Equal(Object().Set("host", String("db"))))
}

func TestYAMLDecodeAliasesAndMergeKeys(t *testing.T) {
	tests := []struct {
		name  string
		input string
		key   string
		want  *Node
	}{
		{
			name:  "alias is expanded",
			input: "base: &b {host: db}\ncopy: *b\n",
			key:   "copy",
			want:  Object().Set("host", String("db")),
		},
		{
			name:  "alias key",
			input: "k: &k name\nm: {*k : v}\n",
			key:   "m",
			want:  Object().Set("name", String("v")),
		},
		{
			name:  "merge key brings fields in",
			input: "base: &b\n  password: s3cret\nprod:\n  <<: *b\n  host: x\n",
			key:   "prod",
			want:  Object().Set("password", String("s3cret")).Set("host", String("x")),
		},
		{
			name:  "explicit keys win over merged ones",
			input: "base: &b {host: base, port: 1}\nprod:\n  host: x\n  <<: *b\n",
			key:   "prod",
			want:  Object().Set("host", String("x")).Set("port", Int(1)),
		},
		{
			name:  "first merged mapping wins",
			input: "a: &a {host: a}\nb: &b {host: b, port: 2}\nprod:\n  <<: [*a, *b]\n",
			key:   "prod",
			want:  Object().Set("host", String("a")).Set("port", Int(2)),
		},
		{
			name:  "inline merged mapping",
			input: "prod:\n  <<: {user: root}\n",
			key:   "prod",
			want:  Object().Set("user", String("root")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := YAMLCodec{}.Decode([]byte(tt.input))
			require.NoError(t, err)

			got, ok := n.Fields().Get(tt.key)
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got), "got %v", got)
			assert.Equal(t, tt.want.Fields().Keys(), got.Fields().Keys())
		})
	}
}

func TestYAMLDecodeLimits(t *testing.T) {
	t.Run("merge of a scalar", func(t *testing.T) {
		_, err := YAMLCodec{}.Decode([]byte("prod:\n  <<: 1\n"))
		assert.ErrorContains(t, err, "must refer to a mapping")
	})

	t.Run("excessive aliasing", func(t *testing.T) {
		var sb strings.Builder
		sb.WriteString("l0: &l0 [x, x, x, x, x, x, x, x, x, x]\n")
		for i := 1; i <= 7; i++ {
			ref := fmt.Sprintf("*l%d", i-1)
			fmt.Fprintf(&sb, "l%d: &l%d [%s]\n", i, i, strings.TrimSuffix(strings.Repeat(ref+", ", 10), ", "))
		}

		_, err := YAMLCodec{}.Decode([]byte(sb.String()))
		assert.ErrorIs(t, err, errYAMLTooLarge)
	})

	t.Run("nested too deeply", func(t *testing.T) {
		root := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "x"}
		for range maxYAMLDepth + 1 {
			root = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: []*yaml.Node{root}}
		}

		d := &yamlDecoder{budget: minYAMLNodes}
		_, err := d.decode(root, 0)
		assert.ErrorIs(t, err, errYAMLTooDeep)
	})

	t.Run("within bounds", func(t *testing.T) {
		_, err := YAMLCodec{}.Decode([]byte("l0: &l0 [x, x]\nl1: [*l0, *l0]\n"))
		assert.NoError(t, err)
	})
}

func TestYAMLDecodeEmpty(t *testing.T) {
	n, err := YAMLCodec{}.Decode(nil)
	require.NoError(t, err)
	assert.Equal(t, KindNull, n.Kind())
}

func TestYAMLDecodeInvalid(t *testing.T) {
	_, err := YAMLCodec{}.Decode([]byte("a: [unclosed"))
	assert.Error(t, err)
}

func TestYAMLEncode(t *testing.T) {
	n := Object().
		Set("b", String("x")).
		Set("a", Int(1))

	out, err := YAMLCodec{Indent: 2}.Encode(n)
	require.NoError(t, err)
	assert.Equal(t, "b: x\na: 1\n", string(out))
}

func TestYAMLRoundTrip(t *testing.T) {
	n := Object().
		Set("password", String("******")).
		Set("numeric", String("123")).
		Set("flag", String("true")).
		Set("id", Int(0)).
		Set("amount", Number("3.14")).
		Set("items", Array(Bool(false), Null(), Object().Set("k", String("v"))))

	out, err := YAMLCodec{Indent: 2}.Encode(n)
	require.NoError(t, err)

	back, err := YAMLCodec{}.Decode(out)
	require.NoError(t, err)
	assert.True(t, n.Equal(back), string(out))
	assert.Equal(t, n.Fields().Keys(), back.Fields().Keys())
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"", FormatAuto, false},
		{"auto", FormatAuto, false},
		{"JSON", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"yaml", FormatYAML, false},
		{"jsonl", FormatNDJSON, false},
		{"ndjson", FormatNDJSON, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("config/app.YAML"))
	assert.Equal(t, FormatYAML, DetectFormat("x.yml"))
	assert.Equal(t, FormatNDJSON, DetectFormat("events.jsonl"))
	assert.Equal(t, FormatNDJSON, DetectFormat("/var/log/app.log"))
	assert.Equal(t, FormatJSON, DetectFormat("payload.json"))
	assert.Equal(t, FormatJSON, DetectFormat("-"))

	assert.Equal(t, FormatYAML, FormatAuto.Resolve("a.yaml"))
	assert.Equal(t, FormatJSON, FormatJSON.Resolve("a.yaml"))
}

func TestCodecFor(t *testing.T) {
	c, err := CodecFor(FormatYAML, "  ")
	require.NoError(t, err)
	assert.Equal(t, YAMLCodec{Indent: 2}, c)

	c, err = CodecFor(FormatNDJSON, "  ")
	require.NoError(t, err)
	assert.Equal(t, JSONCodec{}, c)

	c, err = CodecFor(FormatJSON, "\t")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())

	_, err = CodecFor(Format("xml"), "")
	assert.Error(t, err)
}

func TestScanLines(t *testing.T) {
	input := "{\"a\":1}\n\n   \n{\"b\":2}\n"

	var got []string
	var nums []int
	err := ScanLines(strings.NewReader(input), func(lineNum int, line []byte) error {
		nums = append(nums, lineNum)
		got = append(got, string(line))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{`{"a":1}`, `{"b":2}`}, got)
	assert.Equal(t, []int{1, 4}, nums)
}

func TestScanLinesStopsOnError(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := ScanLines(strings.NewReader("a\nb\nc\n"), func(int, []byte) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}
