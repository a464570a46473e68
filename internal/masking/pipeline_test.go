package masking

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bimmerbailey/dmask/internal/document"
	"github.com/bimmerbailey/dmask/internal/jsonpath"
)

func mustMasker(t *testing.T) func(Masker, error) Masker {
	return func(m Masker, err error) Masker {
		t.Helper()
		require.NoError(t, err)
		return m
	}
}

func TestEndToEnd(t *testing.T) {
	p, err := NewDefaultBuilder().
		Deferred("remove", "documents").
		Deferred("secret", "password").
		Deferred("number", "id", "amount").
		Build()
	require.NoError(t, err)

	out, err := p.MaskString(`{"id":15,"amount":3.14,"password":"Qwerty123","documents":[{"id":123}]}`)
	require.NoError(t, err)
	assert.Equal(t, `{"id":0,"amount":0,"password":"******"}`, out)
}

func TestEndToEndRecursiveSelectors(t *testing.T) {
	p, err := NewDefaultBuilder().
		Deferred("remove", "$..documents").
		Deferred("secret", "$..password").
		Deferred("number", "$..id", "$..notNumber", "$..amount").
		Build()
	require.NoError(t, err)

	input := `{"id":1,"amount":12.5,"notNumber":"notNumber","password":"Qwerty123",` +
		`"documents":[{"id":2,"password":"x"}],"anyField":"value"}`
	out, err := p.MaskString(input)
	require.NoError(t, err)
	assert.Equal(t, `{"id":0,"amount":0,"notNumber":"notNumber","password":"******","anyField":"value"}`, out)
}

func TestRemovalRunsFirst(t *testing.T) {
	must := mustMasker(t)
	earliest := must(NewConstant("earliest", RemoveOrder, "x"))
	early := must(NewConstant("early", -1000, "x"))
	late := must(NewConstant("late", 1000, "x"))

	p, err := NewBuilder().
		Rule("$.a", late).
		Rule("$.b", earliest).
		Rule("$.c", early).
		Rule("$.d", Remove()).
		Rule("$.e", Remove()).
		Build()
	require.NoError(t, err)

	var got []string
	for _, r := range p.Rules() {
		got = append(got, r.Selector())
	}
	assert.Equal(t, []string{"$.d", "$.e", "$.b", "$.c", "$.a"}, got)
}

func TestEqualOrdersKeepRegistrationOrder(t *testing.T) {
	must := mustMasker(t)
	a := must(NewConstant("a", 5, "a"))
	b := must(NewConstant("b", 5, "b"))

	p, err := NewBuilder().
		Rule("$.x", b).
		Rule("$.x", a).
		Build()
	require.NoError(t, err)

	// both rules match the same field; the last one applied wins
	out, err := p.MaskString(`{"x":"v"}`)
	require.NoError(t, err)
	assert.Equal(t, `{"x":"a"}`, out)
}

func TestLaterRulesSeeEarlierMutations(t *testing.T) {
	must := mustMasker(t)
	collapse := must(NewFunc("collapse", 1, document.KindObject, func(*document.Node) *document.Node {
		return document.String("collapsed")
	}))
	secret := must(NewReplaceString("secret", 2, DefaultReplacementString))

	p, err := NewBuilder().
		Rule("$.user.name", secret).
		Rule("$.user", collapse).
		Build()
	require.NoError(t, err)

	root, err := document.JSONCodec{}.Decode([]byte(`{"user":{"name":"alice"}}`))
	require.NoError(t, err)

	report := p.MaskDocument(root)
	require.Len(t, report.Rules, 2)
	assert.Equal(t, "$.user", report.Rules[0].Selector)
	assert.Equal(t, 1, report.Rules[0].Replaced)
	assert.Equal(t, 0, report.Rules[1].Matched)

	out, err := document.JSONCodec{}.Encode(root)
	require.NoError(t, err)
	assert.Equal(t, `{"user":"collapsed"}`, string(out))
}

func TestKindMismatchIsSkipped(t *testing.T) {
	p, err := NewDefaultBuilder().
		Deferred("number", "$.*").
		Deferred("secret", "$.*").
		Build()
	require.NoError(t, err)

	root, err := document.JSONCodec{}.Decode([]byte(`{"n":5,"s":"text","b":true,"z":null,"o":{"k":1},"a":[1]}`))
	require.NoError(t, err)

	report := p.MaskDocument(root)
	assert.Equal(t, 12, report.Matched)
	assert.Equal(t, 2, report.Replaced)
	assert.Equal(t, 10, report.Skipped)

	out, err := document.JSONCodec{}.Encode(root)
	require.NoError(t, err)
	assert.Equal(t, `{"n":0,"s":"******","b":true,"z":null,"o":{"k":1},"a":[1]}`, string(out))
}

func TestMaskingIsIdempotent(t *testing.T) {
	p, err := NewDefaultBuilder().
		Deferred("email", "$..email").
		Deferred("except-first-character", "$..name").
		Deferred("number", "$..age").
		Build()
	require.NoError(t, err)

	once, err := p.MaskString(`{"name":"Alice","email":"alice@example.com","age":31}`)
	require.NoError(t, err)
	twice, err := p.MaskString(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
	assert.Equal(t, `{"name":"A****","email":"*****@example.com","age":0}`, once)
}

func TestNoMatchIsNotAnError(t *testing.T) {
	p, err := NewDefaultBuilder().Deferred("secret", "$..missing").Build()
	require.NoError(t, err)

	out, err := p.MaskString(`{"a":1}`)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, out)
}

func TestMaskRootScalar(t *testing.T) {
	p, err := NewDefaultBuilder().Deferred("secret", "$").Build()
	require.NoError(t, err)

	out, err := p.MaskString(`"Qwerty123"`)
	require.NoError(t, err)
	assert.Equal(t, `"******"`, out)
}

func TestMaskDecodeError(t *testing.T) {
	p, err := NewDefaultBuilder().Deferred("secret", "$..password").Build()
	require.NoError(t, err)

	_, err = p.Mask([]byte(`{"password":`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode json document")
	assert.NotErrorIs(t, err, ErrConfiguration)
}

func TestMaskYAML(t *testing.T) {
	p, err := NewDefaultBuilder(WithCodec(document.YAMLCodec{Indent: 2})).
		Deferred("secret", "$..password").
		Deferred("remove", "$..token").
		Build()
	require.NoError(t, err)

	out, err := p.MaskString("user: alice\npassword: hunter2\ntoken: abc\n")
	require.NoError(t, err)
	assert.Equal(t, "user: alice\npassword: '******'\n", out)
}

func TestMaskYAMLMergeKeys(t *testing.T) {
	p, err := NewDefaultBuilder(WithCodec(document.YAMLCodec{Indent: 2})).
		Deferred("secret", "$.prod.password").
		Build()
	require.NoError(t, err)

	out, report, err := p.MaskWithReport([]byte("base: &b\n  password: s3cret\nprod:\n  <<: *b\n  host: x\n"))
	require.NoError(t, err)
	assert.Equal(t, "base:\n  password: s3cret\nprod:\n  password: '******'\n  host: x\n", string(out))
	assert.Equal(t, 1, report.Replaced)
}

func TestMaskRejectsHostileInput(t *testing.T) {
	tests := []struct {
		name  string
		codec document.Codec
		input string
	}{
		{
			name:  "deeply nested json",
			codec: document.JSONCodec{},
			input: strings.Repeat("[", 200_000) + strings.Repeat("]", 200_000),
		},
		{
			name:  "yaml alias expansion",
			codec: document.YAMLCodec{},
			input: yamlAliasBomb(7),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewDefaultBuilder(WithCodec(tt.codec)).Deferred("secret", "$..password").Build()
			require.NoError(t, err)

			_, err = p.MaskString(tt.input)
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrConfiguration)
		})
	}
}

// yamlAliasBomb returns a document whose last list expands to 10^levels
// scalars.
func yamlAliasBomb(levels int) string {
	var sb strings.Builder
	sb.WriteString("l0: &l0 [x, x, x, x, x, x, x, x, x, x]\n")
	for i := 1; i <= levels; i++ {
		refs := make([]string, 10)
		for j := range refs {
			refs[j] = fmt.Sprintf("*l%d", i-1)
		}
		fmt.Fprintf(&sb, "l%d: &l%d [%s]\n", i, i, strings.Join(refs, ", "))
	}
	return sb.String()
}

func TestWithCodec(t *testing.T) {
	p, err := NewDefaultBuilder().Deferred("secret", "$.password").Build()
	require.NoError(t, err)

	yp := p.WithCodec(document.YAMLCodec{})
	assert.Equal(t, "yaml", yp.Codec().Name())
	assert.Equal(t, "json", p.Codec().Name())
	assert.Equal(t, p.Len(), yp.Len())
}

func TestPipelineIsConcurrencySafe(t *testing.T) {
	p, err := NewDefaultBuilder().
		Deferred("remove", "$..documents").
		Deferred("secret", "$..password").
		Deferred("number", "$..id").
		Build()
	require.NoError(t, err)

	const input = `{"id":15,"password":"Qwerty123","documents":[{"id":123}]}`
	const want = `{"id":0,"password":"******"}`

	var wg sync.WaitGroup
	results := make([]string, 32)
	errs := make([]error, 32)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = p.MaskString(input)
		}()
	}
	wg.Wait()

	for i := range results {
		assert.NoError(t, errs[i])
		assert.Equal(t, want, results[i])
	}
}

func TestNewPipeline(t *testing.T) {
	_, err := NewPipeline(nil)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewPipeline([]Rule{})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewPipeline([]Rule{{}})
	assert.ErrorIs(t, err, ErrConfiguration)

	r, err := NewRule("$[", Remove())
	require.NoError(t, err)
	_, err = NewPipeline([]Rule{r})
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.ErrorIs(t, err, jsonpath.ErrSyntax)
}

func TestPipelineRulesAreCopies(t *testing.T) {
	r, err := NewRule("$.a", Remove())
	require.NoError(t, err)
	rules := []Rule{r}

	p, err := NewPipeline(rules)
	require.NoError(t, err)

	other, err := NewRule("$.b", Remove())
	require.NoError(t, err)
	rules[0] = other
	got := p.Rules()
	got[0] = other

	assert.Equal(t, "$.a", p.Rules()[0].Selector())
}

func TestNewRule(t *testing.T) {
	_, err := NewRule("", Remove())
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewRule("   ", Remove())
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewRule("$.a", nil)
	assert.ErrorIs(t, err, ErrConfiguration)

	r, err := NewRule("$.a", Remove())
	require.NoError(t, err)
	assert.Equal(t, "$.a", r.Selector())
	assert.True(t, IsRemove(r.Masker()))
	assert.Equal(t, "$.a -> remove", r.String())
}

func TestPassthrough(t *testing.T) {
	var m DocumentMasker = Passthrough{}
	out, err := m.Mask([]byte(`{"password":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"password":"x"}`, string(out))

	var _ DocumentMasker = (*Pipeline)(nil)
}

func TestReportMerge(t *testing.T) {
	p, err := NewDefaultBuilder().Deferred("secret", "$..password").Build()
	require.NoError(t, err)

	var total Report
	for _, doc := range []string{`{"password":"a"}`, `{"password":"b","x":{"password":1}}`} {
		_, report, err := p.MaskWithReport([]byte(doc))
		require.NoError(t, err)
		total.Merge(report)
	}

	assert.Equal(t, 2, total.Documents)
	require.Len(t, total.Rules, 1)
	assert.Equal(t, 3, total.Rules[0].Matched)
	assert.Equal(t, 2, total.Rules[0].Replaced)
	assert.Equal(t, 1, total.Rules[0].Skipped)
	assert.Equal(t, 2, total.Changed())
}

func TestMaskDocumentLogsAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	p, err := NewDefaultBuilder(WithLogger(logger)).Deferred("secret", "$.p").Build()
	require.NoError(t, err)
	_, err = p.MaskString(`{"p":"x"}`)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "built masking pipeline")
	assert.Contains(t, buf.String(), "masked document")
}

type recordingEngine struct {
	jsonpath.Engine
	deleted []string
}

func (e *recordingEngine) Delete(root *document.Node, selector string) int {
	e.deleted = append(e.deleted, selector)
	return e.Engine.Delete(root, selector)
}

func TestWithEngine(t *testing.T) {
	e := &recordingEngine{}
	p, err := NewDefaultBuilder(WithEngine(e)).Deferred("remove", "$.a").Build()
	require.NoError(t, err)

	out, err := p.MaskString(`{"a":1,"b":2}`)
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, out)
	assert.Equal(t, []string{"$.a"}, e.deleted)
}

func TestMaskerReturningNilBecomesNull(t *testing.T) {
	nilMasker, err := NewFunc("nil", 0, document.KindAny, func(*document.Node) *document.Node { return nil })
	require.NoError(t, err)

	p, err := NewBuilder().Rule("$.a", nilMasker).Rule("$", nilMasker).Build()
	require.NoError(t, err)

	out, err := p.MaskString(`{"a":1}`)
	require.NoError(t, err)
	assert.Equal(t, "null", out)
}
