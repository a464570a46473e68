package follow

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bimmerbailey/dmask/internal/masking"
)

func createTempLogFile(t *testing.T, content string) string {
	t.Helper()
	filePath := filepath.Join(t.TempDir(), "app.ndjson")
	require.NoError(t, os.WriteFile(filePath, []byte(content), 0o644))
	return filePath
}

func appendToFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(content)
	require.NoError(t, err)
}

func secretPipeline(t *testing.T) *masking.Pipeline {
	t.Helper()
	p, err := masking.NewDefaultBuilder().Deferred("secret", "$..password").Build()
	require.NoError(t, err)
	return p
}

// collector records output lines; it is safe for use from the follower
// goroutine.
type collector struct {
	mu    sync.Mutex
	lines []Line
}

func (c *collector) output(l Line) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	l.Data = append([]byte(nil), l.Data...)
	c.lines = append(c.lines, l)
	return nil
}

func (c *collector) get() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func data(lines []Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = string(l.Data)
	}
	return out
}

func TestFollower_InitialLines(t *testing.T) {
	content := `{"n":1,"password":"a"}
{"n":2,"password":"b"}

{"n":3,"password":"c"}
{"n":4,"password":"d"}
`
	tests := []struct {
		name  string
		lines int
		want  []string
		nums  []int
	}{
		{
			name:  "last two lines",
			lines: 2,
			want:  []string{`{"n":3,"password":"******"}`, `{"n":4,"password":"******"}`},
			nums:  []int{4, 5},
		},
		{
			name:  "more lines than exist",
			lines: 10,
			want: []string{
				`{"n":1,"password":"******"}`,
				`{"n":2,"password":"******"}`,
				`{"n":3,"password":"******"}`,
				`{"n":4,"password":"******"}`,
			},
			nums: []int{1, 2, 4, 5},
		},
		{
			name:  "zero lines",
			lines: 0,
			want:  []string{},
			nums:  []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &collector{}
			f := New(Options{
				FilePath: createTempLogFile(t, content),
				Lines:    tt.lines,
				Masker:   secretPipeline(t),
				Output:   c.output,
			})

			require.NoError(t, f.Run(context.Background()))

			got := c.get()
			assert.Equal(t, tt.want, data(got))
			nums := make([]int, len(got))
			for i, l := range got {
				nums[i] = l.Num
			}
			assert.Equal(t, tt.nums, nums)
		})
	}
}

func TestFollower_FinalLineWithoutNewline(t *testing.T) {
	c := &collector{}
	f := New(Options{
		FilePath: createTempLogFile(t, "{\"password\":\"a\"}\n{\"password\":\"b\"}"),
		Lines:    5,
		Masker:   secretPipeline(t),
		Output:   c.output,
	})

	require.NoError(t, f.Run(context.Background()))
	assert.Equal(t, []string{`{"password":"******"}`, `{"password":"******"}`}, data(c.get()))
}

func TestFollower_InvalidLines(t *testing.T) {
	content := "{\"password\":\"a\"}\nnot json password=hunter2\n"

	t.Run("fail closed", func(t *testing.T) {
		c := &collector{}
		f := New(Options{
			FilePath: createTempLogFile(t, content),
			Lines:    10,
			Masker:   secretPipeline(t),
			Output:   c.output,
		})

		require.NoError(t, f.Run(context.Background()))

		got := c.get()
		require.Len(t, got, 2)
		assert.False(t, got[0].Invalid)
		assert.True(t, got[1].Invalid)
		assert.Equal(t, InvalidNotice, string(got[1].Data))
	})

	t.Run("pass invalid", func(t *testing.T) {
		c := &collector{}
		f := New(Options{
			FilePath:    createTempLogFile(t, content),
			Lines:       10,
			PassInvalid: true,
			Masker:      secretPipeline(t),
			Output:      c.output,
		})

		require.NoError(t, f.Run(context.Background()))

		got := c.get()
		require.Len(t, got, 2)
		assert.True(t, got[1].Invalid)
		assert.Equal(t, "not json password=hunter2", string(got[1].Data))
	})
}

func TestFollower_NilMaskerPassesThrough(t *testing.T) {
	c := &collector{}
	f := New(Options{
		FilePath: createTempLogFile(t, "plain text\n"),
		Lines:    1,
		Output:   c.output,
	})

	require.NoError(t, f.Run(context.Background()))
	assert.Equal(t, []string{"plain text"}, data(c.get()))
}

func TestFollower_RequiresOutput(t *testing.T) {
	f := New(Options{FilePath: createTempLogFile(t, "{}\n")})
	assert.Error(t, f.Run(context.Background()))
}

func TestFollower_MissingFile(t *testing.T) {
	c := &collector{}
	f := New(Options{FilePath: filepath.Join(t.TempDir(), "missing.ndjson"), Output: c.output})
	assert.ErrorIs(t, f.Run(context.Background()), os.ErrNotExist)
}

func TestFollower_FollowAppendedLines(t *testing.T) {
	path := createTempLogFile(t, "{\"n\":1,\"password\":\"a\"}\n")
	c := &collector{}
	f := New(Options{
		FilePath: path,
		Lines:    1,
		Follow:   true,
		Masker:   secretPipeline(t),
		Output:   c.output,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	require.Eventually(t, func() bool { return len(c.get()) == 1 }, 2*time.Second, 10*time.Millisecond)

	// Give the watcher time to start.
	time.Sleep(100 * time.Millisecond)
	appendToFile(t, path, "{\"n\":2,\"password\":\"b\"}\n{\"n\":3,")
	appendToFile(t, path, "\"password\":\"c\"}\n")

	require.Eventually(t, func() bool { return len(c.get()) == 3 }, 2*time.Second, 10*time.Millisecond)

	got := c.get()
	assert.Equal(t, []string{
		`{"n":1,"password":"******"}`,
		`{"n":2,"password":"******"}`,
		`{"n":3,"password":"******"}`,
	}, data(got))
	assert.Equal(t, 3, got[2].Num)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("follower did not stop after cancel")
	}
}

func TestFollower_RotationWithoutFollowRotate(t *testing.T) {
	path := createTempLogFile(t, "{}\n")
	c := &collector{}
	f := New(Options{FilePath: path, Follow: true, Output: c.output})

	done := make(chan error, 1)
	go func() { done <- f.Run(context.Background()) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.Remove(path))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrRotated)
	case <-time.After(2 * time.Second):
		t.Fatal("follower did not stop after rotation")
	}
}
