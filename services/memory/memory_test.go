package memory

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unistor/unistor"
)

func put(t *testing.T, s *Memory, path, content string, opt unistor.OpWrite) error {
	t.Helper()
	w, err := s.Write(context.Background(), path, opt)
	require.NoError(t, err)
	if _, err := io.WriteString(w, content); err != nil {
		return err
	}
	return w.Close()
}

func get(t *testing.T, s *Memory, path string, opt unistor.OpRead) (string, error) {
	t.Helper()
	r, err := s.Read(context.Background(), path, opt)
	if err != nil {
		return "", err
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	return string(b), err
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := New(nil)
	require.NoError(t, err)

	require.NoError(t, put(t, s, "a.txt", "hello", unistor.OpWrite{ContentType: "text/plain"}))

	m, err := s.Stat(ctx, "a.txt", unistor.OpStat{})
	require.NoError(t, err)
	assert.EqualValues(t, 5, m.Size)
	assert.Equal(t, "text/plain", m.ContentType)
	assert.NotEmpty(t, m.ETag)
	assert.False(t, m.LastModified.IsZero())

	content, err := get(t, s, "a.txt", unistor.FullRead)
	require.NoError(t, err)
	assert.Equal(t, "hello", content)

	_, err = s.Stat(ctx, "missing", unistor.OpStat{})
	assert.True(t, unistor.IsNotFound(err))
}

func TestRangeReadClamps(t *testing.T) {
	s, err := New(nil)
	require.NoError(t, err)
	require.NoError(t, put(t, s, "a.txt", "hello world", unistor.OpWrite{}))

	content, err := get(t, s, "a.txt", unistor.OpRead{Offset: 6, Length: 5})
	require.NoError(t, err)
	assert.Equal(t, "world", content)

	// A range past the end reads empty, not an error.
	content, err = get(t, s, "a.txt", unistor.OpRead{Offset: 100})
	require.NoError(t, err)
	assert.Empty(t, content)

	content, err = get(t, s, "a.txt", unistor.OpRead{Offset: 6, Length: 100})
	require.NoError(t, err)
	assert.Equal(t, "world", content)
}

func TestWriterIsInvisibleUntilClose(t *testing.T) {
	ctx := context.Background()
	s, err := New(nil)
	require.NoError(t, err)

	w, err := s.Write(ctx, "a.txt", unistor.OpWrite{})
	require.NoError(t, err)
	_, err = io.WriteString(w, "pending")
	require.NoError(t, err)

	_, err = s.Stat(ctx, "a.txt", unistor.OpStat{})
	assert.True(t, unistor.IsNotFound(err))

	require.NoError(t, w.Close())
	content, err := get(t, s, "a.txt", unistor.FullRead)
	require.NoError(t, err)
	assert.Equal(t, "pending", content)

	// A dead handle rejects further use.
	_, err = io.WriteString(w, "more")
	assert.Error(t, err)
	assert.Error(t, w.Close())
}

func TestWriterAbortDiscards(t *testing.T) {
	ctx := context.Background()
	s, err := New(nil)
	require.NoError(t, err)
	require.NoError(t, put(t, s, "a.txt", "old", unistor.OpWrite{}))

	w, err := s.Write(ctx, "a.txt", unistor.OpWrite{})
	require.NoError(t, err)
	_, err = io.WriteString(w, "new")
	require.NoError(t, err)
	require.NoError(t, w.Abort())

	content, err := get(t, s, "a.txt", unistor.FullRead)
	require.NoError(t, err)
	assert.Equal(t, "old", content)
}

func TestAppend(t *testing.T) {
	s, err := New(nil)
	require.NoError(t, err)
	require.NoError(t, put(t, s, "a.txt", "hello", unistor.OpWrite{}))
	require.NoError(t, put(t, s, "a.txt", " world", unistor.OpWrite{Append: true}))

	content, err := get(t, s, "a.txt", unistor.FullRead)
	require.NoError(t, err)
	assert.Equal(t, "hello world", content)

	// Append to a missing object creates it.
	require.NoError(t, put(t, s, "b.txt", "fresh", unistor.OpWrite{Append: true}))
	content, err = get(t, s, "b.txt", unistor.FullRead)
	require.NoError(t, err)
	assert.Equal(t, "fresh", content)
}

func TestConditionalWrite(t *testing.T) {
	ctx := context.Background()
	s, err := New(nil)
	require.NoError(t, err)
	require.NoError(t, put(t, s, "a.txt", "v1", unistor.OpWrite{}))

	m, err := s.Stat(ctx, "a.txt", unistor.OpStat{})
	require.NoError(t, err)

	require.NoError(t, put(t, s, "a.txt", "v2", unistor.OpWrite{IfMatch: m.ETag}))

	// The etag changed on commit; the old one no longer matches.
	err = put(t, s, "a.txt", "v3", unistor.OpWrite{IfMatch: m.ETag})
	assert.Equal(t, unistor.KindConditionNotMatch, unistor.ErrorKind(err))

	content, err := get(t, s, "a.txt", unistor.FullRead)
	require.NoError(t, err)
	assert.Equal(t, "v2", content)
}

func TestConditionalRead(t *testing.T) {
	ctx := context.Background()
	s, err := New(nil)
	require.NoError(t, err)
	require.NoError(t, put(t, s, "a.txt", "hello", unistor.OpWrite{}))

	m, err := s.Stat(ctx, "a.txt", unistor.OpStat{})
	require.NoError(t, err)

	content, err := get(t, s, "a.txt", unistor.OpRead{IfMatch: m.ETag})
	require.NoError(t, err)
	assert.Equal(t, "hello", content)

	_, err = get(t, s, "a.txt", unistor.OpRead{IfMatch: "stale"})
	assert.Equal(t, unistor.KindConditionNotMatch, unistor.ErrorKind(err))

	_, err = s.Stat(ctx, "a.txt", unistor.OpStat{IfMatch: "stale"})
	assert.Equal(t, unistor.KindConditionNotMatch, unistor.ErrorKind(err))
}

func TestReadSnapshotSurvivesOverwrite(t *testing.T) {
	ctx := context.Background()
	s, err := New(nil)
	require.NoError(t, err)
	require.NoError(t, put(t, s, "a.txt", "before", unistor.OpWrite{}))

	r, err := s.Read(ctx, "a.txt", unistor.FullRead)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, put(t, s, "a.txt", "after", unistor.OpWrite{}))

	b, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "before", string(b))
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, err := New(nil)
	require.NoError(t, err)
	require.NoError(t, put(t, s, "a.txt", "hello", unistor.OpWrite{}))

	require.NoError(t, s.Delete(ctx, "a.txt"))
	require.NoError(t, s.Delete(ctx, "a.txt"))
	_, err = s.Stat(ctx, "a.txt", unistor.OpStat{})
	assert.True(t, unistor.IsNotFound(err))
}

func drain(t *testing.T, l unistor.Lister) []string {
	t.Helper()
	var paths []string
	for {
		e, err := l.Next(context.Background())
		require.NoError(t, err)
		if e == nil {
			return paths
		}
		paths = append(paths, e.Path)
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s, err := New(nil)
	require.NoError(t, err)
	for _, p := range []string{"dir/a.txt", "dir/sub/b.txt", "dir/sub/c.txt", "top.txt"} {
		require.NoError(t, put(t, s, p, "x", unistor.OpWrite{}))
	}

	l, err := s.List(ctx, "dir", unistor.OpList{})
	require.NoError(t, err)
	assert.Equal(t, []string{"dir/a.txt", "dir/sub/"}, drain(t, l))

	l, err = s.List(ctx, "dir", unistor.OpList{Recursive: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"dir/a.txt", "dir/sub/b.txt", "dir/sub/c.txt"}, drain(t, l))

	l, err = s.List(ctx, "", unistor.OpList{})
	require.NoError(t, err)
	assert.Equal(t, []string{"dir/", "top.txt"}, drain(t, l))

	l, err = s.List(ctx, "empty", unistor.OpList{})
	require.NoError(t, err)
	assert.Empty(t, drain(t, l))
}

func TestCopyAndRename(t *testing.T) {
	ctx := context.Background()
	s, err := New(nil)
	require.NoError(t, err)
	require.NoError(t, put(t, s, "a.txt", "hello", unistor.OpWrite{}))

	require.NoError(t, s.Copy(ctx, "a.txt", "b.txt"))
	content, err := get(t, s, "a.txt", unistor.FullRead)
	require.NoError(t, err)
	assert.Equal(t, "hello", content)
	content, err = get(t, s, "b.txt", unistor.FullRead)
	require.NoError(t, err)
	assert.Equal(t, "hello", content)

	require.NoError(t, s.Rename(ctx, "b.txt", "c.txt"))
	_, err = s.Stat(ctx, "b.txt", unistor.OpStat{})
	assert.True(t, unistor.IsNotFound(err))
	content, err = get(t, s, "c.txt", unistor.FullRead)
	require.NoError(t, err)
	assert.Equal(t, "hello", content)

	assert.True(t, unistor.IsNotFound(s.Copy(ctx, "missing", "d.txt")))
	assert.True(t, unistor.IsNotFound(s.Rename(ctx, "missing", "d.txt")))
}
