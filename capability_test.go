package unistor_test

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unistor/unistor"
)

// gateAccessor counts calls reaching the driver so tests can prove the
// capability gate rejects before any I/O.
type gateAccessor struct {
	capability unistor.Capability
	calls      int
}

func (a *gateAccessor) Info() unistor.Info {
	return unistor.Info{Scheme: "gate", Root: "/", Capability: a.capability}
}

func (a *gateAccessor) Stat(ctx context.Context, path string, o unistor.OpStat) (unistor.Metadata, error) {
	a.calls++
	return unistor.Metadata{Path: path}, nil
}

func (a *gateAccessor) Read(ctx context.Context, path string, o unistor.OpRead) (unistor.Reader, error) {
	a.calls++
	return nil, &unistor.Error{Kind: unistor.KindNotFound, Op: "read", Path: path}
}

func (a *gateAccessor) Write(ctx context.Context, path string, o unistor.OpWrite) (unistor.Writer, error) {
	a.calls++
	return nil, &unistor.Error{Kind: unistor.KindNotFound, Op: "write", Path: path}
}

func (a *gateAccessor) Delete(ctx context.Context, path string) error {
	a.calls++
	return nil
}

func (a *gateAccessor) List(ctx context.Context, path string, o unistor.OpList) (unistor.Lister, error) {
	a.calls++
	return nil, &unistor.Error{Kind: unistor.KindNotFound, Op: "list", Path: path}
}

func (a *gateAccessor) Copy(ctx context.Context, src, dst string) error {
	a.calls++
	return nil
}

func (a *gateAccessor) Rename(ctx context.Context, src, dst string) error {
	a.calls++
	return nil
}

func (a *gateAccessor) Presign(ctx context.Context, path string, o unistor.OpPresign) (*url.URL, error) {
	a.calls++
	return url.Parse("https://example.com/" + path)
}

func TestCapabilityGateRejectsBeforeIO(t *testing.T) {
	ctx := context.Background()
	acc := &gateAccessor{capability: unistor.Capability{
		Stat:   true,
		Read:   true,
		Write:  true,
		Delete: true,
		List:   true,
	}}
	op, err := unistor.NewOperator(acc)
	require.NoError(t, err)

	cases := []struct {
		name string
		call func() error
	}{
		{"range read", func() error {
			_, err := op.ReadWith(ctx, "a", unistor.OpRead{Offset: 1, Length: 2})
			return err
		}},
		{"stat if-match", func() error {
			_, err := op.StatWith(ctx, "a", unistor.OpStat{IfMatch: "etag"})
			return err
		}},
		{"versioned read", func() error {
			_, err := op.ReadWith(ctx, "a", unistor.OpRead{Version: "v1"})
			return err
		}},
		{"append", func() error {
			return op.WriteWith(ctx, "a", nil, unistor.OpWrite{Append: true})
		}},
		{"conditional write", func() error {
			return op.WriteWith(ctx, "a", nil, unistor.OpWrite{IfMatch: "etag"})
		}},
		{"user meta", func() error {
			return op.WriteWith(ctx, "a", nil, unistor.OpWrite{UserMeta: map[string]string{"k": "v"}})
		}},
		{"recursive list", func() error {
			_, err := op.ListAll(ctx, "", unistor.OpList{Recursive: true})
			return err
		}},
		{"copy", func() error { return op.Copy(ctx, "a", "b") }},
		{"rename", func() error { return op.Rename(ctx, "a", "b") }},
		{"presign", func() error {
			_, err := op.Presign(ctx, "a", unistor.OpPresign{})
			return err
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			before := acc.calls
			err := c.call()
			assert.True(t, unistor.IsUnsupported(err), "expected unsupported, got %v", err)
			assert.Equal(t, before, acc.calls, "driver must not be reached")
		})
	}
}

func TestCapabilitySupportedOptionPasses(t *testing.T) {
	ctx := context.Background()
	acc := &gateAccessor{capability: unistor.Capability{Stat: true, StatWithIfMatch: true}}
	op, err := unistor.NewOperator(acc)
	require.NoError(t, err)

	_, err = op.StatWith(ctx, "a", unistor.OpStat{IfMatch: "etag"})
	require.NoError(t, err)
	assert.Equal(t, 1, acc.calls)
}
