package datasource

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/csvsource/internal/csvparse"
)

func TestRegistry_HandlesAreSequential(t *testing.T) {
	r := NewRegistry(csvparse.DefaultOptions())

	require.Equal(t, Handle(1), r.Register("a\n1", ParserOptions{}))
	require.Equal(t, Handle(2), r.Register("a\n1", ParserOptions{}))
	require.Equal(t, Handle(3), r.Register("", ParserOptions{}))
	require.Equal(t, 3, r.Len())
}

func TestRegistry_StoresPayloadVerbatim(t *testing.T) {
	r := NewRegistry(csvparse.DefaultOptions())
	payload := "not \"valid csv"

	h := r.Register(payload, ParserOptions{})
	q, ok := r.Lookup(h)
	require.True(t, ok)
	require.Equal(t, payload, q.Payload)
}

func TestRegistry_MergesOptions(t *testing.T) {
	defaults := csvparse.DefaultOptions()

	tests := []struct {
		name      string
		overrides ParserOptions
		want      func(o *csvparse.Options)
	}{
		{
			name:      "no overrides",
			overrides: ParserOptions{},
			want:      func(o *csvparse.Options) {},
		},
		{
			name:      "delimiter",
			overrides: ParserOptions{Delimiter: ';'},
			want:      func(o *csvparse.Options) { o.Delimiter = ';' },
		},
		{
			name:      "quote carries escape along",
			overrides: ParserOptions{Quote: '\''},
			want:      func(o *csvparse.Options) { o.Quote = '\''; o.Escape = '\'' },
		},
		{
			name:      "explicit escape wins",
			overrides: ParserOptions{Quote: '\'', Escape: '\\'},
			want:      func(o *csvparse.Options) { o.Quote = '\''; o.Escape = '\\' },
		},
		{
			name:      "comment",
			overrides: ParserOptions{Comment: '#'},
			want:      func(o *csvparse.Options) { o.Comment = '#' },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRegistry(defaults)
			h := r.Register("a", tc.overrides)

			want := defaults
			tc.want(&want)

			q, ok := r.Lookup(h)
			require.True(t, ok)
			require.Equal(t, want, q.Options)
		})
	}
}

func TestRegistry_OverridesDoNotLeak(t *testing.T) {
	r := NewRegistry(csvparse.DefaultOptions())

	first := r.Register("a;b", ParserOptions{Delimiter: ';'})
	second := r.Register("a,b", ParserOptions{})

	q1, _ := r.Lookup(first)
	q2, _ := r.Lookup(second)
	require.Equal(t, ';', q1.Options.Delimiter)
	require.Equal(t, ',', q2.Options.Delimiter)
}

func TestRegistry_EscapeKeptWhenDefaultsDiffer(t *testing.T) {
	defaults := csvparse.DefaultOptions()
	defaults.Escape = '\\'
	r := NewRegistry(defaults)

	q, _ := r.Lookup(r.Register("a", ParserOptions{Quote: '\''}))
	require.Equal(t, '\'', q.Options.Quote)
	require.Equal(t, '\\', q.Options.Escape)
}

func TestRegistry_Close(t *testing.T) {
	r := NewRegistry(csvparse.DefaultOptions())
	h := r.Register("a", ParserOptions{})

	r.Close()
	_, ok := r.Lookup(h)
	require.False(t, ok)
	require.Zero(t, r.Len())
	require.Equal(t, Handle(2), r.Register("b", ParserOptions{}))
}

func TestRegistry_ConcurrentRegisterYieldsDistinctHandles(t *testing.T) {
	r := NewRegistry(csvparse.DefaultOptions())

	const n = 100
	handles := make(chan Handle, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handles <- r.Register("a", ParserOptions{})
		}()
	}
	wg.Wait()
	close(handles)

	seen := make(map[Handle]bool, n)
	for h := range handles {
		require.False(t, seen[h], "handle %d issued twice", h)
		require.GreaterOrEqual(t, h, Handle(1))
		require.LessOrEqual(t, h, Handle(n))
		seen[h] = true
	}
	require.Len(t, seen, n)
}

func TestValidate(t *testing.T) {
	base := Request{Handle: 1, Attributes: []string{"a"}}

	require.NoError(t, Validate(base))

	withPage := base
	withPage.Page = intPtr(3)
	withPage.Limit = intPtr(10)
	require.NoError(t, Validate(withPage))

	tests := []struct {
		name   string
		mutate func(r *Request)
		op     string
	}{
		{"order", func(r *Request) { r.Order = []OrderTerm{{Attribute: "a"}} }, "order"},
		{"order before attributes", func(r *Request) { r.Order = []OrderTerm{{Attribute: "a"}}; r.Attributes = nil }, "order"},
		{"page", func(r *Request) { r.Page = intPtr(0) }, "page"},
		{"limit", func(r *Request) { r.Limit = intPtr(-5) }, "limit"},
		{"no attributes", func(r *Request) { r.Attributes = []string{} }, "attributes"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.mutate(&req)

			err := Validate(req)
			require.ErrorIs(t, err, ErrConfiguration)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			require.Equal(t, tc.op, cfgErr.Op)
		})
	}
}
