package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuilder_Plain(t *testing.T) {
	got := NewBuilder(t, "a", "b").WithRow("1", "2").WithRow("3", "4").Build()
	require.Equal(t, "a,b\n1,2\n3,4\n", got)
}

func TestBuilder_QuotesWhenNeeded(t *testing.T) {
	got := NewBuilder(t, "a", "b").
		WithRow("x,y", `say "hi"`).
		WithRow(" padded", "two\nlines").
		WithRow("", "plain").
		Build()
	require.Equal(t, "a,b\n\"x,y\",\"say \"\"hi\"\"\"\n\" padded\",\"two\nlines\"\n,plain\n", got)
}

func TestBuilder_SingleEmptyColumnIsQuoted(t *testing.T) {
	got := NewBuilder(t, "a").WithRow("").Build()
	require.Equal(t, "a\n\"\"\n", got)
}

func TestBuilder_DelimiterQuoteAndCRLF(t *testing.T) {
	got := NewBuilder(t, "a", "b").WithDelimiter(';').WithQuote('\'').WithCRLF().WithRow("it's", "a,b").Build()
	require.Equal(t, "a;b\r\n'it''s';a,b\r\n", got)
}

func TestPeople(t *testing.T) {
	b := People(t)
	require.Equal(t, "id;name;birthday\n1;Alice;1979-12-31\n2;Bob;1977-06-11\n3;Horst;1990-01-02\n", b.Build())
	require.Equal(t, map[string]string{"id": "2", "name": "Bob", "birthday": "1977-06-11"}, b.Rows()[1])
}
