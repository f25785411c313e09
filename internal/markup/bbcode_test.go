package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownConverterLists(t *testing.T) {
	conv := MarkdownConverter()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"unordered",
			"[ul][li]one[/li][li]two[/li][/ul]",
			"\n- one\n- two\n",
		},
		{
			"ordered numbering",
			"[ol][li]first[/li][li]second[/li][li]third[/li][/ol]",
			"\n1. first\n2. second\n3. third\n",
		},
		{
			"nested indents",
			"[ul][li]outer[/li][ol][li]inner[/li][/ol][/ul]",
			"\n- outer\n  1. inner\n",
		},
		{
			"stray item becomes bullet",
			"[li]lonely[/li]",
			"\n- lonely",
		},
		{
			"text without lists untouched",
			"plain **text**",
			"plain **text**",
		},
		{
			"surrounding prose kept",
			"before [ul][li]a[/li][/ul] after",
			"before \n- a\n after",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := conv.Convert(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransformDelegatesListsToConverter(t *testing.T) {
	tr, err := New(NopResolver{}, NopUserLookup{}, Options{Converter: MarkdownConverter()})
	require.NoError(t, err)

	res := tr.Transform("[list=1][*]alpha[*]beta[/list:o]")
	assert.Contains(t, res.Raw, "1. alpha")
	assert.Contains(t, res.Raw, "2. beta")
}
