package cli

import (
	"strings"
	"testing"

	"github.com/c-bata/go-prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLines(t *testing.T) {
	t.Parallel()

	var got []string
	err := RunLines(strings.NewReader("a.txt\n\n  b.txt \r\nc"), func(line string) { got = append(got, line) })
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt", "c"}, got)
	assert.Nil(t, NoComplete(prompt.Document{}))
}
