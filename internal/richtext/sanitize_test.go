package richtext

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeDropsScripts(t *testing.T) {
	out := Sanitize(`<p onclick="x()">ok<script>alert(1)</script></p>`)
	assert.NotContains(t, out, "script")
	assert.NotContains(t, out, "onclick")
	assert.Contains(t, out, "ok")
}

func TestSanitizeKeepsFormatting(t *testing.T) {
	out := Sanitize(`<p><strong>a</strong><span style="background-color: yellow">b</span></p>`)
	blocks := Decode(out)
	require.Len(t, blocks, 1)
	assert.True(t, blocks[0].Runs[0].Bold)
	assert.True(t, blocks[0].Runs[1].Highlighted)
}

func TestIsBlank(t *testing.T) {
	assert.True(t, IsBlank(""))
	assert.True(t, IsBlank("<p><br></p>"))
	assert.True(t, IsBlank("<p>&nbsp;</p>"))
	assert.False(t, IsBlank("<p>x</p>"))
}

func TestMarkdown(t *testing.T) {
	md, err := Markdown("<p>um <strong>dois</strong></p>")
	require.NoError(t, err)
	assert.True(t, strings.Contains(md, "**dois**"), md)

	md, err = Markdown("")
	require.NoError(t, err)
	assert.Contains(t, md, "Não informado")
}
