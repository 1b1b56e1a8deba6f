package richtext

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireWellFormed(t *testing.T, blocks []Block) {
	t.Helper()
	require.NotEmpty(t, blocks)
	for _, b := range blocks {
		require.NotEmpty(t, b.Runs)
	}
}

func TestDecodeEmptyYieldsPlaceholder(t *testing.T) {
	for _, in := range []string{"", "   ", "<p></p>", "<div><br></div>", "<script>alert(1)</script>"} {
		blocks := Decode(in)
		require.Len(t, blocks, 1, "input %q", in)
		require.Len(t, blocks[0].Runs, 1)
		assert.Equal(t, "Não informado", blocks[0].Runs[0].Text)
	}
}

func TestDecodePlainTextIsIdentity(t *testing.T) {
	for _, in := range []string{"Processo sem marcação", "  espaços preservados ", "linha 1\nlinha 2"} {
		blocks := Decode(in)
		require.Len(t, blocks, 1)
		require.Len(t, blocks[0].Runs, 1)
		assert.Equal(t, Run{Text: in}, blocks[0].Runs[0])
	}
}

func TestDecodeParagraphsAndStyles(t *testing.T) {
	blocks := Decode(`<p>Texto <strong>forte</strong> e <em>ênfase</em></p><div><u>sub</u> <span style="background-color: rgb(255, 255, 0);">marca</span></div>`)
	require.Len(t, blocks, 2)

	assert.Equal(t, []Run{
		{Text: "Texto "},
		{Text: "forte", Bold: true},
		{Text: " e "},
		{Text: "ênfase", Italic: true},
	}, blocks[0].Runs)
	assert.Equal(t, []Run{
		{Text: "sub", Underline: true},
		{Text: " "},
		{Text: "marca", Highlighted: true},
	}, blocks[1].Runs)
}

func TestDecodeNestedStylesAccumulate(t *testing.T) {
	blocks := Decode(`<p><b><i>ambos</i></b></p>`)
	require.Len(t, blocks, 1)
	assert.Equal(t, []Run{{Text: "ambos", Bold: true, Italic: true}}, blocks[0].Runs)
}

func TestDecodeInlineStyleDeclarations(t *testing.T) {
	blocks := Decode(`<p style="font-weight: bold;">MINISTÉRIO</p><p><span style="font-style:italic;text-decoration: underline">x</span></p>`)
	require.Len(t, blocks, 2)
	assert.True(t, blocks[0].Runs[0].Bold)
	assert.Equal(t, Run{Text: "x", Italic: true, Underline: true}, blocks[1].Runs[0])
}

func TestDecodeAnyBackgroundCollapsesToHighlight(t *testing.T) {
	for _, color := range []string{"yellow", "#00ff00", "rgb(1,2,3)"} {
		blocks := Decode(`<span style="background-color:` + color + `">x</span>`)
		assert.True(t, blocks[0].Runs[0].Highlighted, color)
	}
	blocks := Decode(`<span style="background-color: transparent">x</span>`)
	assert.False(t, blocks[0].Runs[0].Highlighted)
}

func TestDecodeBreakSplitsBlocks(t *testing.T) {
	blocks := Decode("primeira<br>segunda")
	require.Len(t, blocks, 2)
	assert.Equal(t, "primeira", blocks[0].Text())
	assert.Equal(t, "segunda", blocks[1].Text())
}

func TestDecodeCollapsesSourceWhitespace(t *testing.T) {
	blocks := Decode("<p>a\nb</p>")
	require.Len(t, blocks, 1)
	assert.Equal(t, []Run{{Text: "a b"}}, blocks[0].Runs)

	blocks = Decode("<p class=MsoNormal>\n  Prestação de contas anuais do\r\n<b>exercício</b>\n de 2023\n</p>")
	require.Len(t, blocks, 1)
	assert.Equal(t, []Run{
		{Text: "Prestação de contas anuais do "},
		{Text: "exercício", Bold: true},
		{Text: " de 2023"},
	}, blocks[0].Runs)
}

func TestDecodeKeepsPreformattedLines(t *testing.T) {
	blocks := Decode("<pre>linha 1\nlinha 2</pre>")
	require.Len(t, blocks, 1)
	assert.Equal(t, "linha 1\nlinha 2", blocks[0].Text())
}

func TestDecodeMalformedMarkup(t *testing.T) {
	inputs := []string{
		"<p>sem fechamento <b>negrito",
		"</div></p>texto solto",
		"<<<>>>",
		"<p attr=\"unterminated>abc",
		strings.Repeat("<div>", 500) + "fundo" + strings.Repeat("</span>", 3),
		"\xff\xfe\x00invalid utf8",
	}
	for _, in := range inputs {
		requireWellFormed(t, Decode(in))
	}
}

func TestDecodeTotalOnRandomInput(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := []byte("<>/=\"' abpdivstrongemu;:-\x00\xff\n&#")
	for i := 0; i < 500; i++ {
		buf := make([]byte, rng.Intn(64))
		for j := range buf {
			buf[j] = alphabet[rng.Intn(len(alphabet))]
		}
		requireWellFormed(t, Decode(string(buf)))
	}
}

func TestDecodeIsPure(t *testing.T) {
	in := `<p>a <b>b</b></p><p style="background-color:red">c</p>`
	assert.Equal(t, Decode(in), Decode(in))
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "um\ndois", PlainText("<p>um</p><p>dois</p>"))
	assert.Equal(t, "Não informado", PlainText(""))
}
