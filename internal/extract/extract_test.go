package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTextFromTxt(t *testing.T) {
	text, err := Text("cuento.txt", []byte("  Gepeto tallo un muneco.\n"))
	require.NoError(t, err)
	require.Equal(t, "Gepeto tallo un muneco.", text)
}

func TestTextFromTxtUppercaseExt(t *testing.T) {
	text, err := Text("CUENTO.TXT", []byte("hola"))
	require.NoError(t, err)
	require.Equal(t, "hola", text)
}

func TestTextEmptyTxt(t *testing.T) {
	_, err := Text("vacio.txt", []byte("   \n"))
	require.Error(t, err)
}

func TestTextUnsupportedExtension(t *testing.T) {
	_, err := Text("imagen.png", []byte{0x89, 0x50})
	require.Error(t, err)
}

func TestTextMalformedPdf(t *testing.T) {
	_, err := Text("roto.pdf", []byte("not a pdf"))
	require.Error(t, err)
}
