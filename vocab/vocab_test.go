package vocab

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vikesh-raj/go-sentencepiece-encoder/sentencepiece"
	"google.golang.org/protobuf/proto"
)

const bertVocab = "[PAD]\n[UNK]\n[CLS]\n[SEP]\n[MASK]\nhello\nworld\n##s\n"

func TestReadVocab(t *testing.T) {
	v, err := Read(strings.NewReader(bertVocab))
	require.NoError(t, err)
	assert.Equal(t, 8, v.Size())
	specials := v.Specials()
	assert.Equal(t, 0, specials.Pad)
	assert.Equal(t, 1, specials.Unk)
	assert.Equal(t, 2, specials.Cls)
	assert.Equal(t, 3, specials.Sep)
	assert.Equal(t, 4, specials.Mask)
	assert.NoError(t, specials.Validate())

	assert.Equal(t, 5, v.Get("hello"))
	assert.Equal(t, specials.Unk, v.Get("nope"))
	assert.Equal(t, "world", v.Token(6))
	assert.Equal(t, "[UNK]", v.Token(99))
	assert.True(t, v.Contains("##s"))
}

func TestMissingSpecialsAreAppended(t *testing.T) {
	v := New([]string{"a", "b", "c"})
	specials := v.Specials()
	assert.Equal(t, 8, v.Size())
	assert.Equal(t, 3, specials.Pad)
	assert.Equal(t, 7, specials.Mask)
	assert.Equal(t, MaskToken, v.Token(specials.Mask))
	assert.NoError(t, specials.Validate())
}

func TestBlankLinesKeepTheirSlot(t *testing.T) {
	v, err := Read(strings.NewReader("[PAD]\n\nfoo\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, v.Get("foo"))
	assert.False(t, v.Contains(""))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte(bertVocab), 0644))
	v, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, v.Get("world"))

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)

	_, err = Read(strings.NewReader(""))
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	v, err := Read(strings.NewReader(bertVocab))
	require.NoError(t, err)
	assert.Equal(t, []string{"[CLS]", "hello", "[SEP]"},
		v.Decode([]int{2, 5, 3, 0, 0}))
}

func TestFromSentencePiece(t *testing.T) {
	piece := func(text string,
		kind sentencepiece.ModelProto_SentencePiece_Type,
	) *sentencepiece.ModelProto_SentencePiece {
		return &sentencepiece.ModelProto_SentencePiece{
			Piece: proto.String(text),
			Score: proto.Float32(0),
			Type:  kind.Enum(),
		}
	}
	model := &sentencepiece.ModelProto{
		Pieces: []*sentencepiece.ModelProto_SentencePiece{
			piece("<unk>", sentencepiece.ModelProto_SentencePiece_UNKNOWN),
			piece("<s>", sentencepiece.ModelProto_SentencePiece_CONTROL),
			piece("</s>", sentencepiece.ModelProto_SentencePiece_CONTROL),
			piece("▁hello", sentencepiece.ModelProto_SentencePiece_NORMAL),
			piece("▁world", sentencepiece.ModelProto_SentencePiece_NORMAL),
		},
	}
	modelBytes, err := proto.Marshal(model)
	require.NoError(t, err)

	v, err := FromSentencePiece(modelBytes)
	require.NoError(t, err)
	specials := v.Specials()
	assert.Equal(t, 0, specials.Unk)
	assert.Equal(t, 1, specials.Cls)
	assert.Equal(t, 2, specials.Sep)
	assert.Equal(t, 3, v.Get("▁hello"))
	// [PAD] and [MASK] are appended.
	assert.Equal(t, 7, v.Size())
	assert.NoError(t, specials.Validate())

	_, err = FromSentencePiece([]byte{0xff, 0xff})
	assert.Error(t, err)
}
