package hasher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash(t *testing.T) {
	t.Run("known digest of the consent scenario document", func(t *testing.T) {
		d := Hash("I consent to data sharing")
		assert.Equal(t, "11e2d0907c6876b0ead6587aea87601c261d50a92b9de654e6be282f60e8743b", d.Hex())
	})

	t.Run("empty document hashes to the sha256 of nothing", func(t *testing.T) {
		assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Hash("").Hex())
	})

	t.Run("deterministic across calls", func(t *testing.T) {
		doc := "Ich stimme der Datenweitergabe zu ✓"
		assert.Equal(t, Hash(doc), Hash(doc))
	})

	t.Run("different documents give different digests", func(t *testing.T) {
		assert.NotEqual(t, Hash("I consent"), Hash("I consent."))
	})

	t.Run("invalid utf-8 is replaced before hashing", func(t *testing.T) {
		assert.Equal(t, Hash("a�b"), Hash("a\xffb"))
		assert.Equal(t, []byte("a�b"), canonical("a\xff\xfeb"))
	})
}
