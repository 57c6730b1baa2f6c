package contentaddr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddresser_Key(t *testing.T) {
	tests := []struct {
		name      string
		addresser Addresser
		payload   []byte
		want      string
	}{
		{
			name:      "empty payload",
			addresser: Default(),
			payload:   []byte{},
			want:      "e3b0c44298fc.webp",
		},
		{
			name:      "abc",
			addresser: Default(),
			payload:   []byte("abc"),
			want:      "ba7816bf8f01.webp",
		},
		{
			name:      "full digest when length is out of range",
			addresser: Addresser{Extension: ".bin", Length: 100},
			payload:   []byte("abc"),
			want:      "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad.bin",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.addresser.Key(tt.payload))
		})
	}
}

func TestAddresser_Key_Deterministic(t *testing.T) {
	a := Default()
	payload := []byte("same bytes")

	assert.Equal(t, a.Key(payload), a.Key([]byte("same bytes")))
	assert.NotEqual(t, a.Key(payload), a.Key([]byte("other bytes")))
	assert.Len(t, a.Key(payload), DefaultLength+len(DefaultExtension))
}

func TestAddresser_Request(t *testing.T) {
	payload := []byte("abc")
	req := Default().Request(payload, "image/webp")

	assert.Equal(t, "ba7816bf8f01.webp", req.Key)
	assert.Equal(t, payload, req.Payload)
	assert.Equal(t, "image/webp", req.ContentType)
}

func TestDigest(t *testing.T) {
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", Digest([]byte("abc")))
}
