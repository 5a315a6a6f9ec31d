package cob

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cafeNFC = "Caf\u00e9"
	cafeNFD = "Cafe\u0301"
)

func TestNewAction_NormalizesText(t *testing.T) {
	composed := mustAction(t, alice, 1000, Create{Title: cafeNFC, Embeds: []Embed{{Name: cafeNFC, Content: "x"}}})
	decomposed := mustAction(t, alice, 1000, Create{Title: cafeNFD, Embeds: []Embed{{Name: cafeNFD, Content: "x"}}})

	assert.Equal(t, composed.ID, decomposed.ID)
	assert.Equal(t, cafeNFC, decomposed.Op.(Create).Title)
	assert.Equal(t, cafeNFC, decomposed.Op.(Create).Embeds[0].Name)
	require.NoError(t, decomposed.Verify())
}

func TestVerify_RejectsUnnormalizedText(t *testing.T) {
	a := mustAction(t, alice, 1000, Create{Title: cafeNFC})
	original, err := a.Payload()
	require.NoError(t, err)

	// Each forgery keeps the id of a, and its canonical payload collapses
	// to the same bytes or to U+FFFD.
	for name, title := range map[string]string{
		"decomposed":   cafeNFD,
		"latin-1 byte": "Caf\xe9",
		"stray byte":   "Caf\xff",
	} {
		t.Run(name, func(t *testing.T) {
			forged := a
			forged.Op = Create{Title: title}
			if title == cafeNFD {
				payload, err := forged.Payload()
				require.NoError(t, err)
				assert.Equal(t, original, payload)
			}

			err := forged.Verify()
			require.Error(t, err)
			assert.True(t, IsInvalidAction(err))
		})
	}
}

func TestNewAction_RejectsInvalidUTF8(t *testing.T) {
	_, err := NewAction(SetTitle{Title: "bad \xff"}, nil, 1, alice)
	require.Error(t, err)
	assert.True(t, IsInvalidAction(err))
	assert.Contains(t, err.Error(), "UTF-8")
}

func TestOpDocument_NormalizesText(t *testing.T) {
	op, err := OpDocument{Type: KindSetTitle, Title: cafeNFD}.Op()
	require.NoError(t, err)
	assert.Equal(t, SetTitle{Title: cafeNFC}, op)

	_, err = OpDocument{Type: KindComment, Body: "\xff"}.Op()
	assert.True(t, IsInvalidAction(err))
}

func TestAction_DecodedTextIsNormalized(t *testing.T) {
	a := mustAction(t, alice, 1000, Create{Title: cafeNFC})
	data, err := json.Marshal(a)
	require.NoError(t, err)
	data = []byte(strings.Replace(string(data), cafeNFC, cafeNFD, 1))

	var got Action
	require.NoError(t, json.Unmarshal(data, &got))
	require.NoError(t, got.Verify())
	assert.Equal(t, a, got)
}

func TestMaterialize_RemoveEmbedAcrossNormalizationForms(t *testing.T) {
	root := mustAction(t, alice, 1, Create{Title: "T"})
	add := mustAction(t, alice, 2, AddEmbed{Embed: Embed{Name: cafeNFC + ".png", Content: "sha256:aa"}}, root.ID)
	remove := mustAction(t, alice, 3, RemoveEmbed{Name: cafeNFD + ".png"}, add.ID)

	log := NewLog()
	mustAppend(t, log, root, add, remove)
	issue := mustMaterialize(t, log)
	require.Len(t, issue.Embeds, 1)
	assert.True(t, issue.Embeds[0].Removed)
}
