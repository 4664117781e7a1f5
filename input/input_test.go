package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDocumentXML = `<?xml version="1.0" encoding="UTF-8"?>
<document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <body>
    <p><r><t>First paragraph.</t></r></p>
    <p><r><t>Second </t></r><r><t>paragraph.</t></r></p>
    <p></p>
  </body>
</document>`

func TestExtractDocxParagraphsJoinsRuns(t *testing.T) {
	paras, err := extractDocxParagraphs([]byte(sampleDocumentXML))
	require.NoError(t, err)
	require.Len(t, paras, 2)
	assert.Equal(t, "First paragraph.", paras[0])
	assert.Equal(t, "Second paragraph.", paras[1])
}

func TestExtractDocxParagraphsRejectsMalformedXML(t *testing.T) {
	_, err := extractDocxParagraphs([]byte("not xml"))
	assert.Error(t, err)
}

func TestLooksLikeHeaderDetectsCommonColumnNames(t *testing.T) {
	assert.True(t, looksLikeHeader("Source", "Target"))
	assert.True(t, looksLikeHeader("term", "translation"))
	assert.False(t, looksLikeHeader("neuron", "no-ron"))
}
