package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize_MasksAPIKeyTail(t *testing.T) {
	app := AppConfig{APIKey: "sk-abcdefgh1234", ActiveReducePromptID: 3}
	sanitized := Sanitize(app)

	assert.Equal(t, "***1234", sanitized.APIKey)
	assert.EqualValues(t, 3+ReduceIDOffset, sanitized.ActiveReducePromptID)
}

func TestSanitize_ShortKeyFullyMasked(t *testing.T) {
	assert.Equal(t, "***", maskAPIKey("abc"))
}

func TestSanitize_EmptyKey(t *testing.T) {
	assert.Equal(t, "", maskAPIKey(""))
}
