package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCollapsesLocaleVariants(t *testing.T) {
	assert.Equal(t, normalize("1A班"), normalize("中一A班"))
	assert.Equal(t, "1a", normalize("1A班"))
	assert.Equal(t, "form1a", normalize("Form 1A"))
}

func TestClassKeyExtractsDigitLetter(t *testing.T) {
	assert.Equal(t, "1a", classKey("Form 1A"))
	assert.Equal(t, "2b", classKey("Form 2B"))
}

func TestAliasVariantsIncludesLocaleForms(t *testing.T) {
	variants := aliasVariants("1a")
	assert.Contains(t, variants, "1a")
	assert.Contains(t, variants, "f1a")
	assert.Contains(t, variants, "form1a")
}

func TestHasGradeTriggerRecognizesEnglishAndChinese(t *testing.T) {
	assert.True(t, hasGradeTrigger("the whole grade needs review"))
	assert.True(t, hasGradeTrigger("中一全年级"))
	assert.False(t, hasGradeTrigger("Form 1A only"))
}

func TestGradeDigitsFromText(t *testing.T) {
	assert.Equal(t, "1", gradeDigitsFromText("Form 1 whole grade"))
	assert.Equal(t, "1", gradeDigitsFromText("中一全年级"))
	assert.Equal(t, "", gradeDigitsFromText("no digits here"))
}
