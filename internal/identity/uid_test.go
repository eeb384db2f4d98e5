package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryUID_Deterministic(t *testing.T) {
	uid1 := QueryUID("Data Scientist", "Acme")
	uid2 := QueryUID("Data Scientist", "Acme")

	assert.Equal(t, uid1, uid2)
	assert.Len(t, uid1, UIDLength)
}

func TestQueryUID_CaseAndWhitespaceInsensitive(t *testing.T) {
	base := QueryUID("Data Scientist", "Acme")

	assert.Equal(t, base, QueryUID(" data scientist ", "ACME"))
	assert.Equal(t, base, QueryUID("DATA SCIENTIST", "  acme"))
}

func TestQueryUID_DistinctPairs(t *testing.T) {
	assert.NotEqual(t, QueryUID("Data Scientist", "Acme"), QueryUID("Data Engineer", "Acme"))
	assert.NotEqual(t, QueryUID("Data Scientist", "Acme"), QueryUID("Data Scientist", "Globex"))
}

func TestQueryUID_SeparatorMatters(t *testing.T) {
	// "a|b"+"c" and "a"+"b|c" must not collide by concatenation.
	assert.NotEqual(t, QueryUID("a|b", "c"), QueryUID("a", "b|c"))
}

func TestQueryUID_EmptyInputsStillValid(t *testing.T) {
	uid := QueryUID("", "")
	assert.Len(t, uid, UIDLength)
}

func TestPageUID_Deterministic(t *testing.T) {
	uid1 := PageUID("https://acme.com/jobs/123")
	uid2 := PageUID("  HTTPS://ACME.COM/JOBS/123 ")

	assert.Equal(t, uid1, uid2)
	assert.Len(t, uid1, UIDLength)
}

func TestPageUID_DistinctURLs(t *testing.T) {
	assert.NotEqual(t, PageUID("https://acme.com/jobs/123"), PageUID("https://acme.com/jobs/124"))
}

func TestNormalize_NFKC(t *testing.T) {
	// Fullwidth forms fold to ASCII under NFKC.
	assert.Equal(t, "acme", Normalize("Ａｃｍｅ"))
	assert.Equal(t, QueryUID("Data Scientist", "Acme"), QueryUID("Data Scientist", "Ａｃｍｅ"))
}
