package refpath

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestResolveLiteralIdentity verifies the round-trip law from §8:
// resolve(literal(x)) == x for any non-"$"-prefixed value.
func TestResolveLiteralIdentity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("non-$ strings resolve to themselves", prop.ForAll(
		func(s string) bool {
			if len(s) > 0 && s[0] == '$' {
				return true // not a literal by construction, skip
			}
			return Resolve(s, Scopes{}) == s
		},
		gen.AlphaString(),
	))

	properties.Property("non-string scalars resolve to themselves", prop.ForAll(
		func(n int) bool {
			return Resolve(n, Scopes{}) == n
		},
		gen.Int(),
	))

	properties.TestingRun(t)
}

// TestResolveAllIdentityOnNoReferences verifies ResolveAll is the identity
// on a bag containing no "$" references.
func TestResolveAllIdentityOnNoReferences(t *testing.T) {
	bag := map[string]any{
		"a": "plain",
		"b": 42,
		"c": map[string]any{"d": "nested"},
		"e": []any{"x", "y"},
	}
	got := ResolveAll(bag, Scopes{})
	assert.Equal(t, bag, got)
}

func TestResolveMissingPathYieldsNil(t *testing.T) {
	scopes := Scopes{Context: map[string]any{"classId": "c-1"}}
	assert.Nil(t, Resolve("$context.studentId", scopes))
	assert.Nil(t, Resolve("$unknownPrefix.x", scopes))
}

func TestResolveWalksNestedPath(t *testing.T) {
	scopes := Scopes{
		Data: map[string]any{
			"binding1": map[string]any{
				"students": []any{
					map[string]any{"name": "Wong Ka Ho"},
				},
			},
		},
	}
	got := Resolve("$data.binding1.students.0.name", scopes)
	require.Equal(t, "Wong Ka Ho", got)
}

func TestResolveAllRewritesNestedBag(t *testing.T) {
	scopes := Scopes{Input: map[string]any{"class": "class-hk-f1a"}}
	bag := map[string]any{
		"classId": "$input.class",
		"nested":  map[string]any{"topic": "$input.missing", "literal": "x"},
	}
	got := ResolveAll(bag, scopes).(map[string]any)
	assert.Equal(t, "class-hk-f1a", got["classId"])
	nested := got["nested"].(map[string]any)
	assert.Nil(t, nested["topic"])
	assert.Equal(t, "x", nested["literal"])
}
