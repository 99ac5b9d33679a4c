package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret("  "))
	assert.Equal(t, "****", MaskSecret("1234"))
	assert.Equal(t, "****6789", MaskSecret("PS-123456789"))
}

func TestMaskMetadataOnlyTouchesSensitiveKeys(t *testing.T) {
	out := MaskMetadata(map[string]any{
		"policy_number": "PS-123456789",
		"insurer":       "PetSure",
		"amount":        int64(1500),
		"nested":        map[string]any{"insurer_claim_id": "CLM-0042"},
		" ":             "dropped",
	})

	assert.Equal(t, "****6789", out["policy_number"])
	assert.Equal(t, "PetSure", out["insurer"])
	assert.Equal(t, int64(1500), out["amount"])
	assert.Equal(t, map[string]any{"insurer_claim_id": "****0042"}, out["nested"])
	assert.NotContains(t, out, " ")
	assert.Nil(t, MaskMetadata(nil))
}
