package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTemplate(t *testing.T) {
	t.Run("NoTokensUnchanged", func(t *testing.T) {
		in := "<p>Plain body with no placeholders.</p>"
		assert.Equal(t, in, RenderTemplate(in, "jane@example.com", nil))
	})

	t.Run("Deterministic", func(t *testing.T) {
		meta := map[string]string{"first_name": "Jane"}
		first := RenderTemplate("Hi {{first_name}}", "jane@example.com", meta)
		second := RenderTemplate("Hi {{first_name}}", "jane@example.com", meta)
		assert.Equal(t, first, second)
	})

	t.Run("EmailToken", func(t *testing.T) {
		out := RenderTemplate("Sent to {{email}}", "jane@example.com", nil)
		assert.Equal(t, "Sent to jane@example.com", out)
	})

	t.Run("FirstNameFallbackToLocalPart", func(t *testing.T) {
		out := RenderTemplate("{{first_name}}", "jane.doe@example.com", map[string]string{})
		assert.Equal(t, "jane.doe", out)
	})

	t.Run("FirstNameEmptyStringFallsBack", func(t *testing.T) {
		out := RenderTemplate("{{first_name}}", "jane.doe@example.com", map[string]string{"first_name": ""})
		assert.Equal(t, "jane.doe", out)
	})

	t.Run("LastNameMissingIsEmpty", func(t *testing.T) {
		out := RenderTemplate("x{{last_name}}y", "a@b.com", map[string]string{"first_name": "Ann"})
		assert.Equal(t, "xy", out)
	})

	t.Run("FullNameTrimmed", func(t *testing.T) {
		out := RenderTemplate("{{full_name}}", "a@b.com", map[string]string{"first_name": "Ann"})
		assert.Equal(t, "Ann", out)
	})

	t.Run("FullNameJoined", func(t *testing.T) {
		out := RenderTemplate("{{full_name}}", "a@b.com", map[string]string{
			"first_name": "Ann",
			"last_name":  "Lee",
		})
		assert.Equal(t, "Ann Lee", out)
	})

	t.Run("AllOccurrencesReplaced", func(t *testing.T) {
		out := RenderTemplate("{{first_name}} and {{first_name}} again", "a@b.com", map[string]string{"first_name": "Ann"})
		assert.Equal(t, "Ann and Ann again", out)
	})

	t.Run("UnknownTokensUntouched", func(t *testing.T) {
		out := RenderTemplate("Hi {{first_name}}, use {{coupon_code}}", "a@b.com", map[string]string{"first_name": "Ann"})
		assert.Equal(t, "Hi Ann, use {{coupon_code}}", out)
	})
}
