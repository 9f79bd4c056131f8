package artifact

import (
	"fmt"
	"strings"

	"atelier/internal/models"
)

// BuildPrompt folds the collectible's traits into the fixed house prompt.
// Unknown traits are ignored; an empty trait list still yields a usable
// prompt.
func BuildPrompt(traits models.TraitList) string {
	var b strings.Builder
	b.WriteString("digital art, highly detailed, ")

	if v := traits.Get("Background"); v != "" {
		fmt.Fprintf(&b, "%s background, ", v)
	}
	if v := traits.Get("Type"); v != "" {
		fmt.Fprintf(&b, "%s, ", v)
	}
	if v := traits.Get("Rarity"); v != "" {
		fmt.Fprintf(&b, "%s quality, ", v)
	}

	b.WriteString("vibrant colors, fantasy art, masterpiece, 4k")
	return b.String()
}
