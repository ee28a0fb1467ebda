package components

import (
	"github.com/polaris-ai/polaris-cli/ui/styles"
)

func RenderInput(input string, disabled bool, width int) string {
	if disabled {
		return styles.InputDisabledStyle(width).Render(input)
	}
	return styles.InputStyle(width).Render(input)
}
