package components

import (
	"github.com/polaris-ai/polaris-cli/ui/styles"
)

func RenderStatus(status string, busy bool, spinnerView string, width int) string {
	statusContent := status
	if busy {
		statusContent = spinnerView + " " + statusContent
	}

	return styles.StatusStyle(width).Render(statusContent)
}
