package export

import (
	"fmt"
	"strings"

	"nutriplan/types"
)

// FileName builds the download name of a plan artifact, e.g. plan_nutricional_20250102_1a2b3c4d.txt.
func FileName(plan types.PlanResult, ext string) string {
	return fmt.Sprintf("plan_nutricional_%s_%s.%s", plan.CreatedAt.Format("20060102"), plan.ID.String()[:8], strings.TrimPrefix(ext, "."))
}

// Text returns the plan as UTF-8 text with a trailing newline.
func Text(plan types.PlanResult) []byte {
	return []byte(strings.TrimRight(plan.Text, "\n") + "\n")
}
