package cmd

import (
	"encoding/json"
	"fmt"
	"os"
)

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

// warnf prints a formatted warning message if not in JSON output mode.
func warnf(jsonOutput bool, format string, args ...any) {
	if !jsonOutput {
		fmt.Printf(format, args...)
	}
}
