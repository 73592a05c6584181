package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/marcelsud/webhook-sink/presets"
)

/* validate-presets - Standalone CLI tool to validate presets.yaml
 * Usage: go run cmd/validate-presets/main.go [presets.yaml]
 * Exit codes: 0 = valid, 1 = invalid
 */

func main() {
	presetsFile := "presets.yaml"
	if len(os.Args) > 1 {
		presetsFile = os.Args[1]
	}

	fmt.Printf("Validating presets file: %s\n", presetsFile)
	fmt.Println(strings.Repeat("-", 50))

	loader := presets.NewLoader()
	if err := loader.Load(presetsFile); err != nil {
		fmt.Fprintf(os.Stderr, "❌ VALIDATION FAILED\n\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	loaded := loader.List()
	fmt.Printf("✓ VALIDATION PASSED\n\n")
	fmt.Printf("Available presets (%d, built-ins included):\n", len(loaded))

	for i, preset := range loaded {
		fmt.Printf("\n%d. Preset: %s\n", i+1, preset.Name)
		if preset.Description != "" {
			fmt.Printf("   Description: %s\n", preset.Description)
		}
		fmt.Printf("   Status:      %d\n", preset.Config.StatusCode)
		fmt.Printf("   Type:        %s\n", preset.Config.BodyKind)
		fmt.Printf("   Body:        %d bytes\n", len(preset.Config.Body))
		for _, h := range preset.Config.Headers {
			fmt.Printf("   Header:      %s: %s\n", h.Key, h.Value)
		}
	}

	fmt.Printf("\n✓ All presets are valid!\n")
	os.Exit(0)
}
