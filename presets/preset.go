package presets

import (
	"fmt"
	"strings"

	"github.com/marcelsud/webhook-sink/token"
)

/* Preset is a named, reusable response configuration.
 * Tokens can be created from one instead of the default config.
 */
type Preset struct {
	Name        string
	Description string
	Config      token.ResponseConfig
}

// Validate checks if the preset is valid and normalizes its config
func (p *Preset) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if strings.ContainsAny(p.Name, " \t/") {
		return fmt.Errorf("name %q must not contain spaces or slashes", p.Name)
	}
	cfg, err := p.Config.Normalize()
	if err != nil {
		return fmt.Errorf("invalid config for preset %s: %w", p.Name, err)
	}
	p.Config = cfg
	return nil
}

// builtin presets are always available, a presets file may override them by name
func builtin() []Preset {
	return []Preset{
		{
			Name:        "ok",
			Description: "200 with the default JSON body",
			Config:      token.DefaultResponseConfig(),
		},
		{
			Name:        "accepted",
			Description: "202 with an empty JSON object",
			Config:      token.ResponseConfig{StatusCode: 202, BodyKind: token.JSON, Body: "{}"},
		},
		{
			Name:        "no-content",
			Description: "204 without a body",
			Config:      token.ResponseConfig{StatusCode: 204, BodyKind: token.Text},
		},
		{
			Name:        "server-error",
			Description: "500 to exercise sender retries",
			Config: token.ResponseConfig{
				StatusCode: 500,
				BodyKind:   token.JSON,
				Body:       `{"error": "internal server error"}`,
			},
		},
		{
			Name:        "xml-ack",
			Description: "200 with an XML acknowledgement",
			Config: token.ResponseConfig{
				StatusCode: 200,
				BodyKind:   token.XML,
				Body:       `<?xml version="1.0" encoding="UTF-8"?><Response/>`,
			},
		},
	}
}
