package presets

import (
	"fmt"
	"os"
	"sort"

	"github.com/marcelsud/webhook-sink/token"
	"gopkg.in/yaml.v3"
)

/* Loader manages response presets from a presets.yaml file
 * Provides in-memory lookup for fast access
 */

// Config represents the structure of presets.yaml
type Config struct {
	Presets []PresetConfig `yaml:"presets"`
}

// PresetConfig represents a single preset in the YAML file
type PresetConfig struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Status      int            `yaml:"status"`
	Type        string         `yaml:"type"`
	Body        string         `yaml:"body"`
	Headers     []HeaderConfig `yaml:"headers"`
}

// HeaderConfig is one header entry; a list keeps order and duplicates
type HeaderConfig struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// Loader holds the loaded presets
type Loader struct {
	presets map[string]*Preset
}

// NewLoader creates a loader seeded with the built-in presets
func NewLoader() *Loader {
	l := &Loader{
		presets: make(map[string]*Preset),
	}
	for _, p := range builtin() {
		p := p
		l.presets[p.Name] = &p
	}
	return l
}

// Load reads and parses a presets.yaml file; entries override built-ins by name
func (l *Loader) Load(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading presets file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parsing presets YAML: %w", err)
	}

	loaded := make(map[string]*Preset, len(config.Presets))
	for _, pc := range config.Presets {
		// Status defaults to 200 when omitted
		status := pc.Status
		if status == 0 {
			status = token.DefaultStatusCode
		}

		headers := make([]token.Header, 0, len(pc.Headers))
		for _, h := range pc.Headers {
			headers = append(headers, token.Header{Key: h.Key, Value: h.Value})
		}

		preset := &Preset{
			Name:        pc.Name,
			Description: pc.Description,
			Config: token.ResponseConfig{
				StatusCode: status,
				BodyKind:   token.NewBodyKind(pc.Type),
				Body:       pc.Body,
				Headers:    headers,
			},
		}

		if err := preset.Validate(); err != nil {
			return fmt.Errorf("validating preset: %w", err)
		}
		if _, dup := loaded[preset.Name]; dup {
			return fmt.Errorf("validating preset: duplicate name %s", preset.Name)
		}
		loaded[preset.Name] = preset
	}

	for name, preset := range loaded {
		l.presets[name] = preset
	}
	return nil
}

// Get retrieves a preset by name
func (l *Loader) Get(name string) (*Preset, error) {
	preset, exists := l.presets[name]
	if !exists {
		return nil, fmt.Errorf("preset not found: %s", name)
	}
	return preset, nil
}

// List returns all presets sorted by name
func (l *Loader) List() []*Preset {
	presets := make([]*Preset, 0, len(l.presets))
	for _, preset := range l.presets {
		presets = append(presets, preset)
	}
	sort.Slice(presets, func(i, j int) bool {
		return presets[i].Name < presets[j].Name
	})
	return presets
}

// Exists checks if a preset name exists
func (l *Loader) Exists(name string) bool {
	_, exists := l.presets[name]
	return exists
}
