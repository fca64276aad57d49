package pluginsdk

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const (
	ManifestFilename       = "nexus.plugin.json"
	LegacyManifestFilename = "clawdbot.plugin.json"
)

// Manifest describes a plugin, its advertised surfaces, and its
// configuration schema.
type Manifest struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind,omitempty"`
	Name         string          `json:"name,omitempty"`
	Description  string          `json:"description,omitempty"`
	Version      string          `json:"version,omitempty"`
	Tools        []string        `json:"tools,omitempty"`
	Channels     []string        `json:"channels,omitempty"`
	Providers    []string        `json:"providers,omitempty"`
	Commands     []string        `json:"commands,omitempty"`
	Services     []string        `json:"services,omitempty"`
	Hooks        []string        `json:"hooks,omitempty"`
	ConfigSchema json.RawMessage `json:"configSchema"`
	Metadata     map[string]any  `json:"metadata,omitempty"`
	UIHints      *UIHints        `json:"uiHints,omitempty"`

	// Capabilities declares the sandbox-style permission grants (e.g.
	// "tool:echo", "channel:slack", "cli:*") this plugin needs from the
	// host. Required grants must all be present; Optional grants degrade
	// the corresponding feature rather than failing plugin load.
	Capabilities *Capabilities `json:"capabilities,omitempty"`

	// ToolPolicy optionally declares, per tool name this plugin registers,
	// the same static capability flags the policy engine consults for
	// built-in tools. A tool absent from this map - or a manifest with a
	// nil ToolPolicy - falls back to the policy engine's conservative
	// default (write-capable, not agent-level, review-blocked), so the
	// policy engine never under-restricts a plugin tool it knows nothing
	// about.
	ToolPolicy map[string]ToolCapabilities `json:"toolPolicy,omitempty"`
}

// Capabilities lists the host-side permission grants a plugin needs.
type Capabilities struct {
	Required []string `json:"required,omitempty"`
	Optional []string `json:"optional,omitempty"`
}

// ToolCapabilities mirrors the built-in tool capability flags so a plugin
// manifest can opt a tool into the same policy-engine treatment as a
// built-in: read-only exemption from the checkpoint rule, agent-level
// dispatch bypassing the tool host, or review-mode blocking.
type ToolCapabilities struct {
	ReadOnly      *bool `json:"readOnly,omitempty"`
	AgentLevel    *bool `json:"agentLevel,omitempty"`
	ReviewBlocked *bool `json:"reviewBlocked,omitempty"`
}

// UIHints carries optional presentation metadata for configuring a plugin
// through a UI: per-field input hints, a guided setup flow, and external
// requirements the user must satisfy first.
type UIHints struct {
	ConfigFields map[string]*FieldHint `json:"configFields,omitempty"`
	SetupSteps   []*SetupStep          `json:"setupSteps,omitempty"`
	Requirements []*Requirement        `json:"requirements,omitempty"`
	Links        map[string]string     `json:"links,omitempty"`
}

// FieldHint describes how a single config field should be presented.
type FieldHint struct {
	Label       string           `json:"label,omitempty"`
	Description string           `json:"description,omitempty"`
	Placeholder string           `json:"placeholder,omitempty"`
	HelpURL     string           `json:"helpUrl,omitempty"`
	InputType   string           `json:"inputType,omitempty"`
	Options     []FieldOption    `json:"options,omitempty"`
	Required    bool             `json:"required,omitempty"`
	Sensitive   bool             `json:"sensitive,omitempty"`
	EnvVar      string           `json:"envVar,omitempty"`
	Default     any              `json:"default,omitempty"`
	Validation  *FieldValidation `json:"validation,omitempty"`
}

// FieldOption is one choice in a FieldHint's Options list.
type FieldOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FieldValidation constrains the acceptable values for a config field.
type FieldValidation struct {
	Pattern   string   `json:"pattern,omitempty"`
	MinLength int      `json:"minLength,omitempty"`
	MaxLength int      `json:"maxLength,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
}

// SetupStep is one step of a guided plugin setup flow.
type SetupStep struct {
	Title        string   `json:"title,omitempty"`
	Description  string   `json:"description,omitempty"`
	Commands     []string `json:"commands,omitempty"`
	ConfigFields []string `json:"configFields,omitempty"`
	URL          string   `json:"url,omitempty"`
}

// Requirement is an external prerequisite the user must satisfy before the
// plugin can work (an API key, a bot registration, etc).
type Requirement struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Optional    bool   `json:"optional,omitempty"`
}

func DecodeManifest(data []byte) (*Manifest, error) {
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &manifest, nil
}

func DecodeManifestFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return DecodeManifest(data)
}

func (m *Manifest) Validate() error {
	if m == nil {
		return fmt.Errorf("manifest is nil")
	}
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("manifest id is required")
	}
	if len(m.ConfigSchema) == 0 {
		return fmt.Errorf("manifest configSchema is required")
	}
	return nil
}

// DeclaredCapabilities returns the flattened, trimmed list of required and
// optional capability grants this manifest declares, blanks dropped.
func (m *Manifest) DeclaredCapabilities() []string {
	if m == nil || m.Capabilities == nil {
		return nil
	}
	out := make([]string, 0, len(m.Capabilities.Required)+len(m.Capabilities.Optional))
	for _, c := range m.Capabilities.Required {
		c = strings.TrimSpace(c)
		if c != "" {
			out = append(out, c)
		}
	}
	for _, c := range m.Capabilities.Optional {
		c = strings.TrimSpace(c)
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// HasCapability reports whether the declared capabilities grant the
// requested capability, per CapabilityMatches.
func (m *Manifest) HasCapability(requested string) bool {
	for _, allowed := range m.DeclaredCapabilities() {
		if CapabilityMatches(allowed, requested) {
			return true
		}
	}
	return false
}

// CapabilityMatches reports whether an allowed grant covers a requested
// capability. "*" matches anything; "prefix:*" matches anything sharing
// that prefix; otherwise an exact match is required.
func CapabilityMatches(allowed, requested string) bool {
	allowed = strings.TrimSpace(allowed)
	requested = strings.TrimSpace(requested)
	if allowed == "" || requested == "" {
		return false
	}
	if allowed == "*" {
		return true
	}
	if strings.HasSuffix(allowed, "*") {
		return strings.HasPrefix(requested, strings.TrimSuffix(allowed, "*"))
	}
	return allowed == requested
}

// GetFieldHint returns the UI hint for a config field, or nil if none is
// declared.
func (m *Manifest) GetFieldHint(field string) *FieldHint {
	if m == nil || m.UIHints == nil || m.UIHints.ConfigFields == nil {
		return nil
	}
	return m.UIHints.ConfigFields[field]
}

// GetSetupSteps returns the manifest's guided setup flow, if any.
func (m *Manifest) GetSetupSteps() []*SetupStep {
	if m == nil || m.UIHints == nil {
		return nil
	}
	return m.UIHints.SetupSteps
}

// GetRequirements returns the manifest's external prerequisites, if any.
func (m *Manifest) GetRequirements() []*Requirement {
	if m == nil || m.UIHints == nil {
		return nil
	}
	return m.UIHints.Requirements
}

// GetRequiredFields returns the names of config fields marked required.
func (m *Manifest) GetRequiredFields() []string {
	if m == nil || m.UIHints == nil || m.UIHints.ConfigFields == nil {
		return nil
	}
	var fields []string
	for name, hint := range m.UIHints.ConfigFields {
		if hint != nil && hint.Required {
			fields = append(fields, name)
		}
	}
	return fields
}

// GetSensitiveFields returns the names of config fields marked sensitive
// (API keys, tokens) that callers should mask in logs and UIs.
func (m *Manifest) GetSensitiveFields() []string {
	if m == nil || m.UIHints == nil || m.UIHints.ConfigFields == nil {
		return nil
	}
	var fields []string
	for name, hint := range m.UIHints.ConfigFields {
		if hint != nil && hint.Sensitive {
			fields = append(fields, name)
		}
	}
	return fields
}

// ToolCapabilitiesFor returns the declared capability flags for a tool this
// manifest registers, if the manifest opted that tool in via ToolPolicy.
func (m *Manifest) ToolCapabilitiesFor(tool string) (ToolCapabilities, bool) {
	if m == nil || m.ToolPolicy == nil {
		return ToolCapabilities{}, false
	}
	cap, ok := m.ToolPolicy[tool]
	return cap, ok
}
