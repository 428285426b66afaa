package registry

import "encoding/json"

// Capability describes a named, versioned ability an agent advertises.
// It is purely descriptive: the registry indexes by Name and the rest of
// the fields exist for discovery.
type Capability struct {
	// Name is the capability identifier agents are indexed under.
	Name string `json:"name"`

	// Description is a human-readable explanation.
	Description string `json:"description,omitempty"`

	// Version for compatibility checking (semver recommended).
	Version string `json:"version,omitempty"`

	// Inputs names the parameters the capability consumes.
	Inputs []string `json:"inputs,omitempty"`

	// Outputs names what the capability produces.
	Outputs []string `json:"outputs,omitempty"`
}

// Validate checks if the capability is valid.
func (c *Capability) Validate() error {
	if c.Name == "" {
		return ErrInvalidCapability
	}
	return nil
}

// Marshal serializes the capability to JSON.
func (c *Capability) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// UnmarshalCapability deserializes a capability from JSON.
func UnmarshalCapability(data []byte) (*Capability, error) {
	var c Capability
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// HasCapability checks if an agent advertises a capability by name.
func HasCapability(info AgentInfo, name string) bool {
	for _, c := range info.Capabilities {
		if c.Name == name {
			return true
		}
	}
	return false
}

// CapabilityNames returns the names an agent advertises, in declared order.
func CapabilityNames(info AgentInfo) []string {
	names := make([]string, 0, len(info.Capabilities))
	for _, c := range info.Capabilities {
		names = append(names, c.Name)
	}
	return names
}
