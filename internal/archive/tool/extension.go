package tool

type ExtensionKind int

const (
	// ExtensionNone means the provider has no settings beyond ArchiveInfo.
	ExtensionNone ExtensionKind = iota
	// ExtensionOptions means Options lists the ArchiveInfo.Properties keys
	// the provider understands.
	ExtensionOptions
	// ExtensionForm means the caller should render the form named FormID.
	ExtensionForm
)

func (k ExtensionKind) String() string {
	switch k {
	case ExtensionOptions:
		return "options"
	case ExtensionForm:
		return "form"
	}
	return "none"
}

type OptionSpec struct {
	Key         string   `json:"key"`
	Description string   `json:"description"`
	Values      []string `json:"values,omitempty"`
	Default     string   `json:"default,omitempty"`
}

// ExtensionPoint describes what a caller may configure for a provider.
// Callers switch on Kind, the other fields are only set for their kind.
type ExtensionPoint struct {
	Kind    ExtensionKind `json:"kind"`
	Options []OptionSpec  `json:"options,omitempty"`
	FormID  string        `json:"form_id,omitempty"`
}

func NoExtension() ExtensionPoint {
	return ExtensionPoint{Kind: ExtensionNone}
}

func OptionsExtension(options ...OptionSpec) ExtensionPoint {
	return ExtensionPoint{Kind: ExtensionOptions, Options: options}
}
