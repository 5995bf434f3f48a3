package domain

// Fragment is one complete unit of generated content. The set of variants is
// closed: the marker method keeps external packages from adding their own,
// so switches over the variants can be checked for exhaustiveness.
type Fragment interface {
	isFragment()
}

// TextFragment is a run of generated text. While streaming, the trailing text
// fragment stays open and grows by deltas until a non-text particle seals it.
type TextFragment struct {
	Text string `json:"text"`
}

// ImageFragment references generated or cited image content.
type ImageFragment struct {
	URI      string `json:"uri"`
	MimeType string `json:"mime_type,omitempty"`
}

// ToolCallFragment is a complete tool invocation requested by the model.
type ToolCallFragment struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON
}

// ToolResultFragment carries the outcome of a previously issued tool call.
type ToolResultFragment struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Result string `json:"result"`
	Failed bool   `json:"failed,omitempty"`
}

// ErrorFragment surfaces an in-band failure as content so partial results
// stay renderable.
type ErrorFragment struct {
	Message string `json:"message"`
}

// ReferenceFragment is a citation emitted alongside generated content.
type ReferenceFragment struct {
	Title string `json:"title,omitempty"`
	URI   string `json:"uri"`
}

// VoidFragment is a deliberate placeholder carrying no content.
type VoidFragment struct{}

func (TextFragment) isFragment()       {}
func (ImageFragment) isFragment()      {}
func (ToolCallFragment) isFragment()   {}
func (ToolResultFragment) isFragment() {}
func (ErrorFragment) isFragment()      {}
func (ReferenceFragment) isFragment()  {}
func (VoidFragment) isFragment()       {}

// FragmentKind returns the serialization tag of a fragment variant. An
// unknown variant is an explicit error so new variants cannot slip through
// serialization unnoticed.
func FragmentKind(f Fragment) (string, error) {
	switch f.(type) {
	case TextFragment:
		return "text", nil
	case ImageFragment:
		return "image", nil
	case ToolCallFragment:
		return "tool_call", nil
	case ToolResultFragment:
		return "tool_result", nil
	case ErrorFragment:
		return "error", nil
	case ReferenceFragment:
		return "reference", nil
	case VoidFragment:
		return "void", nil
	default:
		return "", ErrUnknownFragment
	}
}
