package tools

// ToolResult is what a tool hands back to the agent loop. ForLLM is the text
// the model sees; Value, when set, is the structured result recorded in
// memory instead of the text.
type ToolResult struct {
	ForLLM  string
	ForUser string
	Value   interface{}
	Silent  bool
	IsError bool
	Err     error
}

func NewToolResult(forLLM string) *ToolResult {
	return &ToolResult{ForLLM: forLLM}
}

// StructuredResult carries a JSON-shaped value alongside its text form.
func StructuredResult(forLLM string, value interface{}) *ToolResult {
	return &ToolResult{ForLLM: forLLM, Value: value}
}

func SilentResult(forLLM string) *ToolResult {
	return &ToolResult{ForLLM: forLLM, Silent: true}
}

// UserResult is shown to the user as well as the model.
func UserResult(content string) *ToolResult {
	return &ToolResult{ForLLM: content, ForUser: content}
}

func ErrorResult(message string) *ToolResult {
	return &ToolResult{ForLLM: message, IsError: true}
}

func (r *ToolResult) WithError(err error) *ToolResult {
	r.Err = err
	r.IsError = true
	return r
}

// Payload splits the result into the (result, error) pair stored on a tool
// result message. Failed calls carry no result.
func (r *ToolResult) Payload() (interface{}, string) {
	if r.IsError {
		msg := r.ForLLM
		if msg == "" && r.Err != nil {
			msg = r.Err.Error()
		}
		if msg == "" {
			msg = "tool failed"
		}
		return nil, msg
	}
	if r.Value != nil {
		return r.Value, ""
	}
	return r.ForLLM, ""
}
