package wire

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewAssistRequestMessage wraps an outbound request envelope.
func NewAssistRequestMessage(req *AssistRequest) (*Message, error) {
	return NewMessage(TypeAssistRequest, req)
}

// NewEndOfStreamMessage creates the client half-close marker.
func NewEndOfStreamMessage() (*Message, error) {
	return NewMessage(TypeEndOfStream, nil)
}

// NewAssistResponseMessage wraps an inbound response envelope.
// Used by test fakes and local stub services.
func NewAssistResponseMessage(resp *AssistResponse) (*Message, error) {
	return NewMessage(TypeAssistResponse, resp)
}

// NewErrorMessage creates a terminal status message.
func NewErrorMessage(code, message string) (*Message, error) {
	return NewMessage(TypeError, Status{Code: code, Message: message})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetAssistRequest extracts the request envelope from a message.
func (m *Message) GetAssistRequest() (*AssistRequest, error) {
	var data AssistRequest
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetAssistResponse extracts the response envelope from a message.
func (m *Message) GetAssistResponse() (*AssistResponse, error) {
	var data AssistResponse
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStatus extracts the failure status from an error message.
func (m *Message) GetStatus() (*Status, error) {
	var data Status
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
