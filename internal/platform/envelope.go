package platform

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/chatlink/chatlink/internal/errors"
)

// envelope is the wire format every platform endpoint responds with: either
// {"status":"success","data":...} or {"error":{"message":"..."}}.
type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *envelopeError  `json:"error"`
}

type envelopeError struct {
	Message string `json:"message"`
}

// decodeEnvelope reads a platform response body, reports failures as typed
// errors, and unmarshals the data payload into target when the call
// succeeded. A nil target discards the payload.
func decodeEnvelope(resp *http.Response, target interface{}) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errors.ErrNetwork{Err: err}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return &errors.ErrAPI{Message: "malformed platform response"}
	}

	if env.Error != nil && env.Error.Message != "" {
		return &errors.ErrAPI{Message: env.Error.Message}
	}
	if env.Status != "success" {
		return &errors.ErrAPI{Message: "platform request failed"}
	}

	if target == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, target); err != nil {
		return &errors.ErrAPI{Message: "malformed platform payload"}
	}
	return nil
}
