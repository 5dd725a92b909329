package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

type rpcRequest struct {
	Method  string          `json:"method"`
	Config  map[string]any  `json:"config"`
	Payload json.RawMessage `json:"payload"`
}

type rpcResponse struct {
	Result any       `json:"result,omitempty"`
	Error  *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func main() {
	dec := json.NewDecoder(os.Stdin)
	enc := json.NewEncoder(os.Stdout)

	for {
		var req rpcRequest
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			_ = enc.Encode(rpcResponse{Error: &rpcError{Message: err.Error()}})
			return
		}

		switch req.Method {
		case "version.defaults":
			versions, err := defaults(req.Config)
			if err != nil {
				_ = enc.Encode(rpcResponse{Error: &rpcError{Message: err.Error()}})
				continue
			}
			_ = enc.Encode(rpcResponse{Result: versions})
		default:
			_ = enc.Encode(rpcResponse{Error: &rpcError{Code: "bad_request", Message: fmt.Sprintf("unknown method %s", req.Method)}})
		}
	}
}

// defaults returns config "versions" or a single "v1" when none are configured.
func defaults(cfg map[string]any) ([]string, error) {
	if msg, ok := cfg["fail"].(string); ok && msg != "" {
		return nil, errors.New(msg)
	}
	raw, ok := cfg["versions"].([]any)
	if !ok || len(raw) == 0 {
		return []string{"v1"}, nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("version must be a string, got %T", v)
		}
		out = append(out, s)
	}
	return out, nil
}
