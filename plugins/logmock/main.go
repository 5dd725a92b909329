package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/opsorch/adminlog/schema"
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
	for {
		var req rpcRequest
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			writeErr(err)
			return
		}

		switch req.Method {
		case "log.query":
			var q schema.LogQuery
			if err := json.Unmarshal(req.Payload, &q); err != nil {
				writeErr(err)
				continue
			}
			writeOK(entriesFor(q, floorMillis(req.Config)))
		default:
			writeErr(fmt.Errorf("unknown method %s", req.Method))
		}
	}
}

// entriesFor answers with one entry per version stamped just before the window end.
// Windows ending at or before floor are empty so history walks terminate.
func entriesFor(q schema.LogQuery, floor int64) schema.LogEntries {
	res := schema.LogEntries{
		Entries: []schema.LogEntry{},
		URL:     "https://logs.example.com/query?end=" + strconv.FormatInt(q.EndTimeMillis, 10),
	}
	if q.EndTimeMillis <= floor {
		return res
	}
	for _, v := range q.VersionIDs {
		e := schema.LogEntry{
			Timestamp: time.UnixMilli(q.EndTimeMillis - 1).UTC(),
			Message:   "plugin log: " + v,
			Severity:  schema.SeverityInfo,
			Version:   v,
		}
		if q.Matches(e) {
			res.Entries = append(res.Entries, e)
		}
	}
	return res
}

func floorMillis(cfg map[string]any) int64 {
	if v, ok := cfg["floorMillis"].(float64); ok {
		return int64(v)
	}
	return 0
}

func writeOK(result any) {
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rpcResponse{Result: result})
}

func writeErr(err error) {
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rpcResponse{Error: &rpcError{Message: err.Error()}})
}
