package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os/exec"
	"sync"

	"github.com/opsorch/adminlog/logger"
	"github.com/opsorch/adminlog/orcherr"
)

// pluginRunner keeps one local plugin process alive and exchanges one JSON line per call over stdin/stdout.
type pluginRunner struct {
	path   string
	config map[string]any

	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.Closer
	enc   *json.Encoder
	dec   *json.Decoder
}

func newPluginRunner(path string, config map[string]any) *pluginRunner {
	if config == nil {
		config = map[string]any{}
	}
	return &pluginRunner{path: path, config: config}
}

type rpcRequest struct {
	Method  string         `json:"method"`
	Config  map[string]any `json:"config"`
	Payload any            `json:"payload"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (r *pluginRunner) start() error {
	// The process outlives any single request, so it is not bound to a request context.
	cmd := exec.CommandContext(context.Background(), r.path)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	logger.Get().Info("plugin started", "path", r.path, "pid", cmd.Process.Pid)
	r.cmd = cmd
	r.stdin = stdin
	r.enc = json.NewEncoder(stdin)
	r.dec = json.NewDecoder(stdout)
	return nil
}

func (r *pluginRunner) call(ctx context.Context, method string, payload any, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd == nil {
		if err := r.start(); err != nil {
			return err
		}
	}

	if err := r.enc.Encode(rpcRequest{Method: method, Config: r.config, Payload: payload}); err != nil {
		r.reset()
		return err
	}

	var resp rpcResponse
	if err := r.dec.Decode(&resp); err != nil {
		r.reset()
		return err
	}
	if resp.Error != nil {
		if resp.Error.Code != "" {
			return orcherr.New(resp.Error.Code, resp.Error.Message, nil)
		}
		return errors.New(resp.Error.Message)
	}
	if out != nil && resp.Result != nil {
		return json.Unmarshal(resp.Result, out)
	}
	return nil
}

// reset drops a broken process so the next call starts a fresh one. Callers hold mu.
func (r *pluginRunner) reset() {
	if r.cmd == nil {
		return
	}
	_ = r.stdin.Close()
	if r.cmd.Process != nil {
		_ = r.cmd.Process.Kill()
	}
	_ = r.cmd.Wait()
	logger.Get().Warn("plugin reset", "path", r.path)
	r.cmd, r.stdin, r.enc, r.dec = nil, nil, nil, nil
}

func (r *pluginRunner) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
}
