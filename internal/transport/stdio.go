package transport

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"codebase-context-server/internal/errors"
	"codebase-context-server/internal/mcp"
	"codebase-context-server/internal/models"
	"codebase-context-server/internal/service"
)

// maxLineSize bounds one newline-delimited JSON-RPC request.
const maxLineSize = 50 * 1024 * 1024

// StdioHandler processes newline-delimited JSON-RPC over stdin/stdout. MCP
// methods route through the processor; the engine operations are also
// callable directly as JSON-RPC methods with typed results.
type StdioHandler struct {
	engine    service.Engine
	processor *mcp.Processor
}

// NewStdioHandler creates a StdioHandler.
func NewStdioHandler(engine service.Engine) *StdioHandler {
	return &StdioHandler{
		engine:    engine,
		processor: mcp.NewProcessor(engine),
	}
}

// Start reads requests from input until EOF, writing one response line per
// request. A malformed request produces an error response, never a crash.
func (h *StdioHandler) Start(input io.Reader, output io.Writer) error {
	logrus.Info("starting stdio JSON-RPC handler")
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var req models.JSONRPCRequest
		if err := json.Unmarshal(line, &req); err != nil {
			h.writeResponse(output, models.JSONRPCResponse{
				JSONRPC: "2.0",
				Error:   errors.ToJSONRPCError(errors.NewParseError(fmt.Sprintf("invalid JSON: %v", err))),
			})
			continue
		}

		resp := models.JSONRPCResponse{JSONRPC: "2.0", ID: req.ID}
		if req.JSONRPC != "2.0" {
			resp.Error = errors.ToJSONRPCError(errors.NewInvalidRequestError("jsonrpc version must be '2.0'"))
			h.writeResponse(output, resp)
			continue
		}
		if req.Method == "" {
			resp.Error = errors.ToJSONRPCError(errors.NewInvalidRequestError("method not specified"))
			h.writeResponse(output, resp)
			continue
		}

		result, rpcErr := h.dispatch(req)
		if rpcErr != nil {
			resp.Error = rpcErr
		} else {
			resp.Result = result
		}
		h.writeResponse(output, resp)
	}

	if err := scanner.Err(); err != nil {
		logrus.WithError(err).Error("reading from stdio")
		return err
	}
	logrus.Info("stdio JSON-RPC handler finished")
	return nil
}

func (h *StdioHandler) dispatch(req models.JSONRPCRequest) (interface{}, *models.JSONRPCError) {
	switch req.Method {
	case "initialize", "tools/list", "tools/call":
		return h.processor.ProcessRequest(req)
	case "analyze_directory":
		var params models.AnalyzeDirectoryRequest
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, invalidParams(req.Method, err)
		}
		resp, errDetail := h.engine.AnalyzeDirectory(params)
		return asResult(resp, errDetail)
	case "read_files":
		var params models.ReadFilesRequest
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, invalidParams(req.Method, err)
		}
		resp, errDetail := h.engine.ReadFiles(params)
		return asResult(resp, errDetail)
	case "write_file":
		var params models.WriteFileRequest
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, invalidParams(req.Method, err)
		}
		resp, errDetail := h.engine.WriteFile(params)
		return asResult(resp, errDetail)
	case "edit_file":
		var params models.EditFileRequest
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, invalidParams(req.Method, err)
		}
		resp, errDetail := h.engine.EditFile(params)
		return asResult(resp, errDetail)
	default:
		return nil, errors.ToJSONRPCError(errors.NewMethodNotFoundError(req.Method))
	}
}

func invalidParams(method string, err error) *models.JSONRPCError {
	return errors.ToJSONRPCError(
		errors.NewInvalidParamsError(fmt.Sprintf("Invalid params for %s: %v", method, err), nil))
}

func asResult(resp interface{}, errDetail *models.ErrorDetail) (interface{}, *models.JSONRPCError) {
	if errDetail != nil {
		return nil, errors.ToJSONRPCError(errDetail)
	}
	return resp, nil
}

func (h *StdioHandler) writeResponse(output io.Writer, resp models.JSONRPCResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		logrus.WithError(err).Error("marshaling JSON-RPC response")
		fallback := models.JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      resp.ID,
			Error:   errors.ToJSONRPCError(errors.NewInternalError("failed to marshal response")),
		}
		data, _ = json.Marshal(fallback)
	}
	if _, err := fmt.Fprintln(output, string(data)); err != nil {
		logrus.WithError(err).Error("writing JSON-RPC response")
	}
}
