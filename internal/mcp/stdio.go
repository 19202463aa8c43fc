package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dtnitsch/llm-archive-reader/pkg/logger"
)

// Serve reads newline-delimited requests from r and writes one compact JSON
// response per line to w. It returns nil when r is exhausted or ctx is done.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	reader := bufio.NewReader(r)
	encoder := json.NewEncoder(w)

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, readErr := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			if resp := s.HandleMessage(line); resp != nil {
				if err := encoder.Encode(resp); err != nil {
					return fmt.Errorf("write response: %w", err)
				}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return fmt.Errorf("read request: %w", readErr)
		}
	}
}

// HandleMessage decodes and handles one raw JSON-RPC message. Malformed JSON
// yields a ParseError response with a null id.
func (s *Server) HandleMessage(raw []byte) *Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		s.log.Warn("failed to parse request", logger.Error(err))
		return s.errorResponse(nil, ParseError, "Failed to parse request")
	}
	return s.HandleRequest(&req)
}
