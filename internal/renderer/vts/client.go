// Package vts provides a renderer bridge speaking a VTube-Studio-style JSON
// websocket API. It implements both [renderer.ModelLoader] and
// [renderer.AnimationRenderer] so the engine can drive an off-process
// avatar renderer (Live2D or VRM) over a single connection.
//
// Protocol shape: every request is a JSON envelope carrying a message type,
// a client-generated request ID, and a type-specific data payload; the
// renderer answers with an envelope echoing the request ID. Requests are
// serialised over the connection, one in flight at a time.
package vts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"

	"github.com/aikata-app/aikata/internal/renderer"
)

// Compile-time interface assertions.
var (
	_ renderer.ModelLoader       = (*Client)(nil)
	_ renderer.AnimationRenderer = (*Client)(nil)
)

const (
	msgModelLoad     = "ModelLoadRequest"
	msgModelUnload   = "ModelUnloadRequest"
	msgMotionPlay    = "MotionPlayRequest"
	msgExpressionSet = "ExpressionActivationRequest"
	msgMotionStop    = "MotionStopRequest"
	msgError         = "APIError"
)

// envelope is the JSON wire format shared by requests and responses.
type envelope struct {
	APIName     string          `json:"apiName"`
	RequestID   string          `json:"requestID"`
	MessageType string          `json:"messageType"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// apiError is the data payload of an APIError response.
type apiError struct {
	ErrorID int    `json:"errorID"`
	Message string `json:"message"`
}

type modelLoadData struct {
	ModelRef string         `json:"modelRef"`
	Format   string         `json:"format,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type modelUnloadData struct {
	CharacterID string `json:"characterID"`
}

type motionPlayData struct {
	Group    string `json:"group"`
	Name     string `json:"name,omitempty"`
	Priority int    `json:"priority,omitempty"`
}

type expressionData struct {
	Expression string  `json:"expression"`
	Intensity  float64 `json:"intensity"`
}

type motionStopData struct {
	CharacterID string `json:"characterID"`
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithAPIName overrides the apiName field sent in every envelope.
// Default: "AikataRendererAPI".
func WithAPIName(name string) Option {
	return func(c *Client) {
		c.apiName = name
	}
}

// Client is a websocket renderer bridge. All methods are safe for
// concurrent use; requests are serialised over the single connection.
type Client struct {
	apiName string

	mu   sync.Mutex // guards conn and the request/response round-trip
	conn *websocket.Conn

	reqSeq atomic.Uint64
}

// Dial connects to a renderer at url (e.g., "ws://127.0.0.1:8001") and
// returns a ready Client. Close the client when done.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("vts: dial %q: %w", url, err)
	}

	c := &Client{
		apiName: "AikataRendererAPI",
		conn:    conn,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Close terminates the websocket connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close(websocket.StatusNormalClosure, "done")
	c.conn = nil
	return err
}

// Load implements [renderer.ModelLoader.Load].
func (c *Client) Load(ctx context.Context, cfg renderer.ModelConfig) error {
	return c.roundTrip(ctx, msgModelLoad, modelLoadData{
		ModelRef: cfg.Ref,
		Format:   cfg.Format,
		Options:  cfg.Options,
	})
}

// Unload implements [renderer.ModelLoader.Unload].
func (c *Client) Unload(ctx context.Context, characterID string) error {
	return c.roundTrip(ctx, msgModelUnload, modelUnloadData{CharacterID: characterID})
}

// PlayAnimation implements [renderer.AnimationRenderer.PlayAnimation].
func (c *Client) PlayAnimation(ctx context.Context, req renderer.AnimationRequest) error {
	return c.roundTrip(ctx, msgMotionPlay, motionPlayData{
		Group:    req.Group,
		Name:     req.Name,
		Priority: req.Priority,
	})
}

// SetExpression implements [renderer.AnimationRenderer.SetExpression].
func (c *Client) SetExpression(ctx context.Context, expr renderer.Expression) error {
	return c.roundTrip(ctx, msgExpressionSet, expressionData{
		Expression: expr.Name,
		Intensity:  expr.Intensity,
	})
}

// Stop implements [renderer.AnimationRenderer.Stop].
func (c *Client) Stop(ctx context.Context, characterID string) error {
	return c.roundTrip(ctx, msgMotionStop, motionStopData{CharacterID: characterID})
}

// roundTrip sends one request envelope and waits for the response with the
// matching request ID, surfacing APIError payloads as Go errors.
func (c *Client) roundTrip(ctx context.Context, messageType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("vts: marshal %s: %w", messageType, err)
	}

	reqID := strconv.FormatUint(c.reqSeq.Add(1), 10)
	req := envelope{
		APIName:     c.apiName,
		RequestID:   reqID,
		MessageType: messageType,
		Data:        payload,
	}
	reqBytes, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("vts: marshal envelope: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return errors.New("vts: client is closed")
	}

	if err := c.conn.Write(ctx, websocket.MessageText, reqBytes); err != nil {
		return fmt.Errorf("vts: write %s: %w", messageType, err)
	}

	// Read until the response for our request ID arrives. The renderer may
	// interleave unsolicited event messages; those are skipped.
	for {
		_, msg, err := c.conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("vts: read response for %s: %w", messageType, err)
		}

		var resp envelope
		if err := json.Unmarshal(msg, &resp); err != nil {
			return fmt.Errorf("vts: decode response: %w", err)
		}
		if resp.RequestID != reqID {
			continue
		}

		if resp.MessageType == msgError {
			var apiErr apiError
			if err := json.Unmarshal(resp.Data, &apiErr); err != nil {
				return fmt.Errorf("vts: %s failed with undecodable error payload", messageType)
			}
			return fmt.Errorf("vts: %s failed: %s (error %d)", messageType, apiErr.Message, apiErr.ErrorID)
		}
		return nil
	}
}
