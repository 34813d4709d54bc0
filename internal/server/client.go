package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/contentlock/internal/service"
)

// CommandError is a rejected command as seen by a client.
type CommandError struct {
	Command string
	Kind    string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Command, e.Kind)
}

// Client calls a running daemon over gRPC.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the daemon at addr. The connection is plaintext; the
// daemon only listens on loopback.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call sends cmd and decodes the result into out. A rejected command
// returns a *CommandError carrying the error kind.
func (c *Client) Call(ctx context.Context, cmd service.Command, out any) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode %s: %w", cmd.CommandName(), err)
	}
	in := new(structpb.Struct)
	if err := protojson.Unmarshal(payload, in); err != nil {
		return fmt.Errorf("encode %s: %w", cmd.CommandName(), err)
	}

	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, FullMethod(cmd.CommandName()), in, resp); err != nil {
		if st, ok := status.FromError(err); ok && rejected(st.Code()) {
			return &CommandError{Command: cmd.CommandName(), Kind: st.Message()}
		}
		return err
	}
	if out == nil {
		return nil
	}
	data, err := protojson.Marshal(resp)
	if err != nil {
		return fmt.Errorf("decode %s: %w", cmd.CommandName(), err)
	}
	return json.Unmarshal(data, out)
}

// ErrorKind extracts the kind from a client error, or "" when err did not
// come from the daemon rejecting a command.
func ErrorKind(err error) string {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

func rejected(c codes.Code) bool {
	switch c {
	case codes.FailedPrecondition, codes.PermissionDenied, codes.InvalidArgument, codes.Internal:
		return true
	default:
		return false
	}
}
