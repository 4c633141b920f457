package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xtding233/heelshift/internal/model"
)

// Client calls a remote assignment bridge.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to addr without transport security. The bridge is meant for
// loopback peers.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial bridge %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) Assign(ctx context.Context, entityID uint32, source string, cfg model.EntityConfig) error {
	in, err := encodeStruct(assignRequest{EntityID: &entityID, Source: source, Config: &cfg})
	if err != nil {
		return err
	}
	return c.conn.Invoke(ctx, "/"+ServiceName+"/Assign", in, new(emptypb.Empty))
}

func (c *Client) Revoke(ctx context.Context, entityID uint32) error {
	in, err := encodeStruct(assignRequest{EntityID: &entityID})
	if err != nil {
		return err
	}
	return c.conn.Invoke(ctx, "/"+ServiceName+"/Revoke", in, new(emptypb.Empty))
}

func (c *Client) List(ctx context.Context) ([]uint32, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/List", new(emptypb.Empty), out); err != nil {
		return nil, err
	}
	b, err := protojson.Marshal(out)
	if err != nil {
		return nil, err
	}
	var resp struct {
		EntityIDs []uint32 `json:"entity_ids"`
	}
	if err := json.Unmarshal(b, &resp); err != nil {
		return nil, err
	}
	return resp.EntityIDs, nil
}
