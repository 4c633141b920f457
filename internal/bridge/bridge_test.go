package bridge_test

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xtding233/heelshift/internal/bridge"
	"github.com/xtding233/heelshift/internal/model"
	"github.com/xtding233/heelshift/internal/store"
)

func startBridge(t *testing.T) (*store.Store, *bridge.Client) {
	t.Helper()
	s := store.New(model.DefaultDocument())

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	bridge.Register(srv, bridge.NewService(s, nil))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := bridge.Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return s, c
}

func TestAssignRevokeList(t *testing.T) {
	s, c := startBridge(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := model.NewEntityConfig()
	cfg.DefaultOffset = 0.3
	r := cfg.AddOffsetRule(model.ModelKey{Slot: model.SlotFeet, ModelID: 42})
	r.Offset = -0.125

	if err := c.Assign(ctx, 4000000000, "plugin", *cfg); err != nil {
		t.Fatalf("assign: %v", err)
	}
	ext, ok := s.External(4000000000)
	if !ok {
		t.Fatalf("assignment not stored")
	}
	if ext.Source != "plugin" || ext.Base().DefaultOffset != 0.3 || ext.Base().Offsets[0].Offset != -0.125 {
		t.Fatalf("assignment content lost: %+v", ext.Base())
	}

	ids, err := c.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 1 || ids[0] != 4000000000 {
		t.Fatalf("unexpected ids %v", ids)
	}

	if err := c.Revoke(ctx, 4000000000); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, ok := s.External(4000000000); ok {
		t.Fatalf("assignment should be gone")
	}
	// revoking again is harmless
	if err := c.Revoke(ctx, 4000000000); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
}

func TestAssignRejectsBadPayload(t *testing.T) {
	s := store.New(model.DefaultDocument())
	svc := bridge.NewService(s, nil)

	cases := map[string]map[string]any{
		"missing entity": {"config": map[string]any{}},
		"missing config": {"entity_id": 1},
		"negative id":    {"entity_id": -1, "config": map[string]any{}},
		"bad config":     {"entity_id": 1, "config": "nope"},
	}
	for name, fields := range cases {
		in, err := structpb.NewStruct(fields)
		if err != nil {
			t.Fatal(err)
		}
		_, err = svc.Assign(context.Background(), in)
		if status.Code(err) != codes.InvalidArgument {
			t.Fatalf("%s: want InvalidArgument, got %v", name, err)
		}
	}
	if ids := s.ExternalIDs(); len(ids) != 0 {
		t.Fatalf("nothing should be assigned, got %v", ids)
	}
}

func TestListEmpty(t *testing.T) {
	svc := bridge.NewService(store.New(model.DefaultDocument()), nil)
	out, err := svc.List(context.Background(), &emptypb.Empty{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := out.Fields["entity_ids"].GetListValue().GetValues(); len(got) != 0 {
		t.Fatalf("want empty list, got %v", got)
	}
}
