package handler

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/rl1809/cart-store/internal/adapter/storage"
	"github.com/rl1809/cart-store/internal/core/domain"
	"github.com/rl1809/cart-store/internal/core/service"
)

func newGRPCConn(t *testing.T) *grpc.ClientConn {
	t.Helper()
	log, _ := test.NewNullLogger()

	catalog := &mockCatalog{stock: map[int]int{1: 2, 2: 10}}
	kv := storage.NewFileKV(filepath.Join(t.TempDir(), "carts.json"))
	sessions := service.NewSessions(catalog, kv, nil, "", log)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterCartServiceServer(srv, NewGRPCHandler(sessions))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func method(name string) string {
	return "/" + CartServiceName + "/" + name
}

func totalAmount(s *structpb.Struct) int {
	return int(s.GetFields()["totalAmount"].GetNumberValue())
}

func TestGRPC_AddUpdateRemove(t *testing.T) {
	conn := newGRPCConn(t)
	ctx := metadata.AppendToOutgoingContext(context.Background(), sessionMetadata, "g1")

	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, method("AddProduct"), wrapperspb.Int64(2), out); err != nil {
		t.Fatalf("add: %v", err)
	}
	if totalAmount(out) != 1 {
		t.Errorf("expected 1 unit, got %d", totalAmount(out))
	}

	update, _ := structpb.NewStruct(map[string]any{"productId": 2, "amount": 4})
	if err := conn.Invoke(ctx, method("UpdateProductAmount"), update, out); err != nil {
		t.Fatalf("update: %v", err)
	}
	items := out.GetFields()["items"].GetListValue().GetValues()
	if len(items) != 1 || items[0].GetStructValue().GetFields()["amount"].GetNumberValue() != 4 {
		t.Errorf("unexpected items %v", items)
	}

	if err := conn.Invoke(ctx, method("RemoveProduct"), wrapperspb.Int64(2), out); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := conn.Invoke(ctx, method("GetCart"), &emptypb.Empty{}, out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if totalAmount(out) != 0 {
		t.Errorf("expected empty cart, got %d", totalAmount(out))
	}
}

func TestGRPC_StatusCodes(t *testing.T) {
	conn := newGRPCConn(t)
	ctx := context.Background()
	out := new(structpb.Struct)

	conn.Invoke(ctx, method("AddProduct"), wrapperspb.Int64(1), out)
	conn.Invoke(ctx, method("AddProduct"), wrapperspb.Int64(1), out)

	err := conn.Invoke(ctx, method("AddProduct"), wrapperspb.Int64(1), out)
	if st := status.Convert(err); st.Code() != codes.FailedPrecondition || st.Message() != domain.NoticeOutOfStock {
		t.Errorf("expected FailedPrecondition/out of stock, got %v", err)
	}

	err = conn.Invoke(ctx, method("RemoveProduct"), wrapperspb.Int64(9), out)
	if st := status.Convert(err); st.Code() != codes.NotFound || st.Message() != domain.NoticeRemoveFailed {
		t.Errorf("expected NotFound, got %v", err)
	}

	err = conn.Invoke(ctx, method("AddProduct"), wrapperspb.Int64(-1), out)
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument, got %v", err)
	}

	invalid := []struct {
		name   string
		fields map[string]any
	}{
		{"missing amount", map[string]any{"productId": 1}},
		{"missing product", map[string]any{"amount": 2}},
		{"fractional amount", map[string]any{"productId": 1, "amount": 1.5}},
		{"fractional product", map[string]any{"productId": 1.9, "amount": 1}},
		{"string amount", map[string]any{"productId": 1, "amount": "3"}},
		{"string product", map[string]any{"productId": "1", "amount": 1}},
		{"null amount", map[string]any{"productId": 1, "amount": nil}},
		{"bool amount", map[string]any{"productId": 1, "amount": true}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			req, err := structpb.NewStruct(tt.fields)
			if err != nil {
				t.Fatalf("build request: %v", err)
			}
			err = conn.Invoke(ctx, method("UpdateProductAmount"), req, out)
			if status.Code(err) != codes.InvalidArgument {
				t.Errorf("expected InvalidArgument, got %v", err)
			}
		})
	}

	// Rejected updates leave the cart untouched
	if err := conn.Invoke(ctx, method("GetCart"), &emptypb.Empty{}, out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if totalAmount(out) != 2 {
		t.Errorf("expected 2 units of product 1, got %d", totalAmount(out))
	}
}

func TestGRPC_DefaultSessionWithoutMetadata(t *testing.T) {
	conn := newGRPCConn(t)
	out := new(structpb.Struct)

	conn.Invoke(context.Background(), method("AddProduct"), wrapperspb.Int64(2), out)

	other := metadata.AppendToOutgoingContext(context.Background(), sessionMetadata, "someone-else")
	if err := conn.Invoke(other, method("GetCart"), &emptypb.Empty{}, out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if totalAmount(out) != 0 {
		t.Errorf("expected a separate empty cart, got %d", totalAmount(out))
	}

	if err := conn.Invoke(context.Background(), method("GetCart"), &emptypb.Empty{}, out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if totalAmount(out) != 1 {
		t.Errorf("expected default session to hold 1 unit, got %d", totalAmount(out))
	}
}
