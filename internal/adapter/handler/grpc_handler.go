package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/rl1809/cart-store/internal/core/domain"
	"github.com/rl1809/cart-store/internal/core/service"
)

const (
	CartServiceName = "cart.v1.CartService"
	sessionMetadata = "x-session-id"
)

// CartServiceServer is the gRPC surface of the cart. Messages are protobuf
// well-known types so no generated code is needed.
type CartServiceServer interface {
	GetCart(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	AddProduct(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	RemoveProduct(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	UpdateProductAmount(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var CartServiceDesc = grpc.ServiceDesc{
	ServiceName: CartServiceName,
	HandlerType: (*CartServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetCart", Handler: unaryHandler("GetCart", func() *emptypb.Empty { return new(emptypb.Empty) }, CartServiceServer.GetCart)},
		{MethodName: "AddProduct", Handler: unaryHandler("AddProduct", func() *wrapperspb.Int64Value { return new(wrapperspb.Int64Value) }, CartServiceServer.AddProduct)},
		{MethodName: "RemoveProduct", Handler: unaryHandler("RemoveProduct", func() *wrapperspb.Int64Value { return new(wrapperspb.Int64Value) }, CartServiceServer.RemoveProduct)},
		{MethodName: "UpdateProductAmount", Handler: unaryHandler("UpdateProductAmount", func() *structpb.Struct { return new(structpb.Struct) }, CartServiceServer.UpdateProductAmount)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cart/v1/cart.proto",
}

func RegisterCartServiceServer(s grpc.ServiceRegistrar, srv CartServiceServer) {
	s.RegisterService(&CartServiceDesc, srv)
}

func unaryHandler[Req any](
	method string,
	newReq func() Req,
	call func(CartServiceServer, context.Context, Req) (*structpb.Struct, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + CartServiceName + "/" + method

	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CartServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CartServiceServer), ctx, req.(Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type GRPCHandler struct {
	sessions *service.Sessions
}

func NewGRPCHandler(sessions *service.Sessions) *GRPCHandler {
	return &GRPCHandler{sessions: sessions}
}

func (h *GRPCHandler) GetCart(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	store, err := h.store(ctx)
	if err != nil {
		return nil, err
	}
	return cartStruct(store.Cart())
}

func (h *GRPCHandler) AddProduct(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	productID, err := toProductID(req.GetValue())
	if err != nil {
		return nil, err
	}
	store, err := h.store(ctx)
	if err != nil {
		return nil, err
	}

	if err := store.AddProduct(ctx, productID); err != nil {
		return nil, toStatus(domain.OpAdd, err)
	}
	return cartStruct(store.Cart())
}

func (h *GRPCHandler) RemoveProduct(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	productID, err := toProductID(req.GetValue())
	if err != nil {
		return nil, err
	}
	store, err := h.store(ctx)
	if err != nil {
		return nil, err
	}

	if err := store.RemoveProduct(ctx, productID); err != nil {
		return nil, toStatus(domain.OpRemove, err)
	}
	return cartStruct(store.Cart())
}

// UpdateProductAmount expects {"productId": n, "amount": n}.
func (h *GRPCHandler) UpdateProductAmount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	rawID, err := integralField(fields, "productId")
	if err != nil {
		return nil, err
	}
	productID, err := toProductID(rawID)
	if err != nil {
		return nil, err
	}
	amount, err := integralField(fields, "amount")
	if err != nil {
		return nil, err
	}
	if amount < math.MinInt32 || amount > math.MaxInt32 {
		return nil, status.Error(codes.InvalidArgument, "amount out of range")
	}

	store, err := h.store(ctx)
	if err != nil {
		return nil, err
	}

	err = store.UpdateProductAmount(ctx, service.UpdateProductAmount{
		ProductID: productID,
		Amount:    int(amount),
	})
	if err != nil {
		return nil, toStatus(domain.OpUpdate, err)
	}
	return cartStruct(store.Cart())
}

func (h *GRPCHandler) store(ctx context.Context) (*service.CartStore, error) {
	sessionID := service.DefaultSession
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(sessionMetadata); len(values) > 0 {
			sessionID = values[0]
		}
	}

	store, err := h.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, status.Error(codes.Unavailable, "cart storage unavailable")
	}
	return store, nil
}

// integralField reads a required whole-number field.
func integralField(fields map[string]*structpb.Value, name string) (int64, error) {
	v, ok := fields[name]
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	num, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a number", name)
	}
	f := num.NumberValue
	if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", name)
	}
	return int64(f), nil
}

func toProductID(v int64) (int, error) {
	if v <= 0 || v > math.MaxInt32 {
		return 0, status.Errorf(codes.InvalidArgument, "invalid product id %d", v)
	}
	return int(v), nil
}

func toStatus(op domain.Operation, err error) error {
	code := codes.Internal
	switch domain.Classify(err) {
	case domain.OutcomeOutOfStock:
		code = codes.FailedPrecondition
	case domain.OutcomeNotFound:
		code = codes.NotFound
	}
	return status.Error(code, domain.NoticeFor(op, err))
}

// cartStruct renders the cart as {"items": [...], "totalAmount": n}.
func cartStruct(cart domain.Cart) (*structpb.Struct, error) {
	blob, err := json.Marshal(cart)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode cart: %v", err))
	}
	var items []any
	if err := json.Unmarshal(blob, &items); err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode cart: %v", err))
	}
	if items == nil {
		items = []any{}
	}

	out, err := structpb.NewStruct(map[string]any{
		"items":       items,
		"totalAmount": cart.TotalAmount(),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode cart: %v", err))
	}
	return out, nil
}
