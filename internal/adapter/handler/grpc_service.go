package handler

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// The register service is described by hand and carried over gRPC with a
// JSON codec, so clients only need the request and view structs below.

const RegisterServiceName = "pos.v1.Register"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type OpenTerminalRequest struct {
	TerminalID string `json:"terminal_id"`
}

type TerminalRequest struct {
	TerminalID string `json:"terminal_id"`
}

type AddItemRequest struct {
	TerminalID string `json:"terminal_id"`
	ProductID  string `json:"product_id"`
	// Quantity defaults to 1 when omitted.
	Quantity *int32 `json:"quantity,omitempty"`
}

type RemoveItemRequest struct {
	TerminalID string `json:"terminal_id"`
	Index      int32  `json:"index"`
}

type LookupProductRequest struct {
	ProductID string `json:"product_id"`
}

type RecentSalesRequest struct {
	// Limit defaults to 50 when zero.
	Limit int32 `json:"limit"`
}

type RecentSalesResponse struct {
	Sales []*SaleView `json:"sales"`
}

type RegisterServer interface {
	OpenTerminal(context.Context, *OpenTerminalRequest) (*CartView, error)
	AddItem(context.Context, *AddItemRequest) (*CartView, error)
	RemoveItem(context.Context, *RemoveItemRequest) (*CartView, error)
	Checkout(context.Context, *TerminalRequest) (*SaleView, error)
	CurrentCart(context.Context, *TerminalRequest) (*CartView, error)
	CloseTerminal(context.Context, *TerminalRequest) (*CartView, error)
	LookupProduct(context.Context, *LookupProductRequest) (*ProductView, error)
	RecentSales(context.Context, *RecentSalesRequest) (*RecentSalesResponse, error)
}

var RegisterServiceDesc = grpc.ServiceDesc{
	ServiceName: RegisterServiceName,
	HandlerType: (*RegisterServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("OpenTerminal", RegisterServer.OpenTerminal),
		unaryMethod("AddItem", RegisterServer.AddItem),
		unaryMethod("RemoveItem", RegisterServer.RemoveItem),
		unaryMethod("Checkout", RegisterServer.Checkout),
		unaryMethod("CurrentCart", RegisterServer.CurrentCart),
		unaryMethod("CloseTerminal", RegisterServer.CloseTerminal),
		unaryMethod("LookupProduct", RegisterServer.LookupProduct),
		unaryMethod("RecentSales", RegisterServer.RecentSales),
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterRegisterServer(s grpc.ServiceRegistrar, srv RegisterServer) {
	s.RegisterService(&RegisterServiceDesc, srv)
}

func fullMethod(name string) string {
	return "/" + RegisterServiceName + "/" + name
}

func unaryMethod[Req, Resp any](name string, call func(RegisterServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(RegisterServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(RegisterServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// RegisterClient calls the register service with the JSON codec.
type RegisterClient struct {
	cc grpc.ClientConnInterface
}

func NewRegisterClient(cc grpc.ClientConnInterface) *RegisterClient {
	return &RegisterClient{cc: cc}
}

func (c *RegisterClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(jsonCodec{}.Name())}, opts...)
	return c.cc.Invoke(ctx, fullMethod(method), in, out, opts...)
}

func (c *RegisterClient) OpenTerminal(ctx context.Context, in *OpenTerminalRequest, opts ...grpc.CallOption) (*CartView, error) {
	out := new(CartView)
	if err := c.invoke(ctx, "OpenTerminal", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RegisterClient) AddItem(ctx context.Context, in *AddItemRequest, opts ...grpc.CallOption) (*CartView, error) {
	out := new(CartView)
	if err := c.invoke(ctx, "AddItem", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RegisterClient) RemoveItem(ctx context.Context, in *RemoveItemRequest, opts ...grpc.CallOption) (*CartView, error) {
	out := new(CartView)
	if err := c.invoke(ctx, "RemoveItem", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RegisterClient) Checkout(ctx context.Context, in *TerminalRequest, opts ...grpc.CallOption) (*SaleView, error) {
	out := new(SaleView)
	if err := c.invoke(ctx, "Checkout", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RegisterClient) CurrentCart(ctx context.Context, in *TerminalRequest, opts ...grpc.CallOption) (*CartView, error) {
	out := new(CartView)
	if err := c.invoke(ctx, "CurrentCart", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RegisterClient) CloseTerminal(ctx context.Context, in *TerminalRequest, opts ...grpc.CallOption) (*CartView, error) {
	out := new(CartView)
	if err := c.invoke(ctx, "CloseTerminal", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RegisterClient) LookupProduct(ctx context.Context, in *LookupProductRequest, opts ...grpc.CallOption) (*ProductView, error) {
	out := new(ProductView)
	if err := c.invoke(ctx, "LookupProduct", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RegisterClient) RecentSales(ctx context.Context, in *RecentSalesRequest, opts ...grpc.CallOption) (*RecentSalesResponse, error) {
	out := new(RecentSalesResponse)
	if err := c.invoke(ctx, "RecentSales", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
