package grpc

import (
	"context"

	gogrpc "google.golang.org/grpc"
)

const ServiceName = "appointly.v1.BookingEngine"

// BookingEngine is the server API registered under ServiceName.
type BookingEngine interface {
	ResolveAvailability(ctx context.Context, req *ResolveAvailabilityRequest) (*ResolveAvailabilityResponse, error)
	ResolveCompanyAvailability(ctx context.Context, req *ResolveCompanyAvailabilityRequest) (*ResolveCompanyAvailabilityResponse, error)
	CreateBooking(ctx context.Context, req *CreateBookingRequest) (*BookingResponse, error)
	UpdateBooking(ctx context.Context, req *UpdateBookingRequest) (*BookingResponse, error)
	GetBooking(ctx context.Context, req *BookingRequest) (*BookingResponse, error)
	CancelBooking(ctx context.Context, req *BookingRequest) (*BookingResponse, error)
	ConfirmBooking(ctx context.Context, req *BookingRequest) (*BookingResponse, error)
	CompleteBooking(ctx context.Context, req *BookingRequest) (*BookingResponse, error)
	MarkNoShow(ctx context.Context, req *BookingRequest) (*BookingResponse, error)
	CheckConflict(ctx context.Context, req *CheckConflictRequest) (*CheckConflictResponse, error)
	ExportBookingCalendar(ctx context.Context, req *BookingRequest) (*ExportCalendarResponse, error)
}

var BookingEngineServiceDesc = gogrpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BookingEngine)(nil),
	Methods: []gogrpc.MethodDesc{
		{MethodName: "ResolveAvailability", Handler: unaryHandler("ResolveAvailability", BookingEngine.ResolveAvailability)},
		{MethodName: "ResolveCompanyAvailability", Handler: unaryHandler("ResolveCompanyAvailability", BookingEngine.ResolveCompanyAvailability)},
		{MethodName: "CreateBooking", Handler: unaryHandler("CreateBooking", BookingEngine.CreateBooking)},
		{MethodName: "UpdateBooking", Handler: unaryHandler("UpdateBooking", BookingEngine.UpdateBooking)},
		{MethodName: "GetBooking", Handler: unaryHandler("GetBooking", BookingEngine.GetBooking)},
		{MethodName: "CancelBooking", Handler: unaryHandler("CancelBooking", BookingEngine.CancelBooking)},
		{MethodName: "ConfirmBooking", Handler: unaryHandler("ConfirmBooking", BookingEngine.ConfirmBooking)},
		{MethodName: "CompleteBooking", Handler: unaryHandler("CompleteBooking", BookingEngine.CompleteBooking)},
		{MethodName: "MarkNoShow", Handler: unaryHandler("MarkNoShow", BookingEngine.MarkNoShow)},
		{MethodName: "CheckConflict", Handler: unaryHandler("CheckConflict", BookingEngine.CheckConflict)},
		{MethodName: "ExportBookingCalendar", Handler: unaryHandler("ExportBookingCalendar", BookingEngine.ExportBookingCalendar)},
	},
	Streams:  []gogrpc.StreamDesc{},
	Metadata: "appointly/v1/booking_engine",
}

func RegisterBookingEngine(s gogrpc.ServiceRegistrar, srv BookingEngine) {
	s.RegisterService(&BookingEngineServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unaryHandler adapts a typed BookingEngine method to a grpc.MethodHandler,
// decoding the request with the negotiated codec and running interceptors.
func unaryHandler[Req, Resp any](method string, call func(BookingEngine, context.Context, *Req) (*Resp, error)) gogrpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor gogrpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BookingEngine), ctx, in)
		}
		info := &gogrpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod(method),
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BookingEngine), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Client calls a BookingEngine over a connection, always with the JSON codec.
type Client struct {
	cc gogrpc.ClientConnInterface
}

func NewClient(cc gogrpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc gogrpc.ClientConnInterface, method string, in any, opts []gogrpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]gogrpc.CallOption{gogrpc.CallContentSubtype(codecName)}, opts...)
	if err := cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ResolveAvailability(ctx context.Context, in *ResolveAvailabilityRequest, opts ...gogrpc.CallOption) (*ResolveAvailabilityResponse, error) {
	return invoke[ResolveAvailabilityResponse](ctx, c.cc, "ResolveAvailability", in, opts)
}

func (c *Client) ResolveCompanyAvailability(ctx context.Context, in *ResolveCompanyAvailabilityRequest, opts ...gogrpc.CallOption) (*ResolveCompanyAvailabilityResponse, error) {
	return invoke[ResolveCompanyAvailabilityResponse](ctx, c.cc, "ResolveCompanyAvailability", in, opts)
}

func (c *Client) CreateBooking(ctx context.Context, in *CreateBookingRequest, opts ...gogrpc.CallOption) (*BookingResponse, error) {
	return invoke[BookingResponse](ctx, c.cc, "CreateBooking", in, opts)
}

func (c *Client) UpdateBooking(ctx context.Context, in *UpdateBookingRequest, opts ...gogrpc.CallOption) (*BookingResponse, error) {
	return invoke[BookingResponse](ctx, c.cc, "UpdateBooking", in, opts)
}

func (c *Client) GetBooking(ctx context.Context, in *BookingRequest, opts ...gogrpc.CallOption) (*BookingResponse, error) {
	return invoke[BookingResponse](ctx, c.cc, "GetBooking", in, opts)
}

func (c *Client) CancelBooking(ctx context.Context, in *BookingRequest, opts ...gogrpc.CallOption) (*BookingResponse, error) {
	return invoke[BookingResponse](ctx, c.cc, "CancelBooking", in, opts)
}

func (c *Client) ConfirmBooking(ctx context.Context, in *BookingRequest, opts ...gogrpc.CallOption) (*BookingResponse, error) {
	return invoke[BookingResponse](ctx, c.cc, "ConfirmBooking", in, opts)
}

func (c *Client) CompleteBooking(ctx context.Context, in *BookingRequest, opts ...gogrpc.CallOption) (*BookingResponse, error) {
	return invoke[BookingResponse](ctx, c.cc, "CompleteBooking", in, opts)
}

func (c *Client) MarkNoShow(ctx context.Context, in *BookingRequest, opts ...gogrpc.CallOption) (*BookingResponse, error) {
	return invoke[BookingResponse](ctx, c.cc, "MarkNoShow", in, opts)
}

func (c *Client) CheckConflict(ctx context.Context, in *CheckConflictRequest, opts ...gogrpc.CallOption) (*CheckConflictResponse, error) {
	return invoke[CheckConflictResponse](ctx, c.cc, "CheckConflict", in, opts)
}

func (c *Client) ExportBookingCalendar(ctx context.Context, in *BookingRequest, opts ...gogrpc.CallOption) (*ExportCalendarResponse, error) {
	return invoke[ExportCalendarResponse](ctx, c.cc, "ExportBookingCalendar", in, opts)
}
