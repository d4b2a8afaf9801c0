package rpc

import (
	"context"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bobg/scm"
)

const serviceName = "scm.Blobstore"

// blobstoreServer is the handler type of the service.
type blobstoreServer interface {
	get(context.Context, *keyRequest) (*getResponse, error)
	put(context.Context, *putRequest) (*putResponse, error)
	isPresent(context.Context, *keyRequest) (*presentResponse, error)
	listKeys(*listKeysRequest, grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*blobstoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Get", Handler: unaryHandler("Get", blobstoreServer.get)},
		{MethodName: "Put", Handler: unaryHandler("Put", blobstoreServer.put)},
		{MethodName: "IsPresent", Handler: unaryHandler("IsPresent", blobstoreServer.isPresent)},
	},
	Streams: []grpc.StreamDesc{{
		StreamName:    "ListKeys",
		Handler:       listKeysHandler,
		ServerStreams: true,
	}},
	Metadata: "scm/store/rpc",
}

func unaryHandler[Req, Resp any](method string, f func(blobstoreServer, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return f(srv.(blobstoreServer), ctx, req.(*Req))
		}
		if interceptor == nil {
			return handler(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + serviceName + "/" + method,
		}
		return interceptor(ctx, req, info, handler)
	}
}

func listKeysHandler(srv any, stream grpc.ServerStream) error {
	req := new(listKeysRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(blobstoreServer).listKeys(req, stream)
}

// Server serves a Blobstore over gRPC.
type Server struct {
	s scm.Blobstore
}

var _ blobstoreServer = &Server{}

// NewServer produces a new Server for s.
func NewServer(s scm.Blobstore) *Server {
	return &Server{s: s}
}

// Register registers srv with a grpc.Server.
func Register(g *grpc.Server, srv *Server) {
	g.RegisterService(&serviceDesc, srv)
}

func (s *Server) get(ctx context.Context, req *keyRequest) (*getResponse, error) {
	b, ok, err := s.s.Get(ctx, req.Key)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &getResponse{Blob: b, Found: ok}, nil
}

func (s *Server) put(ctx context.Context, req *putRequest) (*putResponse, error) {
	if err := s.s.Put(ctx, req.Key, req.Blob); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &putResponse{}, nil
}

func (s *Server) isPresent(ctx context.Context, req *keyRequest) (*presentResponse, error) {
	ok, err := s.s.IsPresent(ctx, req.Key)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &presentResponse{Present: ok}, nil
}

func (s *Server) listKeys(req *listKeysRequest, stream grpc.ServerStream) error {
	lister, ok := s.s.(scm.Lister)
	if !ok {
		return status.Error(codes.Unimplemented, "store cannot list keys")
	}
	err := lister.ListKeys(stream.Context(), req.Start, func(key string) error {
		return stream.SendMsg(&listKeysResponse{Key: key})
	})
	return errors.Wrap(err, "listing keys")
}
