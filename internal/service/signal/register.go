package signal

import (
	"context"
	"encoding/base64"
	"reflect"
	"sort"
	"time"

	"github.com/mitchellh/mapstructure"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/jeffschecter/Signal/internal/app"
	svcErr "github.com/jeffschecter/Signal/internal/errors"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "signal.v1.Signal"

// Registrar ties the Signal service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
	opts   []Option
}

// NewRegistrar creates a new Registrar for the Signal service
func NewRegistrar(appCtx *app.AppContext, opts ...Option) *Registrar {
	return &Registrar{appCtx: appCtx, opts: opts}
}

// Register attaches the Signal service implementation to the gRPC server
func (r *Registrar) Register(s *grpc.Server) {
	desc := ServiceDesc()
	s.RegisterService(&desc, &rpcServer{svc: NewSignalService(r.appCtx, r.opts...)})
}

// Name is the service name registered with the gRPC server.
func (r *Registrar) Name() string { return ServiceName }

// handlerFunc serves one method: it decodes the request envelope into its
// own input type and returns the response fields.
type handlerFunc func(s *Service, ctx context.Context, in map[string]any) (map[string]any, error)

// rpcHandler is the handler type gRPC checks the implementation against.
type rpcHandler interface {
	invoke(ctx context.Context, h handlerFunc, in *structpb.Struct) (*structpb.Struct, error)
}

type rpcServer struct {
	svc *Service
}

func (r *rpcServer) invoke(ctx context.Context, h handlerFunc, in *structpb.Struct) (*structpb.Struct, error) {
	out, err := h(r.svc, ctx, in.AsMap())
	if err != nil {
		return nil, svcErr.Map(err)
	}
	resp, err := structpb.NewStruct(out)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return resp, nil
}

// ServiceDesc describes every unary method. Requests and responses are
// google.protobuf.Struct messages.
func ServiceDesc() grpc.ServiceDesc {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)

	desc := grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*rpcHandler)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "signal/v1/signal.proto",
	}
	for _, name := range names {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{MethodName: name, Handler: unary(name, handlers[name])})
	}
	return desc
}

func unary(method string, h handlerFunc) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		call := func(ctx context.Context, req any) (any, error) {
			return srv.(rpcHandler).invoke(ctx, h, req.(*structpb.Struct))
		}
		if interceptor == nil {
			return call(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		return interceptor(ctx, in, info, call)
	}
}

var handlers = map[string]handlerFunc{
	"CreateAccount":       handleCreateAccount,
	"LoadAccount":         handleLoadAccount,
	"UpdateAccount":       handleUpdateAccount,
	"Ping":                handlePing,
	"Deactivate":          handleDeactivate,
	"Reactivate":          handleReactivate,
	"SetIntro":            handleSetIntro,
	"GetIntro":            handleGetIntro,
	"SetImage":            handleSetImage,
	"GetImage":            handleGetImage,
	"RecordProfileView":   handleRecordProfileView,
	"SetSaved":            handleSetSaved,
	"SetBlocked":          handleSetBlocked,
	"SendMessage":         handleSendMessage,
	"GetMessageFile":      handleGetMessageFile,
	"GetGarden":           handleGetGarden,
	"SendRose":            handleSendRose,
	"AcknowledgeRose":     handleAcknowledgeRose,
	"Water":               handleWater,
	"EligibleForWatering": handleEligibleForWatering,
	"History":             handleHistory,
	"UnreadCounts":        handleUnreadCounts,
}

// decode fills a request struct. Ids may arrive as numbers or strings,
// blobs as URL-safe base64 and times as RFC 3339 strings.
func decode(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			base64Hook,
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(in); err != nil {
		return svcErr.InvalidArgument("%v", err)
	}
	return nil
}

var bytesType = reflect.TypeOf([]byte(nil))

func base64Hook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != bytesType {
		return data, nil
	}
	return base64.URLEncoding.DecodeString(data.(string))
}

func encodeBytes(b []byte) string { return base64.URLEncoding.EncodeToString(b) }
