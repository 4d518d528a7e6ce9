package server

import (
	"context"
	"encoding/base64"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/form16-extractor/internal/common"
	"github.com/joseph-ayodele/form16-extractor/internal/pipeline"
)

const extractMethod = "/form16.v1.ExtractionService/Extract"

// ExtractionServer takes {filename, mime_type, content_base64} and returns the
// five form fields under their JSON names.
type ExtractionServer interface {
	Extract(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var extractionServiceDesc = grpc.ServiceDesc{
	ServiceName: "form16.v1.ExtractionService",
	HandlerType: (*ExtractionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Extract", Handler: extractHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "form16/v1/extraction.proto",
}

func extractHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExtractionServer).Extract(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: extractMethod}
	h := func(ctx context.Context, req any) (any, error) {
		return srv.(ExtractionServer).Extract(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, h)
}

// RegisterExtractionServer registers srv on s.
func RegisterExtractionServer(s grpc.ServiceRegistrar, srv ExtractionServer) {
	s.RegisterService(&extractionServiceDesc, srv)
}

type ExtractionService struct {
	proc   Processor
	logger *zap.Logger
}

func NewExtractionService(proc Processor, logger *zap.Logger) *ExtractionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExtractionService{proc: proc, logger: logger}
}

func (s *ExtractionService) Extract(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := common.LoggerFromContext(ctx, s.logger)
	f := in.GetFields()

	raw := f["content_base64"].GetStringValue()
	if raw == "" {
		return nil, common.InvalidArgumentError("content_base64 is required")
	}
	content, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, common.InvalidArgumentError("content_base64 is not valid base64")
	}

	fields, err := s.proc.Process(ctx, pipeline.UploadedDocument{
		Content:  content,
		MIMEType: f["mime_type"].GetStringValue(),
		Filename: f["filename"].GetStringValue(),
	})
	if err != nil {
		log.Warn("grpc.extract.failed", zap.String("code", common.ErrorCode(err)), zap.Error(err))
		return nil, common.StatusError(err)
	}

	out, err := structpb.NewStruct(map[string]any{
		"assessmentYear": fields.AssessmentYear,
		"employerName":   fields.EmployerName,
		"deductorTAN":    fields.DeductorTAN,
		"employeeName":   fields.EmployeeName,
		"employeePAN":    fields.EmployeePAN,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

// unaryRequestContext mirrors the HTTP request-context middleware.
func unaryRequestContext(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		rid := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get("x-request-id"); len(v) > 0 {
				rid = v[0]
			}
		}
		if rid == "" || len(rid) > 64 {
			rid = uuid.NewString()
		}
		reqLog := logger.With(zap.String("req_id", rid), zap.String("method", info.FullMethod))
		ctx = common.WithLogger(common.WithRequestID(ctx, rid), reqLog)

		resp, err := next(ctx, req)
		reqLog.Info("grpc.request", zap.String("code", status.Code(err).String()))
		return resp, err
	}
}
