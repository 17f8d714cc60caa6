package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Billy-Davies-2/knockout-pool/internal/dal"
	"github.com/Billy-Davies-2/knockout-pool/internal/engine"
	"github.com/Billy-Davies-2/knockout-pool/internal/logger"
	"github.com/Billy-Davies-2/knockout-pool/internal/models"
	"github.com/Billy-Davies-2/knockout-pool/internal/pubsub"
)

// Scoring is the part of engine.Service exposed over gRPC
type Scoring interface {
	Standings(ctx context.Context, code string) (models.Standings, error)
	AllStandings(ctx context.Context) ([]models.Standings, error)
	Leaderboard(ctx context.Context, top int) ([]models.LeaderboardEntry, error)
	ParticipantBreakdown(ctx context.Context, id int) (*models.ParticipantBreakdown, error)
	Recompute(ctx context.Context) (*models.CycleReport, error)
}

// EventSource feeds StreamEvents
type EventSource interface {
	Subscribe() chan pubsub.Event
	Unsubscribe(chan pubsub.Event)
}

// Server implements poolscore.v1.ScoringService
type Server struct {
	svc    Scoring
	events EventSource
}

// NewServer creates a new gRPC server implementation
func NewServer(svc Scoring, events EventSource) *Server {
	return &Server{svc: svc, events: events}
}

// NewGRPCServer returns a grpc.Server with the scoring service registered
func NewGRPCServer(svc Scoring, events EventSource, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(logUnary)}, opts...)
	s := grpc.NewServer(opts...)
	RegisterScoringServer(s, NewServer(svc, events))
	return s
}

// GetStandings returns one table for {"code": "A"} or every table when code is empty
func (s *Server) GetStandings(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	code := stringField(req, "code")
	if code == "" {
		tables, err := s.svc.AllStandings(ctx)
		if err != nil {
			return nil, toStatus(err)
		}
		return toStruct(map[string]interface{}{"tables": tables})
	}

	table, err := s.svc.Standings(ctx, code)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(table)
}

// GetLeaderboard returns {"entries": [...]}, limited by {"top": n}
func (s *Server) GetLeaderboard(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	top, err := intField(req, "top")
	if err != nil {
		return nil, err
	}
	board, err := s.svc.Leaderboard(ctx, top)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(map[string]interface{}{"entries": board})
}

// GetParticipant returns the breakdown of {"id": n}
func (s *Server) GetParticipant(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := intField(req, "id")
	if err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, status.Error(codes.InvalidArgument, "id must be a positive integer")
	}
	breakdown, err := s.svc.ParticipantBreakdown(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(breakdown)
}

// Recompute runs a recomputation cycle and returns its report
func (s *Server) Recompute(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	logger.Info("gRPC: Recompute requested")
	report, err := s.svc.Recompute(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(report)
}

// StreamEvents streams pool events until the client goes away
func (s *Server) StreamEvents(_ *emptypb.Empty, stream grpc.ServerStream) error {
	ch := s.events.Subscribe()
	defer s.events.Unsubscribe(ch)

	logger.Debug("gRPC: Event stream opened")
	for {
		select {
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			msg, err := toStruct(event)
			if err != nil {
				logger.Warn("gRPC: Failed to encode event", "type", event.Type, "error", err)
				continue
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		case <-stream.Context().Done():
			logger.Debug("gRPC: Event stream closed")
			return nil
		}
	}
}

// toStruct converts a JSON-tagged value into a structpb.Struct
func toStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	return out, nil
}

// FromStruct decodes a response into a model value
func FromStruct(s *structpb.Struct, v interface{}) error {
	data, err := s.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func stringField(req *structpb.Struct, name string) string {
	if req == nil {
		return ""
	}
	return req.GetFields()[name].GetStringValue()
}

func intField(req *structpb.Struct, name string) (int, error) {
	if req == nil {
		return 0, nil
	}
	v, ok := req.GetFields()[name]
	if !ok {
		return 0, nil
	}
	n, isNum := v.GetKind().(*structpb.Value_NumberValue)
	if !isNum || n.NumberValue != float64(int(n.NumberValue)) {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", name)
	}
	return int(n.NumberValue), nil
}

// toStatus maps service errors onto gRPC codes
func toStatus(err error) error {
	switch {
	case errors.Is(err, engine.ErrNotFound), errors.Is(err, dal.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, engine.ErrValidation), errors.Is(err, dal.ErrPartialScore):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, dal.ErrConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	logger.Error("gRPC: Request failed", "error", err)
	return status.Error(codes.Internal, fmt.Sprintf("internal error: %v", err))
}

func logUnary(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	logger.Debug("gRPC call", "method", info.FullMethod, "code", status.Code(err).String(), "duration", time.Since(start))
	return resp, err
}
