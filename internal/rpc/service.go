// Package rpc exposes chain evaluation and chain storage over gRPC.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/signalsfoundry/rfcascade/core"
	"github.com/signalsfoundry/rfcascade/internal/chainfile"
	"github.com/signalsfoundry/rfcascade/internal/logging"
	"github.com/signalsfoundry/rfcascade/internal/report"
	"github.com/signalsfoundry/rfcascade/kb"
	"github.com/signalsfoundry/rfcascade/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Service implements CascadeServer on top of a ChainStore and an Evaluator.
//
// Requests and responses are Structs with these fields:
//
//	Evaluate      {document, format?, name?, metrics?}  -> evaluation
//	PutChain      {document, format?, name?, create?}   -> {name, revision}
//	GetChain      {name}                                -> {name, revision, document, format}
//	DeleteChain   {name}                                -> {}
//	ListChains    {}                                    -> {names}
//	EvaluateChain {name, metrics?}                      -> evaluation
//	ListMetrics   {direction?}                          -> {metrics}
//
// document is the text of a chain file in format (json, yaml or hcl;
// json when omitted). metrics is a list of metric names. An evaluation is
// the JSON form of report.Document.
type Service struct {
	store *kb.ChainStore
	eval  *core.Evaluator
	log   logging.Logger
}

// NewService wires a Service to store and eval. A nil evaluator means the
// default one.
func NewService(store *kb.ChainStore, eval *core.Evaluator, log logging.Logger) *Service {
	if eval == nil {
		eval = core.NewEvaluator()
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Service{store: store, eval: eval, log: log}
}

func (s *Service) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	spec, err := chainFromRequest(req)
	if err != nil {
		return nil, ToStatusError(err)
	}
	metrics, err := metricsFromRequest(req)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return s.evaluate(ctx, spec, metrics)
}

func (s *Service) PutChain(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	spec, err := chainFromRequest(req)
	if err != nil {
		return nil, ToStatusError(err)
	}
	var rev uint64
	if boolField(req, "create") {
		rev, err = s.store.Create(spec)
	} else {
		rev, err = s.store.Put(spec)
	}
	if err != nil {
		return nil, ToStatusError(err)
	}
	logging.FromContext(ctx, s.log).Info(ctx, "chain stored",
		logging.Chain(spec.Name),
		logging.Int("revision", int(rev)),
		logging.Int("stages", len(spec.Stages)),
	)
	return structpb.NewStruct(map[string]interface{}{
		"name":     spec.Name,
		"revision": float64(rev),
	})
}

func (s *Service) GetChain(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	name, err := requiredString(req, "name")
	if err != nil {
		return nil, ToStatusError(err)
	}
	spec, rev, err := s.store.Get(name)
	if err != nil {
		return nil, ToStatusError(err)
	}
	doc, err := chainfile.Marshal(spec, chainfile.FormatJSON)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return structpb.NewStruct(map[string]interface{}{
		"name":     spec.Name,
		"revision": float64(rev),
		"document": string(doc),
		"format":   string(chainfile.FormatJSON),
	})
}

func (s *Service) DeleteChain(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	name, err := requiredString(req, "name")
	if err != nil {
		return nil, ToStatusError(err)
	}
	if err := s.store.Delete(name); err != nil {
		return nil, ToStatusError(err)
	}
	logging.FromContext(ctx, s.log).Info(ctx, "chain deleted", logging.Chain(name))
	return &structpb.Struct{}, nil
}

func (s *Service) ListChains(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	names := s.store.List()
	list := make([]interface{}, len(names))
	for i, n := range names {
		list[i] = n
	}
	return structpb.NewStruct(map[string]interface{}{"names": list})
}

func (s *Service) EvaluateChain(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	name, err := requiredString(req, "name")
	if err != nil {
		return nil, ToStatusError(err)
	}
	metrics, err := metricsFromRequest(req)
	if err != nil {
		return nil, ToStatusError(err)
	}
	spec, _, err := s.store.Get(name)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return s.evaluate(ctx, spec, metrics)
}

func (s *Service) ListMetrics(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	dir, err := model.ParseDirection(stringField(req, "direction"))
	if err != nil {
		return nil, ToStatusError(fmt.Errorf("%w: %v", ErrInvalidRequest, err))
	}
	defs := s.eval.Registry().Catalog(dir)
	list := make([]interface{}, 0, len(defs))
	for _, d := range defs {
		list = append(list, map[string]interface{}{
			"key":         d.Key.String(),
			"title":       d.Title,
			"unit":        report.UnitLabel(d.Unit, report.PowerDBm),
			"phase":       d.Phase.String(),
			"default":     d.Default,
			"description": d.Description,
		})
	}
	return structpb.NewStruct(map[string]interface{}{"metrics": list})
}

func (s *Service) evaluate(ctx context.Context, spec model.ChainSpec, metrics []core.Metric) (*structpb.Struct, error) {
	ctx, span := startEvaluationSpan(ctx, spec)
	defer span.End()

	res, err := s.eval.EvaluateSpec(ctx, spec)
	if err != nil {
		span.RecordError(err)
		return nil, ToStatusError(err)
	}
	doc, err := report.NewDocument(res, metrics)
	if err != nil {
		return nil, ToStatusError(err)
	}
	out, err := toStruct(doc)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	logging.FromContext(ctx, s.log).Debug(ctx, "chain evaluated",
		logging.Chain(spec.Name),
		logging.String("evaluation_id", res.ID),
		logging.Int("warnings", len(res.Warnings)),
		logging.Int("lookup_errors", len(res.Errors)),
	)
	return out, nil
}

func (s *Service) ensureReady() error {
	if s == nil || s.store == nil {
		return status.Error(codes.FailedPrecondition, "chain store is not configured")
	}
	return nil
}

// chainFromRequest parses the document field. A name field overrides the
// document's own name.
func chainFromRequest(req *structpb.Struct) (model.ChainSpec, error) {
	text, err := requiredString(req, "document")
	if err != nil {
		return model.ChainSpec{}, err
	}
	format := chainfile.FormatJSON
	if f := stringField(req, "format"); f != "" {
		if format, err = chainfile.ParseFormat(f); err != nil {
			return model.ChainSpec{}, err
		}
	}
	spec, err := chainfile.Parse([]byte(text), format)
	if err != nil {
		return model.ChainSpec{}, err
	}
	if name := stringField(req, "name"); name != "" {
		spec.Name = name
	}
	return spec, nil
}

func metricsFromRequest(req *structpb.Struct) ([]core.Metric, error) {
	v := field(req, "metrics")
	if v == nil {
		return nil, nil
	}
	if list := v.GetListValue(); list != nil {
		names := make([]string, 0, len(list.GetValues()))
		for _, item := range list.GetValues() {
			names = append(names, item.GetStringValue())
		}
		return report.ParseMetrics(strings.Join(names, ","))
	}
	return report.ParseMetrics(v.GetStringValue())
}

func field(req *structpb.Struct, key string) *structpb.Value {
	if req == nil {
		return nil
	}
	return req.GetFields()[key]
}

func stringField(req *structpb.Struct, key string) string {
	return strings.TrimSpace(field(req, key).GetStringValue())
}

func boolField(req *structpb.Struct, key string) bool {
	return field(req, key).GetBoolValue()
}

func requiredString(req *structpb.Struct, key string) (string, error) {
	v := stringField(req, key)
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidRequest, key)
	}
	return v, nil
}

// toStruct converts v through its JSON form.
func toStruct(v interface{}) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}
