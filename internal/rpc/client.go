package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/signalsfoundry/rfcascade/internal/chainfile"
	"github.com/signalsfoundry/rfcascade/internal/report"
	"github.com/signalsfoundry/rfcascade/model"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is a typed client for CascadeService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// MetricInfo describes one entry of ListMetrics.
type MetricInfo struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Unit        string `json:"unit"`
	Phase       string `json:"phase"`
	Default     bool   `json:"default"`
	Description string `json:"description"`
}

func (c *Client) call(ctx context.Context, method string, in map[string]interface{}, opts ...grpc.CallOption) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Evaluate sends spec for a one-off evaluation.
func (c *Client) Evaluate(ctx context.Context, spec model.ChainSpec, metrics []string, opts ...grpc.CallOption) (*report.Document, error) {
	in, err := chainRequest(spec)
	if err != nil {
		return nil, err
	}
	if len(metrics) > 0 {
		in["metrics"] = stringList(metrics)
	}
	out, err := c.call(ctx, MethodEvaluate, in, opts...)
	if err != nil {
		return nil, err
	}
	return decodeDocument(out)
}

// PutChain stores spec, failing with AlreadyExists when create is set and
// the name is taken. It returns the new revision.
func (c *Client) PutChain(ctx context.Context, spec model.ChainSpec, create bool, opts ...grpc.CallOption) (uint64, error) {
	in, err := chainRequest(spec)
	if err != nil {
		return 0, err
	}
	in["create"] = create
	out, err := c.call(ctx, MethodPutChain, in, opts...)
	if err != nil {
		return 0, err
	}
	return uint64(out.GetFields()["revision"].GetNumberValue()), nil
}

// GetChain fetches a stored chain and its revision.
func (c *Client) GetChain(ctx context.Context, name string, opts ...grpc.CallOption) (model.ChainSpec, uint64, error) {
	out, err := c.call(ctx, MethodGetChain, map[string]interface{}{"name": name}, opts...)
	if err != nil {
		return model.ChainSpec{}, 0, err
	}
	format, err := chainfile.ParseFormat(stringField(out, "format"))
	if err != nil {
		return model.ChainSpec{}, 0, err
	}
	spec, err := chainfile.Parse([]byte(stringField(out, "document")), format)
	if err != nil {
		return model.ChainSpec{}, 0, err
	}
	return spec, uint64(out.GetFields()["revision"].GetNumberValue()), nil
}

// DeleteChain removes a stored chain.
func (c *Client) DeleteChain(ctx context.Context, name string, opts ...grpc.CallOption) error {
	_, err := c.call(ctx, MethodDeleteChain, map[string]interface{}{"name": name}, opts...)
	return err
}

// ListChains returns the stored chain names in order.
func (c *Client) ListChains(ctx context.Context, opts ...grpc.CallOption) ([]string, error) {
	out, err := c.call(ctx, MethodListChains, map[string]interface{}{}, opts...)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, v := range out.GetFields()["names"].GetListValue().GetValues() {
		names = append(names, v.GetStringValue())
	}
	return names, nil
}

// EvaluateChain evaluates a stored chain.
func (c *Client) EvaluateChain(ctx context.Context, name string, metrics []string, opts ...grpc.CallOption) (*report.Document, error) {
	in := map[string]interface{}{"name": name}
	if len(metrics) > 0 {
		in["metrics"] = stringList(metrics)
	}
	out, err := c.call(ctx, MethodEvaluateChain, in, opts...)
	if err != nil {
		return nil, err
	}
	return decodeDocument(out)
}

// ListMetrics returns the metric catalog for dir.
func (c *Client) ListMetrics(ctx context.Context, dir model.Direction, opts ...grpc.CallOption) ([]MetricInfo, error) {
	out, err := c.call(ctx, MethodListMetrics, map[string]interface{}{"direction": string(dir)}, opts...)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Metrics []MetricInfo `json:"metrics"`
	}
	if err := fromStruct(out, &resp); err != nil {
		return nil, err
	}
	return resp.Metrics, nil
}

func chainRequest(spec model.ChainSpec) (map[string]interface{}, error) {
	doc, err := chainfile.Marshal(spec, chainfile.FormatJSON)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"document": string(doc),
		"format":   string(chainfile.FormatJSON),
	}, nil
}

func stringList(items []string) []interface{} {
	out := make([]interface{}, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}

func decodeDocument(s *structpb.Struct) (*report.Document, error) {
	var doc report.Document
	if err := fromStruct(s, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func fromStruct(s *structpb.Struct, v interface{}) error {
	b, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
