package marketrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client is the typed client for the Market gRPC service. Its methods mirror
// the registry and marketplace APIs; structured ledger errors raised on the
// server come back intact, so ledger.IsCode works across the wire.
type Client struct {
	cc grpc.ClientConnInterface

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

// Dial connects to a Market daemon over an insecure transport.
func Dial(target string, opts DialOptions) (*Client, func() error, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, nil, err
	}
	return &Client{cc: cc}, cc.Close, nil
}

// NewClient wraps an existing connection, e.g. a bufconn in tests.
func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func (c *Client) invoke(ctx context.Context, method string, req, resp interface{}) error {
	b, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marketrpc: encode %s request: %w", method, err)
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/"+method, wrapperspb.Bytes(b), out); err != nil {
		return mapRPC(err)
	}
	if err := json.Unmarshal(out.GetValue(), resp); err != nil {
		return fmt.Errorf("marketrpc: decode %s response: %w", method, err)
	}
	return nil
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	var resp RegisterResponse
	return c.invoke(ctx, "Register", req, &resp)
}

func (c *Client) Disclose(ctx context.Context, req DiscloseRequest) (DiscloseResponse, error) {
	var resp DiscloseResponse
	err := c.invoke(ctx, "Disclose", req, &resp)
	return resp, err
}

func (c *Client) GetCard(ctx context.Context, req GetCardRequest) (GetCardResponse, error) {
	var resp GetCardResponse
	err := c.invoke(ctx, "GetCard", req, &resp)
	return resp, err
}

func (c *Client) ListCard(ctx context.Context, req ListCardRequest) (ListCardResponse, error) {
	var resp ListCardResponse
	err := c.invoke(ctx, "ListCard", req, &resp)
	return resp, err
}

func (c *Client) UpdatePrice(ctx context.Context, req UpdatePriceRequest) (UpdatePriceResponse, error) {
	var resp UpdatePriceResponse
	err := c.invoke(ctx, "UpdatePrice", req, &resp)
	return resp, err
}

func (c *Client) SendBuyRequest(ctx context.Context, req BuyRequest) (BuyResponse, error) {
	var resp BuyResponse
	err := c.invoke(ctx, "SendBuyRequest", req, &resp)
	return resp, err
}

func (c *Client) AcceptBuyRequest(ctx context.Context, req AcceptRequest) (AcceptResponse, error) {
	var resp AcceptResponse
	err := c.invoke(ctx, "AcceptBuyRequest", req, &resp)
	return resp, err
}

func (c *Client) RemoveCard(ctx context.Context, req RemoveRequest) (RemoveResponse, error) {
	var resp RemoveResponse
	err := c.invoke(ctx, "RemoveCard", req, &resp)
	return resp, err
}

func (c *Client) VerifyCard(ctx context.Context, req VerifyRequest) (VerifyResponse, error) {
	var resp VerifyResponse
	err := c.invoke(ctx, "VerifyCard", req, &resp)
	return resp, err
}

func (c *Client) GetListing(ctx context.Context, req GetListingRequest) (GetListingResponse, error) {
	var resp GetListingResponse
	err := c.invoke(ctx, "GetListing", req, &resp)
	return resp, err
}

func (c *Client) Deposit(ctx context.Context, req DepositRequest) (DepositResponse, error) {
	var resp DepositResponse
	err := c.invoke(ctx, "Deposit", req, &resp)
	return resp, err
}

func (c *Client) Balance(ctx context.Context, req BalanceRequest) (BalanceResponse, error) {
	var resp BalanceResponse
	err := c.invoke(ctx, "Balance", req, &resp)
	return resp, err
}

func (c *Client) Height(ctx context.Context) (HeightResponse, error) {
	var resp HeightResponse
	err := c.invoke(ctx, "Height", HeightRequest{}, &resp)
	return resp, err
}
