package marketrpc

import (
	"context"
	"encoding/json"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/claimvault/commit"
	"xdao.co/claimvault/ledger"
	"xdao.co/claimvault/market"
	"xdao.co/claimvault/registry"
)

// Server exposes a registry and marketplace over the Market gRPC service.
//
// The server is a thin codec shell: it decodes wire messages, hands them to
// the domain layer and maps structured errors onto grpc statuses. All policy
// lives in the registry and marketplace.
type Server struct {
	Registry *registry.Registry
	Market   *market.Marketplace
	Funds    ledger.Funds
	Chain    ledger.HeightSource

	// Faucet allows Deposit to mint balance out of thin air. Meant for
	// development and demo deployments only.
	Faucet bool
}

func decodeReq(in *wrapperspb.BytesValue, v interface{}) error {
	if err := json.Unmarshal(in.GetValue(), v); err != nil {
		return status.Error(codes.InvalidArgument, "malformed request payload")
	}
	return nil
}

func encodeResp(v interface{}) (*wrapperspb.BytesValue, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "response encoding failed")
	}
	return wrapperspb.Bytes(b), nil
}

func parseHash(op, s string) (cid.Cid, error) {
	id, err := commit.Parse(s)
	if err != nil {
		return cid.Undef, statusErr(ledger.NewError(ledger.CodeInvalidCommitment, op, "malformed commitment hash"))
	}
	return id, nil
}

func (s *Server) Register(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	var req RegisterRequest
	if err := decodeReq(in, &req); err != nil {
		return nil, err
	}
	hash, err := parseHash("rpc.Register", req.Hash)
	if err != nil {
		return nil, err
	}
	if err := s.Registry.Register(hash, req.Issuer, req.Balance, req.SealedSecret); err != nil {
		return nil, statusErr(err)
	}
	return encodeResp(RegisterResponse{})
}

func (s *Server) Disclose(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	var req DiscloseRequest
	if err := decodeReq(in, &req); err != nil {
		return nil, err
	}
	hash, err := parseHash("rpc.Disclose", req.Hash)
	if err != nil {
		return nil, err
	}
	sealed, err := s.Registry.Disclose(hash, req.Caller)
	if err != nil {
		return nil, statusErr(err)
	}
	return encodeResp(DiscloseResponse{SealedSecret: sealed})
}

func (s *Server) GetCard(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	var req GetCardRequest
	if err := decodeReq(in, &req); err != nil {
		return nil, err
	}
	hash, err := parseHash("rpc.GetCard", req.Hash)
	if err != nil {
		return nil, err
	}
	info, err := s.Registry.Query(hash)
	if err != nil {
		return nil, statusErr(err)
	}
	return encodeResp(GetCardResponse{
		Registered:     info.Registered,
		Disclosed:      info.Disclosed,
		Balance:        info.RedeemableBalance,
		OriginalIssuer: info.OriginalIssuer,
		Holder:         s.Registry.Holder(hash),
	})
}

func (s *Server) ListCard(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	var req ListCardRequest
	if err := decodeReq(in, &req); err != nil {
		return nil, err
	}
	hash, err := parseHash("rpc.ListCard", req.Hash)
	if err != nil {
		return nil, err
	}
	ev, err := s.Market.ListCard(req.Seller, hash, req.Price, req.Balance, req.Stake)
	if err != nil {
		return nil, statusErr(err)
	}
	return encodeResp(ListCardResponse{Seller: ev.Seller, Price: ev.Price})
}

func (s *Server) UpdatePrice(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	var req UpdatePriceRequest
	if err := decodeReq(in, &req); err != nil {
		return nil, err
	}
	hash, err := parseHash("rpc.UpdatePrice", req.Hash)
	if err != nil {
		return nil, err
	}
	ev, err := s.Market.UpdatePrice(req.Seller, hash, req.NewPrice, req.AdditionalStake)
	if err != nil {
		return nil, statusErr(err)
	}
	return encodeResp(UpdatePriceResponse{Seller: ev.Seller, NewPrice: ev.NewPrice})
}

func (s *Server) SendBuyRequest(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	var req BuyRequest
	if err := decodeReq(in, &req); err != nil {
		return nil, err
	}
	hash, err := parseHash("rpc.SendBuyRequest", req.Hash)
	if err != nil {
		return nil, err
	}
	ev, err := s.Market.SendBuyRequest(req.Buyer, hash)
	if err != nil {
		return nil, statusErr(err)
	}
	return encodeResp(BuyResponse{Buyer: ev.Buyer, Hash: ev.Hash.String()})
}

func (s *Server) AcceptBuyRequest(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	var req AcceptRequest
	if err := decodeReq(in, &req); err != nil {
		return nil, err
	}
	hash, err := parseHash("rpc.AcceptBuyRequest", req.Hash)
	if err != nil {
		return nil, err
	}
	ev, err := s.Market.AcceptBuyRequest(req.Seller, req.ResealedSecret, hash)
	if err != nil {
		return nil, statusErr(err)
	}
	return encodeResp(AcceptResponse{Seller: ev.Seller, Buyer: ev.Buyer, Price: ev.Price})
}

func (s *Server) RemoveCard(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	var req RemoveRequest
	if err := decodeReq(in, &req); err != nil {
		return nil, err
	}
	hash, err := parseHash("rpc.RemoveCard", req.Hash)
	if err != nil {
		return nil, err
	}
	ev, err := s.Market.RemoveCard(req.Seller, hash)
	if err != nil {
		return nil, statusErr(err)
	}
	return encodeResp(RemoveResponse{Seller: ev.Seller})
}

func (s *Server) VerifyCard(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	var req VerifyRequest
	if err := decodeReq(in, &req); err != nil {
		return nil, err
	}
	hash, err := parseHash("rpc.VerifyCard", req.Hash)
	if err != nil {
		return nil, err
	}
	ev, err := s.Market.VerifyCard(req.Caller, req.Accepted, hash, req.BalanceDifference)
	if err != nil {
		return nil, statusErr(err)
	}
	return encodeResp(VerifyResponse{
		Seller:         ev.Seller,
		Buyer:          ev.Buyer,
		EffectivePrice: ev.EffectivePrice,
		Accepted:       ev.Accepted,
	})
}

func (s *Server) GetListing(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	var req GetListingRequest
	if err := decodeReq(in, &req); err != nil {
		return nil, err
	}
	hash, err := parseHash("rpc.GetListing", req.Hash)
	if err != nil {
		return nil, err
	}
	l, err := s.Market.GetListing(hash)
	if err != nil {
		return nil, statusErr(err)
	}
	return encodeResp(GetListingResponse{
		Seller:          l.Seller,
		Price:           l.Price,
		Stake:           l.Stake,
		FaceValue:       l.FaceValue,
		PendingBuyer:    l.PendingBuyer,
		Buyer:           l.Buyer,
		AcceptedAtBlock: l.AcceptedAtBlock,
	})
}

func (s *Server) Deposit(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	var req DepositRequest
	if err := decodeReq(in, &req); err != nil {
		return nil, err
	}
	if !s.Faucet {
		return nil, statusErr(ledger.NewError(ledger.CodeUnauthorized, "rpc.Deposit", "faucet disabled"))
	}
	if err := s.Funds.Credit(req.Account, req.Amount); err != nil {
		return nil, statusErr(err)
	}
	return encodeResp(DepositResponse{Balance: s.Funds.BalanceOf(req.Account)})
}

func (s *Server) Balance(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	var req BalanceRequest
	if err := decodeReq(in, &req); err != nil {
		return nil, err
	}
	return encodeResp(BalanceResponse{Balance: s.Funds.BalanceOf(req.Account)})
}

func (s *Server) Height(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	var req HeightRequest
	if err := decodeReq(in, &req); err != nil {
		return nil, err
	}
	return encodeResp(HeightResponse{Height: s.Chain.Height()})
}
