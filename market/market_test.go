package market_test

import (
	"testing"

	"github.com/ipfs/go-cid"

	"xdao.co/claimvault/commit"
	"xdao.co/claimvault/ledger"
	"xdao.co/claimvault/market"
	"xdao.co/claimvault/registry"
	"xdao.co/claimvault/state"
)

const (
	seller   = ledger.Identity("alice")
	buyer    = ledger.Identity("bob")
	rival    = ledger.Identity("carol")
	stranger = ledger.Identity("mallory")

	cardBalance = int64(25)
	askingPrice = int64(25)
	minStake    = int64(9) // ceil(25/3)
)

var (
	sealedForSeller = []byte("sealed-for-alice")
	sealedForBuyer  = []byte("sealed-for-bob")
)

type fixture struct {
	t     *testing.T
	reg   *registry.Registry
	mkt   *market.Marketplace
	book  *ledger.MemoryBook
	chain *ledger.Counter
	hash  cid.Cid
	total int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		reg:   registry.New(state.Memory()),
		book:  ledger.NewMemoryBook(),
		chain: ledger.NewCounter(100),
		hash:  commit.MustOf([]byte("XRYZ-34SD2S-2KSS")),
	}
	mkt, err := market.New(market.Config{
		Store:    state.Memory(),
		Registry: f.reg,
		Funds:    f.book,
		Chain:    f.chain,
	})
	if err != nil {
		t.Fatalf("market.New: %v", err)
	}
	f.mkt = mkt

	for _, id := range []ledger.Identity{seller, buyer, rival} {
		if err := f.book.Credit(id, 100); err != nil {
			t.Fatalf("Credit(%s): %v", id, err)
		}
	}
	f.total = f.book.Total()

	if err := f.reg.Register(f.hash, seller, cardBalance, sealedForSeller); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return f
}

func (f *fixture) list() {
	f.t.Helper()
	if _, err := f.mkt.ListCard(seller, f.hash, askingPrice, cardBalance, minStake); err != nil {
		f.t.Fatalf("ListCard: %v", err)
	}
}

func (f *fixture) requestAndAccept(b ledger.Identity) {
	f.t.Helper()
	if _, err := f.mkt.SendBuyRequest(b, f.hash); err != nil {
		f.t.Fatalf("SendBuyRequest: %v", err)
	}
	if _, err := f.mkt.AcceptBuyRequest(seller, sealedForBuyer, f.hash); err != nil {
		f.t.Fatalf("AcceptBuyRequest: %v", err)
	}
}

func (f *fixture) disclose(b ledger.Identity) {
	f.t.Helper()
	if _, err := f.reg.Disclose(f.hash, b); err != nil {
		f.t.Fatalf("Disclose: %v", err)
	}
}

func (f *fixture) assertConserved() {
	f.t.Helper()
	if got := f.book.Total(); got != f.total {
		f.t.Fatalf("funds not conserved: total %d, started at %d", got, f.total)
	}
}

func TestListCard_PriceAboveBalance(t *testing.T) {
	f := newFixture(t)
	_, err := f.mkt.ListCard(seller, f.hash, cardBalance+10, cardBalance, 20)
	if !ledger.IsCode(err, ledger.CodeInvalidPrice) {
		t.Fatalf("got %v, want InvalidPrice", err)
	}
}

func TestListCard_StakeBoundary(t *testing.T) {
	f := newFixture(t)
	_, err := f.mkt.ListCard(seller, f.hash, askingPrice, cardBalance, minStake-1)
	if !ledger.IsCode(err, ledger.CodeInsufficientStake) {
		t.Fatalf("stake %d: got %v, want InsufficientStake", minStake-1, err)
	}
	if got := ledger.AmountOf(err); got != 1 {
		t.Fatalf("stake shortfall = %d, want 1", got)
	}

	// Exactly ceil(price/3) succeeds.
	ev, err := f.mkt.ListCard(seller, f.hash, askingPrice, cardBalance, minStake)
	if err != nil {
		t.Fatalf("ListCard at boundary: %v", err)
	}
	if ev.Seller != seller || ev.Price != askingPrice {
		t.Fatalf("Listed event = %+v", ev)
	}
	if got := f.book.BalanceOf(seller); got != 100-minStake {
		t.Fatalf("seller balance = %d, want %d", got, 100-minStake)
	}
	if got := f.book.BalanceOf(f.mkt.EscrowAccount()); got != minStake {
		t.Fatalf("escrow balance = %d, want %d", got, minStake)
	}
	f.assertConserved()
}

func TestListCard_ThirdPartyMint(t *testing.T) {
	f := newFixture(t)
	// The card exists but belongs to someone else.
	_, err := f.mkt.ListCard(stranger, f.hash, askingPrice, cardBalance, minStake)
	if !ledger.IsCode(err, ledger.CodeAlreadyMinted) {
		t.Fatalf("got %v, want AlreadyMinted", err)
	}
}

func TestListCard_DisclosedCodeCannotBeResold(t *testing.T) {
	f := newFixture(t)
	// bob buys the card outside the marketplace and pulls the secret; it is
	// now circulating and bob cannot list it.
	if err := f.reg.TransferCustody(f.hash, seller, buyer, sealedForBuyer); err != nil {
		t.Fatalf("TransferCustody: %v", err)
	}
	f.disclose(buyer)

	_, err := f.mkt.ListCard(buyer, f.hash, askingPrice, cardBalance, minStake)
	if !ledger.IsCode(err, ledger.CodeAlreadyApplied) {
		t.Fatalf("got %v, want AlreadyApplied", err)
	}
}

func TestListCard_UndisclosedResaleByNewHolderIsAllowed(t *testing.T) {
	f := newFixture(t)
	if err := f.reg.TransferCustody(f.hash, seller, buyer, sealedForBuyer); err != nil {
		t.Fatalf("TransferCustody: %v", err)
	}
	// bob never pulled the secret, so the code is still sealed and salable.
	if _, err := f.mkt.ListCard(buyer, f.hash, askingPrice, cardBalance, minStake); err != nil {
		t.Fatalf("ListCard by undisclosed holder: %v", err)
	}
}

func TestListCard_UnregisteredHashUsesDeclaredBalance(t *testing.T) {
	f := newFixture(t)
	fresh := commit.MustOf([]byte("not-yet-registered"))
	if _, err := f.mkt.ListCard(seller, fresh, 30, 30, 10); err != nil {
		t.Fatalf("ListCard unregistered: %v", err)
	}
	_, err := f.mkt.ListCard(seller, commit.MustOf([]byte("another")), 31, 30, 11)
	if !ledger.IsCode(err, ledger.CodeInvalidPrice) {
		t.Fatalf("price above declared balance: got %v, want InvalidPrice", err)
	}
}

func TestListCard_AlreadyListed(t *testing.T) {
	f := newFixture(t)
	f.list()
	_, err := f.mkt.ListCard(seller, f.hash, askingPrice, cardBalance, minStake)
	if !ledger.IsCode(err, ledger.CodeAlreadyListed) {
		t.Fatalf("got %v, want AlreadyListed", err)
	}
}

func TestListCard_SellerCannotFundStake(t *testing.T) {
	f := newFixture(t)
	broke := ledger.Identity("broke")
	if err := f.reg.Register(commit.MustOf([]byte("broke-card")), broke, 25, sealedForSeller); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := f.mkt.ListCard(broke, commit.MustOf([]byte("broke-card")), 25, 25, 9)
	if !ledger.IsCode(err, ledger.CodeInsufficientFunds) {
		t.Fatalf("got %v, want InsufficientFunds", err)
	}
	f.assertConserved()
}

func TestUpdatePrice(t *testing.T) {
	f := newFixture(t)
	f.list()

	_, err := f.mkt.UpdatePrice(stranger, f.hash, 20, 0)
	if !ledger.IsCode(err, ledger.CodeNotSeller) {
		t.Fatalf("stranger update: got %v, want NotSeller", err)
	}

	_, err = f.mkt.UpdatePrice(seller, f.hash, cardBalance+1, 10)
	if !ledger.IsCode(err, ledger.CodeInvalidPrice) {
		t.Fatalf("over-balance update: got %v, want InvalidPrice", err)
	}

	// Dropping the price needs no extra stake.
	ev, err := f.mkt.UpdatePrice(seller, f.hash, 12, 0)
	if err != nil {
		t.Fatalf("UpdatePrice down: %v", err)
	}
	if ev.NewPrice != 12 {
		t.Fatalf("PriceUpdate event = %+v", ev)
	}
}

func TestUpdatePrice_ShortfallReported(t *testing.T) {
	f := newFixture(t)
	fresh := commit.MustOf([]byte("cheap-card"))
	if err := f.reg.Register(fresh, seller, 60, sealedForSeller); err != nil {
		t.Fatalf("Register: %v", err)
	}
	// Listed cheap: price 9, stake 3.
	if _, err := f.mkt.ListCard(seller, fresh, 9, 60, 3); err != nil {
		t.Fatalf("ListCard: %v", err)
	}

	// Raising to 60 requires ceil(60/3)=20; 3 held + 10 offered leaves 7 short.
	_, err := f.mkt.UpdatePrice(seller, fresh, 60, 10)
	if !ledger.IsCode(err, ledger.CodeInsufficientStake) {
		t.Fatalf("got %v, want InsufficientStake", err)
	}
	if got := ledger.AmountOf(err); got != 7 {
		t.Fatalf("reported shortfall = %d, want 7", got)
	}

	// Meeting the requirement escrows the top-up.
	if _, err := f.mkt.UpdatePrice(seller, fresh, 60, 17); err != nil {
		t.Fatalf("UpdatePrice with full top-up: %v", err)
	}
	listing, err := f.mkt.GetListing(fresh)
	if err != nil {
		t.Fatalf("GetListing: %v", err)
	}
	if listing.Price != 60 || listing.Stake != 20 || listing.Escrowed != 20 {
		t.Fatalf("listing after update = %+v", listing)
	}
	f.assertConserved()
}

func TestSendBuyRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.mkt.SendBuyRequest(buyer, f.hash)
	if !ledger.IsCode(err, ledger.CodeNotFound) {
		t.Fatalf("request on unlisted: got %v, want NotFound", err)
	}

	f.list()
	_, err = f.mkt.SendBuyRequest(seller, f.hash)
	if !ledger.IsCode(err, ledger.CodeSelfTrade) {
		t.Fatalf("self trade: got %v, want SelfTrade", err)
	}

	ev, err := f.mkt.SendBuyRequest(buyer, f.hash)
	if err != nil {
		t.Fatalf("SendBuyRequest: %v", err)
	}
	if ev.Buyer != buyer || ev.Hash != f.hash {
		t.Fatalf("BuyRequest event = %+v", ev)
	}
	// An intent signal moves no funds.
	if got := f.book.BalanceOf(buyer); got != 100 {
		t.Fatalf("buyer balance after request = %d, want 100", got)
	}
}

func TestSendBuyRequest_LaterRequestOverwrites(t *testing.T) {
	f := newFixture(t)
	f.list()
	if _, err := f.mkt.SendBuyRequest(buyer, f.hash); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if _, err := f.mkt.SendBuyRequest(rival, f.hash); err != nil {
		t.Fatalf("second request: %v", err)
	}

	sale, err := f.mkt.AcceptBuyRequest(seller, sealedForBuyer, f.hash)
	if err != nil {
		t.Fatalf("AcceptBuyRequest: %v", err)
	}
	if sale.Buyer != rival {
		t.Fatalf("accepted buyer = %s, want the later requester %s", sale.Buyer, rival)
	}
}

func TestAcceptBuyRequest(t *testing.T) {
	f := newFixture(t)
	f.list()

	_, err := f.mkt.AcceptBuyRequest(seller, sealedForBuyer, f.hash)
	if !ledger.IsCode(err, ledger.CodeNoPendingRequest) {
		t.Fatalf("accept without request: got %v, want NoPendingRequest", err)
	}

	if _, err := f.mkt.SendBuyRequest(buyer, f.hash); err != nil {
		t.Fatalf("SendBuyRequest: %v", err)
	}
	_, err = f.mkt.AcceptBuyRequest(stranger, sealedForBuyer, f.hash)
	if !ledger.IsCode(err, ledger.CodeNotSeller) {
		t.Fatalf("accept by stranger: got %v, want NotSeller", err)
	}

	sale, err := f.mkt.AcceptBuyRequest(seller, sealedForBuyer, f.hash)
	if err != nil {
		t.Fatalf("AcceptBuyRequest: %v", err)
	}
	if sale.Seller != seller || sale.Buyer != buyer || sale.Price != askingPrice {
		t.Fatalf("Sale event = %+v", sale)
	}

	// Escrow holds stake + price; custody of the sealed secret moved.
	listing, err := f.mkt.GetListing(f.hash)
	if err != nil {
		t.Fatalf("GetListing: %v", err)
	}
	if listing.Escrowed != minStake+askingPrice {
		t.Fatalf("escrowed = %d, want %d", listing.Escrowed, minStake+askingPrice)
	}
	if listing.AcceptedAtBlock != f.chain.Height() {
		t.Fatalf("acceptedAtBlock = %d, want %d", listing.AcceptedAtBlock, f.chain.Height())
	}
	if got := f.book.BalanceOf(buyer); got != 100-askingPrice {
		t.Fatalf("buyer balance = %d, want %d", got, 100-askingPrice)
	}
	if got := f.reg.Holder(f.hash); got != buyer {
		t.Fatalf("holder after accept = %s, want %s", got, buyer)
	}
	f.assertConserved()
}

func TestAcceptBuyRequest_BuyerCannotPay(t *testing.T) {
	f := newFixture(t)
	f.list()
	broke := ledger.Identity("broke")
	if _, err := f.mkt.SendBuyRequest(broke, f.hash); err != nil {
		t.Fatalf("SendBuyRequest: %v", err)
	}

	_, err := f.mkt.AcceptBuyRequest(seller, sealedForBuyer, f.hash)
	if !ledger.IsCode(err, ledger.CodeInsufficientFunds) {
		t.Fatalf("got %v, want InsufficientFunds", err)
	}

	// The failed accept must leave everything untouched: request pending,
	// escrow at stake only, custody with the seller.
	listing, err := f.mkt.GetListing(f.hash)
	if err != nil {
		t.Fatalf("GetListing: %v", err)
	}
	if listing.Accepted() || listing.PendingBuyer != broke || listing.Escrowed != minStake {
		t.Fatalf("listing mutated by failed accept: %+v", listing)
	}
	if got := f.reg.Holder(f.hash); got != seller {
		t.Fatalf("custody moved on failed accept: holder = %s", got)
	}
	f.assertConserved()
}

func TestAcceptBuyRequest_UnregisteredHash(t *testing.T) {
	f := newFixture(t)
	fresh := commit.MustOf([]byte("phantom"))
	if _, err := f.mkt.ListCard(seller, fresh, 9, 9, 3); err != nil {
		t.Fatalf("ListCard: %v", err)
	}
	if _, err := f.mkt.SendBuyRequest(buyer, fresh); err != nil {
		t.Fatalf("SendBuyRequest: %v", err)
	}
	_, err := f.mkt.AcceptBuyRequest(seller, sealedForBuyer, fresh)
	if !ledger.IsCode(err, ledger.CodeNotFound) {
		t.Fatalf("accept with nothing to hand over: got %v, want NotFound", err)
	}
}

func TestRemoveCard(t *testing.T) {
	f := newFixture(t)
	f.list()

	_, err := f.mkt.RemoveCard(stranger, f.hash)
	if !ledger.IsCode(err, ledger.CodeNotSeller) {
		t.Fatalf("remove by stranger: got %v, want NotSeller", err)
	}

	ev, err := f.mkt.RemoveCard(seller, f.hash)
	if err != nil {
		t.Fatalf("RemoveCard: %v", err)
	}
	if ev.Seller != seller {
		t.Fatalf("Delist event = %+v", ev)
	}
	// Stake refunded in full.
	if got := f.book.BalanceOf(seller); got != 100 {
		t.Fatalf("seller balance after remove = %d, want 100", got)
	}
	f.assertConserved()

	// Deletion is authoritative: the second removal is a NotFound failure,
	// not a silent no-op.
	_, err = f.mkt.RemoveCard(seller, f.hash)
	if !ledger.IsCode(err, ledger.CodeNotFound) {
		t.Fatalf("second remove: got %v, want NotFound", err)
	}
}

func TestRemoveCard_RefusedAfterAccept(t *testing.T) {
	f := newFixture(t)
	f.list()
	f.requestAndAccept(buyer)

	_, err := f.mkt.RemoveCard(seller, f.hash)
	if !ledger.IsCode(err, ledger.CodeSaleInProgress) {
		t.Fatalf("remove after accept: got %v, want SaleInProgress", err)
	}
}

func TestVerifyCard_Guards(t *testing.T) {
	f := newFixture(t)
	f.list()
	f.requestAndAccept(buyer)

	// Settlement requires the secret to have been pulled.
	_, err := f.mkt.VerifyCard(buyer, true, f.hash, 0)
	if !ledger.IsCode(err, ledger.CodeNotApplied) {
		t.Fatalf("verify before disclosure: got %v, want NotApplied", err)
	}

	f.disclose(buyer)

	_, err = f.mkt.VerifyCard(stranger, true, f.hash, 0)
	if !ledger.IsCode(err, ledger.CodeUnauthorized) {
		t.Fatalf("verify by stranger: got %v, want Unauthorized", err)
	}

	_, err = f.mkt.VerifyCard(buyer, true, commit.MustOf([]byte("other")), 0)
	if !ledger.IsCode(err, ledger.CodeNotFound) {
		t.Fatalf("verify unlisted hash: got %v, want NotFound", err)
	}
}

func TestVerifyCard_SellerCooldown(t *testing.T) {
	f := newFixture(t)
	f.list()
	f.requestAndAccept(buyer)
	f.disclose(buyer)

	// No height has elapsed since acceptance.
	_, err := f.mkt.VerifyCard(seller, true, f.hash, 0)
	if !ledger.IsCode(err, ledger.CodeCooldownNotElapsed) {
		t.Fatalf("seller verify inside cooldown: got %v, want CooldownNotElapsed", err)
	}

	f.chain.Advance(market.DefaultDisputeCooldown)
	if _, err := f.mkt.VerifyCard(seller, true, f.hash, 0); err != nil {
		t.Fatalf("seller verify after cooldown: %v", err)
	}
	f.assertConserved()
}

func TestVerifyCard_CleanSettlement(t *testing.T) {
	f := newFixture(t)
	f.list()
	f.requestAndAccept(buyer)
	f.disclose(buyer)

	// The buyer may verify immediately.
	ev, err := f.mkt.VerifyCard(buyer, true, f.hash, 0)
	if err != nil {
		t.Fatalf("VerifyCard: %v", err)
	}
	want := market.Verified{Seller: seller, Buyer: buyer, EffectivePrice: askingPrice, Hash: f.hash, Accepted: true}
	if *ev != want {
		t.Fatalf("Verified event = %+v, want %+v", *ev, want)
	}

	// Seller nets +25, buyer nets -25, escrow retains nothing.
	if got := f.book.BalanceOf(seller); got != 125 {
		t.Fatalf("seller balance = %d, want 125", got)
	}
	if got := f.book.BalanceOf(buyer); got != 75 {
		t.Fatalf("buyer balance = %d, want 75", got)
	}
	if got := f.book.BalanceOf(f.mkt.EscrowAccount()); got != 0 {
		t.Fatalf("escrow residue = %d, want 0", got)
	}
	f.assertConserved()

	// Settlement removes the listing.
	if _, err := f.mkt.GetListing(f.hash); !ledger.IsCode(err, ledger.CodeNotFound) {
		t.Fatalf("GetListing after settle: got %v, want NotFound", err)
	}
}

func TestVerifyCard_PartialShortfall(t *testing.T) {
	f := newFixture(t)
	f.list()
	f.requestAndAccept(buyer)
	f.disclose(buyer)

	ev, err := f.mkt.VerifyCard(buyer, false, f.hash, 10)
	if err != nil {
		t.Fatalf("VerifyCard: %v", err)
	}
	if ev.EffectivePrice != 15 {
		t.Fatalf("effectivePrice = %d, want 15", ev.EffectivePrice)
	}

	// Seller nets -9 (stake fully consumed by the shortfall) +15; buyer gets
	// 10 of the 25 back; the slashed stake stays in escrow as forfeit.
	if got := f.book.BalanceOf(seller); got != 100-9+15 {
		t.Fatalf("seller balance = %d, want %d", got, 100-9+15)
	}
	if got := f.book.BalanceOf(buyer); got != 100-25+10 {
		t.Fatalf("buyer balance = %d, want %d", got, 100-25+10)
	}
	if got := f.book.BalanceOf(f.mkt.EscrowAccount()); got != 9 {
		t.Fatalf("forfeited stake = %d, want 9", got)
	}
	f.assertConserved()
}

func TestVerifyCard_ShortfallWithinStake(t *testing.T) {
	f := newFixture(t)
	f.list()
	f.requestAndAccept(buyer)
	f.disclose(buyer)

	ev, err := f.mkt.VerifyCard(buyer, false, f.hash, 4)
	if err != nil {
		t.Fatalf("VerifyCard: %v", err)
	}
	if ev.EffectivePrice != 21 {
		t.Fatalf("effectivePrice = %d, want 21", ev.EffectivePrice)
	}
	// Only the covering portion of the stake is slashed: seller keeps 9-4=5
	// of it plus the 21 effective price.
	if got := f.book.BalanceOf(seller); got != 100-9+21+5 {
		t.Fatalf("seller balance = %d, want %d", got, 100-9+21+5)
	}
	if got := f.book.BalanceOf(f.mkt.EscrowAccount()); got != 4 {
		t.Fatalf("forfeited stake = %d, want 4", got)
	}
	f.assertConserved()
}

func TestVerifyCard_ImpossibleBalance(t *testing.T) {
	f := newFixture(t)
	f.list()
	f.requestAndAccept(buyer)
	f.disclose(buyer)

	for _, diff := range []int64{askingPrice, askingPrice + 50} {
		_, err := f.mkt.VerifyCard(buyer, false, f.hash, diff)
		if !ledger.IsCode(err, ledger.CodeImpossibleBalance) {
			t.Fatalf("diff %d: got %v, want ImpossibleBalance", diff, err)
		}
	}

	// The failed settlements left the listing and escrow intact.
	listing, err := f.mkt.GetListing(f.hash)
	if err != nil {
		t.Fatalf("GetListing: %v", err)
	}
	if listing.Escrowed != minStake+askingPrice {
		t.Fatalf("escrowed after failed verify = %d", listing.Escrowed)
	}
	f.assertConserved()
}

func TestVerifyCard_SurplusReportsSignedEffectivePrice(t *testing.T) {
	f := newFixture(t)
	f.list()
	f.requestAndAccept(buyer)
	f.disclose(buyer)

	ev, err := f.mkt.VerifyCard(buyer, true, f.hash, -5)
	if err != nil {
		t.Fatalf("VerifyCard: %v", err)
	}
	if ev.EffectivePrice != 30 {
		t.Fatalf("effectivePrice = %d, want 30", ev.EffectivePrice)
	}
	// The escrow cannot pay out more than it holds: funds settle as a clean
	// sale, stake returned in full.
	if got := f.book.BalanceOf(seller); got != 125 {
		t.Fatalf("seller balance = %d, want 125", got)
	}
	if got := f.book.BalanceOf(buyer); got != 75 {
		t.Fatalf("buyer balance = %d, want 75", got)
	}
	f.assertConserved()
}

func TestQueries(t *testing.T) {
	f := newFixture(t)
	f.list()

	s, err := f.mkt.GetSeller(f.hash)
	if err != nil || s != seller {
		t.Fatalf("GetSeller = %s, %v", s, err)
	}
	b, err := f.mkt.GetBuyer(f.hash)
	if err != nil || b != ledger.Nobody {
		t.Fatalf("GetBuyer pre-accept = %s, %v", b, err)
	}

	f.requestAndAccept(buyer)
	b, err = f.mkt.GetBuyer(f.hash)
	if err != nil || b != buyer {
		t.Fatalf("GetBuyer post-accept = %s, %v", b, err)
	}

	if _, err := f.mkt.GetSeller(commit.MustOf([]byte("missing"))); !ledger.IsCode(err, ledger.CodeNotFound) {
		t.Fatalf("GetSeller missing: got %v, want NotFound", err)
	}
}

// reentrantFunds triggers a nested marketplace call from inside a debit, the
// way a malicious funds token would during escrow movement.
type reentrantFunds struct {
	*ledger.MemoryBook
	reenter func() error
	inner   error
	fired   bool
}

func (r *reentrantFunds) Debit(id ledger.Identity, amount int64) error {
	if !r.fired && r.reenter != nil {
		r.fired = true
		r.inner = r.reenter()
	}
	return r.MemoryBook.Debit(id, amount)
}

func TestReentrantCallIsRejected(t *testing.T) {
	reg := registry.New(state.Memory())
	book := &reentrantFunds{MemoryBook: ledger.NewMemoryBook()}
	hash := commit.MustOf([]byte("reentrant"))
	if err := reg.Register(hash, seller, 25, sealedForSeller); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := book.Credit(seller, 100); err != nil {
		t.Fatalf("Credit: %v", err)
	}

	mkt, err := market.New(market.Config{
		Store:    state.Memory(),
		Registry: reg,
		Funds:    book,
		Chain:    ledger.NewCounter(0),
	})
	if err != nil {
		t.Fatalf("market.New: %v", err)
	}
	book.reenter = func() error {
		_, err := mkt.RemoveCard(seller, hash)
		return err
	}

	if _, err := mkt.ListCard(seller, hash, 25, 25, 9); err != nil {
		t.Fatalf("outer ListCard: %v", err)
	}
	if !book.fired {
		t.Fatalf("re-entrant hook never fired")
	}
	if !ledger.IsCode(book.inner, ledger.CodeReentrancy) {
		t.Fatalf("nested call: got %v, want Reentrancy", book.inner)
	}
}

// failingStore breaks Delete once to force an invariant violation.
type failingStore struct {
	state.Store
	failDelete bool
}

type deleteErr struct{}

func (deleteErr) Error() string { return "synthetic delete failure" }

func (s *failingStore) Delete(key cid.Cid) error {
	if s.failDelete {
		s.failDelete = false
		return deleteErr{}
	}
	return s.Store.Delete(key)
}

func TestInvariantViolationHaltsHash(t *testing.T) {
	reg := registry.New(state.Memory())
	book := ledger.NewMemoryBook()
	store := &failingStore{Store: state.Memory(), failDelete: true}
	hash := commit.MustOf([]byte("halted"))
	if err := reg.Register(hash, seller, 25, sealedForSeller); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := book.Credit(seller, 100); err != nil {
		t.Fatalf("Credit: %v", err)
	}

	mkt, err := market.New(market.Config{
		Store:    store,
		Registry: reg,
		Funds:    book,
		Chain:    ledger.NewCounter(0),
	})
	if err != nil {
		t.Fatalf("market.New: %v", err)
	}
	if _, err := mkt.ListCard(seller, hash, 25, 25, 9); err != nil {
		t.Fatalf("ListCard: %v", err)
	}

	_, err = mkt.RemoveCard(seller, hash)
	if !ledger.IsCode(err, ledger.CodeInternal) {
		t.Fatalf("broken remove: got %v, want Internal", err)
	}

	// The hash is quarantined: no further mutation is allowed.
	_, err = mkt.RemoveCard(seller, hash)
	if !ledger.IsCode(err, ledger.CodeHalted) {
		t.Fatalf("operation on halted hash: got %v, want Halted", err)
	}
	_, err = mkt.SendBuyRequest(buyer, hash)
	if !ledger.IsCode(err, ledger.CodeHalted) {
		t.Fatalf("request on halted hash: got %v, want Halted", err)
	}
}
