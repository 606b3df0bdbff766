package main

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cloudflare/circl/kem"

	"xdao.co/claimvault/commit"
	"xdao.co/claimvault/ledger"
	"xdao.co/claimvault/marketrpc"
	"xdao.co/claimvault/seal"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "commit":
		return cmdCommit(args[1:], out, errOut)
	case "seal":
		return cmdSeal(args[1:], out, errOut)
	case "open":
		return cmdOpen(args[1:], out, errOut)
	case "register":
		return cmdRegister(args[1:], out, errOut)
	case "show":
		return cmdShow(args[1:], out, errOut)
	case "disclose":
		return cmdDisclose(args[1:], out, errOut)
	case "list":
		return cmdList(args[1:], out, errOut)
	case "update-price":
		return cmdUpdatePrice(args[1:], out, errOut)
	case "buy":
		return cmdBuy(args[1:], out, errOut)
	case "accept":
		return cmdAccept(args[1:], out, errOut)
	case "remove":
		return cmdRemove(args[1:], out, errOut)
	case "verify":
		return cmdVerify(args[1:], out, errOut)
	case "listing":
		return cmdListing(args[1:], out, errOut)
	case "deposit":
		return cmdDeposit(args[1:], out, errOut)
	case "balance":
		return cmdBalance(args[1:], out, errOut)
	case "height":
		return cmdHeight(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "claimvault: claim-code registry and escrow marketplace CLI")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Local commands:")
	fmt.Fprintln(w, "  claimvault key init --name <name> [--seed-hex <hex>] [--force]")
	fmt.Fprintln(w, "  claimvault key list")
	fmt.Fprintln(w, "  claimvault key export --name <name>")
	fmt.Fprintln(w, "  claimvault commit (--code <text> | --code-file <path>)")
	fmt.Fprintln(w, "  claimvault seal --to <pubkey-b64> (--code <text> | --code-file <path>)")
	fmt.Fprintln(w, "  claimvault open --signer <name> [<sealed-file>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Remote commands (all accept --target, default 127.0.0.1:7878):")
	fmt.Fprintln(w, "  claimvault register --signer <name> (--code <text> | --code-file <path>) --balance <n>")
	fmt.Fprintln(w, "  claimvault show --hash <commitment>")
	fmt.Fprintln(w, "  claimvault disclose --signer <name> --hash <commitment> [--open]")
	fmt.Fprintln(w, "  claimvault list --signer <name> --hash <commitment> --price <n> [--balance <n>] [--stake <n>]")
	fmt.Fprintln(w, "  claimvault update-price --signer <name> --hash <commitment> --price <n> [--add-stake <n>]")
	fmt.Fprintln(w, "  claimvault buy --signer <name> --hash <commitment>")
	fmt.Fprintln(w, "  claimvault accept --signer <name> --hash <commitment> --buyer-key <pubkey-b64> (--code <text> | --code-file <path>)")
	fmt.Fprintln(w, "  claimvault remove --signer <name> --hash <commitment>")
	fmt.Fprintln(w, "  claimvault verify --signer <name> --hash <commitment> [--reject] [--balance-diff <n>]")
	fmt.Fprintln(w, "  claimvault listing --hash <commitment>")
	fmt.Fprintln(w, "  claimvault deposit --signer <name> --amount <n>")
	fmt.Fprintln(w, "  claimvault balance --signer <name>")
	fmt.Fprintln(w, "  claimvault height")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - keys live under ~/.claimvault/keys/<name> (0600 seed files)")
	fmt.Fprintln(w, "  - a commitment hash is the CIDv1 (raw, sha2-256) of the claim code bytes")
	fmt.Fprintln(w, "  - accept re-encrypts the claim code for the buyer; the plaintext never travels")
	fmt.Fprintln(w, "  - deposit requires a daemon started with --faucet")
}

// remoteFlags registers the flags shared by every command that talks to a
// daemon.
type remoteFlags struct {
	target  string
	timeout time.Duration
}

func (r *remoteFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&r.target, "target", "127.0.0.1:7878", "daemon address host:port")
	fs.DurationVar(&r.timeout, "timeout", 10*time.Second, "per-RPC timeout")
}

func (r *remoteFlags) dial(errOut io.Writer) (*marketrpc.Client, func() error, bool) {
	client, closeFn, err := marketrpc.Dial(r.target, marketrpc.DialOptions{Timeout: r.timeout})
	if err != nil {
		fmt.Fprintf(errOut, "dial %s: %v\n", r.target, err)
		return nil, nil, false
	}
	client.Timeout = r.timeout
	return client, closeFn, true
}

// codeFlags reads the claim code from --code, --code-file or stdin ("-").
type codeFlags struct {
	code     string
	codeFile string
}

func (c *codeFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.code, "code", "", "claim code text")
	fs.StringVar(&c.codeFile, "code-file", "", "read the claim code from this file ('-' for stdin)")
}

func (c *codeFlags) read(errOut io.Writer) ([]byte, bool) {
	if c.code != "" && c.codeFile != "" {
		fmt.Fprintln(errOut, "provide --code or --code-file, not both")
		return nil, false
	}
	if c.code != "" {
		return []byte(c.code), true
	}
	if c.codeFile == "" {
		fmt.Fprintln(errOut, "missing claim code (--code or --code-file)")
		return nil, false
	}
	if c.codeFile == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(errOut, "read stdin: %v\n", err)
			return nil, false
		}
		return b, true
	}
	b, err := os.ReadFile(c.codeFile)
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", c.codeFile, err)
		return nil, false
	}
	return b, true
}

func loadSigner(name string, errOut io.Writer) (ledger.Identity, kem.PublicKey, kem.PrivateKey, bool) {
	if name == "" {
		fmt.Fprintln(errOut, "missing --signer")
		return ledger.Nobody, nil, nil, false
	}
	ks, err := seal.OpenKeyStore("")
	if err != nil {
		fmt.Fprintf(errOut, "key store: %v\n", err)
		return ledger.Nobody, nil, nil, false
	}
	pub, priv, err := ks.Load(name)
	if err != nil {
		fmt.Fprintf(errOut, "load key %q: %v\n", name, err)
		return ledger.Nobody, nil, nil, false
	}
	id, err := seal.Fingerprint(pub)
	if err != nil {
		fmt.Fprintf(errOut, "fingerprint: %v\n", err)
		return ledger.Nobody, nil, nil, false
	}
	return id, pub, priv, true
}

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: claimvault key <init|list|export> ...")
		return 2
	}
	switch args[0] {
	case "init":
		return cmdKeyInit(args[1:], out, errOut)
	case "list":
		return cmdKeyList(args[1:], out, errOut)
	case "export":
		return cmdKeyExport(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n", args[0])
		return 2
	}
}

func cmdKeyInit(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key init", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var name string
	var seedHex string
	var force bool
	fs.StringVar(&name, "name", "", "Key name (directory under ~/.claimvault/keys)")
	fs.StringVar(&seedHex, "seed-hex", "", "Optional KEM seed as hex (for reproducible demos)")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}

	var seed []byte
	if seedHex != "" {
		b, err := hex.DecodeString(strings.TrimSpace(seedHex))
		if err != nil {
			fmt.Fprintf(errOut, "invalid --seed-hex: %v\n", err)
			return 2
		}
		seed = b
	}
	ks, err := seal.OpenKeyStore("")
	if err != nil {
		fmt.Fprintf(errOut, "key store: %v\n", err)
		return 1
	}
	id, err := ks.Init(name, seed, force)
	if err != nil {
		fmt.Fprintf(errOut, "init key: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "%s\t%s\n", name, id)
	return 0
}

func cmdKeyList(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key list", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	ks, err := seal.OpenKeyStore("")
	if err != nil {
		fmt.Fprintf(errOut, "key store: %v\n", err)
		return 1
	}
	entries, err := ks.List()
	if err != nil {
		fmt.Fprintf(errOut, "list keys: %v\n", err)
		return 1
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s\t%s\n", e.Name, e.Identity)
	}
	return 0
}

func cmdKeyExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key export", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var name string
	fs.StringVar(&name, "name", "", "Key name")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}
	ks, err := seal.OpenKeyStore("")
	if err != nil {
		fmt.Fprintf(errOut, "key store: %v\n", err)
		return 1
	}
	pub, err := ks.ExportPublic(name)
	if err != nil {
		fmt.Fprintf(errOut, "export key: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, pub)
	return 0
}

func cmdCommit(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("commit", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var cf codeFlags
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	code, ok := cf.read(errOut)
	if !ok {
		return 2
	}
	hash, err := commit.Of(code)
	if err != nil {
		fmt.Fprintf(errOut, "commit: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, hash.String())
	return 0
}

func cmdSeal(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("seal", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var to string
	var cf codeFlags
	fs.StringVar(&to, "to", "", "Recipient public key (base64, from 'claimvault key export')")
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if to == "" {
		fmt.Fprintln(errOut, "missing --to")
		return 2
	}
	code, ok := cf.read(errOut)
	if !ok {
		return 2
	}
	pub, err := seal.ParsePublic(to)
	if err != nil {
		fmt.Fprintf(errOut, "parse --to: %v\n", err)
		return 2
	}
	sealed, err := seal.Seal(code, pub)
	if err != nil {
		fmt.Fprintf(errOut, "seal: %v\n", err)
		return 1
	}
	b, err := sealed.Encode()
	if err != nil {
		fmt.Fprintf(errOut, "encode: %v\n", err)
		return 1
	}
	_, _ = out.Write(b)
	return 0
}

func cmdOpen(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("open", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var signer string
	fs.StringVar(&signer, "signer", "", "Key name used to decrypt")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	_, _, priv, ok := loadSigner(signer, errOut)
	if !ok {
		return 2
	}

	var b []byte
	var err error
	switch fs.NArg() {
	case 0:
		b, err = io.ReadAll(os.Stdin)
	case 1:
		b, err = os.ReadFile(fs.Arg(0))
	default:
		fmt.Fprintln(errOut, "usage: claimvault open --signer <name> [<sealed-file>]")
		return 2
	}
	if err != nil {
		fmt.Fprintf(errOut, "read sealed secret: %v\n", err)
		return 1
	}
	sealed, err := seal.Decode(b)
	if err != nil {
		fmt.Fprintf(errOut, "decode: %v\n", err)
		return 1
	}
	code, err := seal.Open(sealed, priv)
	if err != nil {
		fmt.Fprintf(errOut, "open: %v\n", err)
		return 1
	}
	_, _ = out.Write(code)
	return 0
}

func cmdRegister(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var signer string
	var balance int64
	var rf remoteFlags
	var cf codeFlags
	fs.StringVar(&signer, "signer", "", "Key name of the issuer")
	fs.Int64Var(&balance, "balance", 0, "Redeemable balance behind the claim code")
	rf.register(fs)
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	id, pub, _, ok := loadSigner(signer, errOut)
	if !ok {
		return 2
	}
	code, ok := cf.read(errOut)
	if !ok {
		return 2
	}
	hash, err := commit.Of(code)
	if err != nil {
		fmt.Fprintf(errOut, "commit: %v\n", err)
		return 1
	}

	// The issuer keeps a sealed copy for itself so it can later prove (and
	// re-encrypt) the plaintext without storing it anywhere in the clear.
	sealed, err := seal.Seal(code, pub)
	if err != nil {
		fmt.Fprintf(errOut, "seal: %v\n", err)
		return 1
	}
	sealedBytes, err := sealed.Encode()
	if err != nil {
		fmt.Fprintf(errOut, "encode: %v\n", err)
		return 1
	}

	client, closeFn, ok := rf.dial(errOut)
	if !ok {
		return 1
	}
	defer closeFn()

	err = client.Register(context.Background(), marketrpc.RegisterRequest{
		Issuer:       id,
		Hash:         hash.String(),
		Balance:      balance,
		SealedSecret: sealedBytes,
	})
	if err != nil {
		fmt.Fprintf(errOut, "register: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, hash.String())
	return 0
}

func cmdShow(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var hash string
	var rf remoteFlags
	fs.StringVar(&hash, "hash", "", "Commitment hash")
	rf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if hash == "" {
		fmt.Fprintln(errOut, "missing --hash")
		return 2
	}
	client, closeFn, ok := rf.dial(errOut)
	if !ok {
		return 1
	}
	defer closeFn()

	card, err := client.GetCard(context.Background(), marketrpc.GetCardRequest{Hash: hash})
	if err != nil {
		fmt.Fprintf(errOut, "show: %v\n", err)
		return 1
	}
	if !card.Registered {
		fmt.Fprintln(out, "unregistered")
		return 0
	}
	fmt.Fprintf(out, "issuer:    %s\n", card.OriginalIssuer)
	fmt.Fprintf(out, "holder:    %s\n", card.Holder)
	fmt.Fprintf(out, "balance:   %d\n", card.Balance)
	fmt.Fprintf(out, "disclosed: %v\n", card.Disclosed)
	return 0
}

func cmdDisclose(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("disclose", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var signer string
	var hash string
	var open bool
	var rf remoteFlags
	fs.StringVar(&signer, "signer", "", "Key name of the holder")
	fs.StringVar(&hash, "hash", "", "Commitment hash")
	fs.BoolVar(&open, "open", false, "Decrypt and print the plaintext claim code")
	rf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if hash == "" {
		fmt.Fprintln(errOut, "missing --hash")
		return 2
	}
	id, _, priv, ok := loadSigner(signer, errOut)
	if !ok {
		return 2
	}
	client, closeFn, ok := rf.dial(errOut)
	if !ok {
		return 1
	}
	defer closeFn()

	resp, err := client.Disclose(context.Background(), marketrpc.DiscloseRequest{Caller: id, Hash: hash})
	if err != nil {
		fmt.Fprintf(errOut, "disclose: %v\n", err)
		return 1
	}
	if !open {
		fmt.Fprintln(out, base64.StdEncoding.EncodeToString(resp.SealedSecret))
		return 0
	}
	sealed, err := seal.Decode(resp.SealedSecret)
	if err != nil {
		fmt.Fprintf(errOut, "decode sealed secret: %v\n", err)
		return 1
	}
	code, err := seal.Open(sealed, priv)
	if err != nil {
		fmt.Fprintf(errOut, "open sealed secret: %v\n", err)
		return 1
	}
	_, _ = out.Write(code)
	return 0
}

func cmdList(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var signer, hash string
	var price, balance, stake int64
	var rf remoteFlags
	fs.StringVar(&signer, "signer", "", "Key name of the seller")
	fs.StringVar(&hash, "hash", "", "Commitment hash")
	fs.Int64Var(&price, "price", 0, "Asking price")
	fs.Int64Var(&balance, "balance", 0, "Declared balance (ignored for registered hashes)")
	fs.Int64Var(&stake, "stake", 0, "Stake (default: one third of the price, rounded up)")
	rf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if hash == "" {
		fmt.Fprintln(errOut, "missing --hash")
		return 2
	}
	id, _, _, ok := loadSigner(signer, errOut)
	if !ok {
		return 2
	}
	if stake == 0 {
		stake = ledger.CeilDiv(price, 3)
	}
	if balance == 0 {
		balance = price
	}
	client, closeFn, ok := rf.dial(errOut)
	if !ok {
		return 1
	}
	defer closeFn()

	resp, err := client.ListCard(context.Background(), marketrpc.ListCardRequest{
		Seller: id, Hash: hash, Price: price, Balance: balance, Stake: stake,
	})
	if err != nil {
		fmt.Fprintf(errOut, "list: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "listed at %d (stake %d)\n", resp.Price, stake)
	return 0
}

func cmdUpdatePrice(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("update-price", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var signer, hash string
	var price, addStake int64
	var rf remoteFlags
	fs.StringVar(&signer, "signer", "", "Key name of the seller")
	fs.StringVar(&hash, "hash", "", "Commitment hash")
	fs.Int64Var(&price, "price", 0, "New asking price")
	fs.Int64Var(&addStake, "add-stake", 0, "Additional stake to escrow")
	rf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if hash == "" {
		fmt.Fprintln(errOut, "missing --hash")
		return 2
	}
	id, _, _, ok := loadSigner(signer, errOut)
	if !ok {
		return 2
	}
	client, closeFn, ok := rf.dial(errOut)
	if !ok {
		return 1
	}
	defer closeFn()

	resp, err := client.UpdatePrice(context.Background(), marketrpc.UpdatePriceRequest{
		Seller: id, Hash: hash, NewPrice: price, AdditionalStake: addStake,
	})
	if err != nil {
		fmt.Fprintf(errOut, "update-price: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "price now %d\n", resp.NewPrice)
	return 0
}

func cmdBuy(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("buy", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var signer, hash string
	var rf remoteFlags
	fs.StringVar(&signer, "signer", "", "Key name of the buyer")
	fs.StringVar(&hash, "hash", "", "Commitment hash")
	rf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if hash == "" {
		fmt.Fprintln(errOut, "missing --hash")
		return 2
	}
	id, _, _, ok := loadSigner(signer, errOut)
	if !ok {
		return 2
	}
	client, closeFn, ok := rf.dial(errOut)
	if !ok {
		return 1
	}
	defer closeFn()

	if _, err := client.SendBuyRequest(context.Background(), marketrpc.BuyRequest{Buyer: id, Hash: hash}); err != nil {
		fmt.Fprintf(errOut, "buy: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, "buy request sent")
	return 0
}

func cmdAccept(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("accept", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var signer, hash, buyerKey string
	var rf remoteFlags
	var cf codeFlags
	fs.StringVar(&signer, "signer", "", "Key name of the seller")
	fs.StringVar(&hash, "hash", "", "Commitment hash")
	fs.StringVar(&buyerKey, "buyer-key", "", "Buyer public key (base64)")
	rf.register(fs)
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if hash == "" || buyerKey == "" {
		fmt.Fprintln(errOut, "missing --hash or --buyer-key")
		return 2
	}
	id, _, _, ok := loadSigner(signer, errOut)
	if !ok {
		return 2
	}
	code, ok := cf.read(errOut)
	if !ok {
		return 2
	}

	// Refuse to hand the buyer a code that does not match the listing.
	got, err := commit.Of(code)
	if err != nil {
		fmt.Fprintf(errOut, "commit: %v\n", err)
		return 1
	}
	if got.String() != hash {
		fmt.Fprintf(errOut, "claim code does not match commitment %s\n", hash)
		return 2
	}

	pub, err := seal.ParsePublic(buyerKey)
	if err != nil {
		fmt.Fprintf(errOut, "parse --buyer-key: %v\n", err)
		return 2
	}
	sealed, err := seal.Seal(code, pub)
	if err != nil {
		fmt.Fprintf(errOut, "seal for buyer: %v\n", err)
		return 1
	}
	sealedBytes, err := sealed.Encode()
	if err != nil {
		fmt.Fprintf(errOut, "encode: %v\n", err)
		return 1
	}

	client, closeFn, ok := rf.dial(errOut)
	if !ok {
		return 1
	}
	defer closeFn()

	resp, err := client.AcceptBuyRequest(context.Background(), marketrpc.AcceptRequest{
		Seller: id, Hash: hash, ResealedSecret: sealedBytes,
	})
	if err != nil {
		fmt.Fprintf(errOut, "accept: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "sold to %s at %d\n", resp.Buyer, resp.Price)
	return 0
}

func cmdRemove(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("remove", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var signer, hash string
	var rf remoteFlags
	fs.StringVar(&signer, "signer", "", "Key name of the seller")
	fs.StringVar(&hash, "hash", "", "Commitment hash")
	rf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if hash == "" {
		fmt.Fprintln(errOut, "missing --hash")
		return 2
	}
	id, _, _, ok := loadSigner(signer, errOut)
	if !ok {
		return 2
	}
	client, closeFn, ok := rf.dial(errOut)
	if !ok {
		return 1
	}
	defer closeFn()

	if _, err := client.RemoveCard(context.Background(), marketrpc.RemoveRequest{Seller: id, Hash: hash}); err != nil {
		fmt.Fprintf(errOut, "remove: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, "delisted")
	return 0
}

func cmdVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var signer, hash string
	var reject bool
	var balanceDiff int64
	var rf remoteFlags
	fs.StringVar(&signer, "signer", "", "Key name of the verifier")
	fs.StringVar(&hash, "hash", "", "Commitment hash")
	fs.BoolVar(&reject, "reject", false, "Report the claim code as not working")
	fs.Int64Var(&balanceDiff, "balance-diff", 0, "Listed balance minus actual balance")
	rf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if hash == "" {
		fmt.Fprintln(errOut, "missing --hash")
		return 2
	}
	id, _, _, ok := loadSigner(signer, errOut)
	if !ok {
		return 2
	}
	client, closeFn, ok := rf.dial(errOut)
	if !ok {
		return 1
	}
	defer closeFn()

	resp, err := client.VerifyCard(context.Background(), marketrpc.VerifyRequest{
		Caller: id, Hash: hash, Accepted: !reject, BalanceDifference: balanceDiff,
	})
	if err != nil {
		fmt.Fprintf(errOut, "verify: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "settled: seller=%s buyer=%s effective-price=%d\n",
		resp.Seller, resp.Buyer, resp.EffectivePrice)
	return 0
}

func cmdListing(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("listing", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var hash string
	var rf remoteFlags
	fs.StringVar(&hash, "hash", "", "Commitment hash")
	rf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if hash == "" {
		fmt.Fprintln(errOut, "missing --hash")
		return 2
	}
	client, closeFn, ok := rf.dial(errOut)
	if !ok {
		return 1
	}
	defer closeFn()

	l, err := client.GetListing(context.Background(), marketrpc.GetListingRequest{Hash: hash})
	if err != nil {
		fmt.Fprintf(errOut, "listing: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "seller:     %s\n", l.Seller)
	fmt.Fprintf(out, "price:      %d\n", l.Price)
	fmt.Fprintf(out, "stake:      %d\n", l.Stake)
	fmt.Fprintf(out, "face-value: %d\n", l.FaceValue)
	if l.PendingBuyer.Defined() {
		fmt.Fprintf(out, "pending:    %s\n", l.PendingBuyer)
	}
	if l.Buyer.Defined() {
		fmt.Fprintf(out, "buyer:      %s (accepted at block %d)\n", l.Buyer, l.AcceptedAtBlock)
	}
	return 0
}

func cmdDeposit(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("deposit", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var signer string
	var amount int64
	var rf remoteFlags
	fs.StringVar(&signer, "signer", "", "Key name of the account holder")
	fs.Int64Var(&amount, "amount", 0, "Amount to credit")
	rf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	id, _, _, ok := loadSigner(signer, errOut)
	if !ok {
		return 2
	}
	client, closeFn, ok := rf.dial(errOut)
	if !ok {
		return 1
	}
	defer closeFn()

	resp, err := client.Deposit(context.Background(), marketrpc.DepositRequest{Account: id, Amount: amount})
	if err != nil {
		fmt.Fprintf(errOut, "deposit: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "balance: %d\n", resp.Balance)
	return 0
}

func cmdBalance(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("balance", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var signer string
	var rf remoteFlags
	fs.StringVar(&signer, "signer", "", "Key name of the account holder")
	rf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	id, _, _, ok := loadSigner(signer, errOut)
	if !ok {
		return 2
	}
	client, closeFn, ok := rf.dial(errOut)
	if !ok {
		return 1
	}
	defer closeFn()

	resp, err := client.Balance(context.Background(), marketrpc.BalanceRequest{Account: id})
	if err != nil {
		fmt.Fprintf(errOut, "balance: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, resp.Balance)
	return 0
}

func cmdHeight(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("height", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var rf remoteFlags
	rf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	client, closeFn, ok := rf.dial(errOut)
	if !ok {
		return 1
	}
	defer closeFn()

	resp, err := client.Height(context.Background())
	if err != nil {
		fmt.Fprintf(errOut, "height: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, resp.Height)
	return 0
}
