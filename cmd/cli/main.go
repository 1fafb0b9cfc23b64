// Command vote-cli is a CLI client and key management tool for the campus voting service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	pb "github.com/and161185/campus-vote/internal/api/votingv1"
	"google.golang.org/grpc/status"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// errUsage marks bad command lines; main prints usage and exits 2 for them.
var errUsage = errors.New("usage")

func usageErr(format string, a ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, a...))
}

const usageText = `vote-cli
Usage:
  vote-cli -addr HOST:PORT [-cacert file | -insecure | -plaintext] <cmd> [args]

Commands:
  version
  login        -token <jwt> | -sub <uuid> -jwt-key <key> [-ttl 15m]
  logout
  whoami
  keygen       -purpose vote|tally [-bits 2048] [-backend local|kms] [-keys-dir dir] [-kms-region r]
  tally        -dsn <postgres dsn> -election <id> [-backend local|kms] [-keys-dir dir] [-kms-region r]
  issue-token  -election <id>
  cast         -token <uuid> -position <id> -candidate <id>
  qr-issue     -candidate <id>
  qr-link      -user <uuid> -candidate <id> [-ttl <minutes>]          (admin)
  qr-verify    -token <signed>
  qr-redeem    -token <signed>
  qr-cast      -slug <uuid> [-signed <token>] [-confirm]
  profile-set  -user <uuid> -role R -status S [-attr k=v ...] [-attrs-file f]   (admin)
`

// app carries what every command needs. connect is replaced in tests.
type app struct {
	store   store
	connect func(token string) (pb.VotingClient, func(), error)
	out     io.Writer
	errOut  io.Writer
	now     func() time.Time
}

func main() {
	addr := flag.String("addr", "localhost:8443", "server addr")
	caPath := flag.String("cacert", "", "CA cert (PEM)")
	skipVerify := flag.Bool("insecure", false, "skip cert verify (dev)")
	plaintext := flag.Bool("plaintext", false, "no TLS (server started with -insecure)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usageText) }
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	ep := endpoint{addr: *addr, caPath: *caPath, skipVerify: *skipVerify, plaintext: *plaintext}
	a := &app{store: defaultStore(), connect: ep.connect, out: os.Stdout, errOut: os.Stderr, now: time.Now}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err := a.run(ctx, flag.Arg(0), flag.Args()[1:])
	cancel()
	if err == nil {
		return
	}
	if errors.Is(err, errUsage) {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}
	if s, ok := status.FromError(err); ok {
		fmt.Fprintf(os.Stderr, "rpc error: code=%s msg=%s\n", s.Code(), s.Message())
	} else {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(1)
}

// run dispatches one subcommand.
func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "version":
		_, err := fmt.Fprintf(a.out, "vote-cli %s (%s)\n", version, buildDate)
		return err
	case "login":
		return a.login(args)
	case "logout":
		return a.store.clear()
	case "whoami":
		sess, err := a.store.load(a.now())
		if err != nil {
			return err
		}
		return a.printJSON(map[string]any{"user_id": sess.UserID, "expires_at": sess.ExpiresAt})
	case "keygen":
		return runKeygen(ctx, args, a.out)
	case "tally":
		return runTally(ctx, args, a.out)
	case "issue-token":
		return a.issueToken(ctx, args)
	case "cast":
		return a.cast(ctx, args)
	case "qr-issue":
		return a.qrIssue(ctx, args)
	case "qr-link":
		return a.qrLink(ctx, args)
	case "qr-verify", "qr-redeem":
		return a.qrVerify(ctx, cmd, args)
	case "qr-cast":
		return a.qrCast(ctx, args)
	case "profile-set":
		return a.profileSet(ctx, args)
	default:
		return usageErr("unknown command %q", cmd)
	}
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return usageErr("%s: %v", fs.Name(), err)
	}
	return nil
}

func (a *app) login(args []string) error {
	fs := newFlags("login")
	tok := fs.String("token", "", "access token issued by the identity layer")
	sub := fs.String("sub", "", "user id to mint a token for")
	key := fs.String("jwt-key", "", "server HS256 key (minting only)")
	ttl := fs.Duration("ttl", 15*time.Minute, "minted token TTL")
	if err := parse(fs, args); err != nil {
		return err
	}

	var sess session
	switch {
	case *tok != "":
		sess = sessionFromToken(*tok)
	case *sub != "" && *key != "":
		access, exp, err := mintToken(*sub, []byte(*key), *ttl)
		if err != nil {
			return err
		}
		sess = session{AccessToken: access, UserID: *sub, ExpiresAt: exp}
	default:
		return usageErr("login: need -token, or -sub and -jwt-key")
	}
	if err := a.store.save(sess); err != nil {
		return err
	}
	_, err := fmt.Fprintln(a.out, "ok")
	return err
}

// client dials with the saved session, or anonymously when authed is false.
func (a *app) client(authed bool) (pb.VotingClient, func(), error) {
	if !authed {
		return a.connect("")
	}
	sess, err := a.store.load(a.now())
	if err != nil {
		return nil, nil, err
	}
	return a.connect(sess.AccessToken)
}

func (a *app) issueToken(ctx context.Context, args []string) error {
	fs := newFlags("issue-token")
	election := fs.Int64("election", 0, "election id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *election <= 0 {
		return usageErr("issue-token: need -election")
	}
	cli, done, err := a.client(true)
	if err != nil {
		return err
	}
	defer done()
	out, err := cli.IssueToken(ctx, &pb.IssueTokenRequest{ElectionID: *election})
	if err != nil {
		return err
	}
	return a.printJSON(out)
}

func (a *app) cast(ctx context.Context, args []string) error {
	fs := newFlags("cast")
	token := fs.String("token", "", "vote token (uuid)")
	position := fs.Int64("position", 0, "position id")
	candidate := fs.Int64("candidate", 0, "candidate id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *token == "" || *position <= 0 || *candidate <= 0 {
		return usageErr("cast: need -token -position -candidate")
	}
	cli, done, err := a.client(true)
	if err != nil {
		return err
	}
	defer done()
	out, err := cli.CastVote(ctx, &pb.CastVoteRequest{Token: *token, PositionID: *position, CandidateID: *candidate})
	if err != nil {
		return err
	}
	return a.printJSON(out.Vote)
}

func (a *app) qrIssue(ctx context.Context, args []string) error {
	fs := newFlags("qr-issue")
	candidate := fs.Int64("candidate", 0, "candidate id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *candidate <= 0 {
		return usageErr("qr-issue: need -candidate")
	}
	cli, done, err := a.client(true)
	if err != nil {
		return err
	}
	defer done()
	out, err := cli.IssueQR(ctx, &pb.IssueQRRequest{CandidateID: *candidate})
	if err != nil {
		return err
	}
	return a.printJSON(out)
}

func (a *app) qrLink(ctx context.Context, args []string) error {
	fs := newFlags("qr-link")
	user := fs.String("user", "", "user id (uuid)")
	candidate := fs.Int64("candidate", 0, "candidate id")
	ttl := fs.Int("ttl", 0, "ttl in minutes (0 = default max age)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *user == "" || *candidate <= 0 || *ttl < 0 {
		return usageErr("qr-link: need -user and -candidate")
	}
	cli, done, err := a.client(true)
	if err != nil {
		return err
	}
	defer done()
	out, err := cli.IssueQRLink(ctx, &pb.IssueQRLinkRequest{UserID: *user, CandidateID: *candidate, TTLMinutes: *ttl})
	if err != nil {
		return err
	}
	return a.printJSON(out)
}

// qrVerify serves both qr-verify and qr-redeem; neither needs a login.
func (a *app) qrVerify(ctx context.Context, cmd string, args []string) error {
	fs := newFlags(cmd)
	token := fs.String("token", "", "signed QR token")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *token == "" {
		return usageErr("%s: need -token", cmd)
	}
	cli, done, err := a.client(false)
	if err != nil {
		return err
	}
	defer done()
	call := cli.VerifyQR
	if cmd == "qr-redeem" {
		call = cli.RedeemQR
	}
	out, err := call(ctx, &pb.VerifyQRRequest{Token: *token})
	if err != nil {
		return err
	}
	return a.printJSON(out)
}

func (a *app) qrCast(ctx context.Context, args []string) error {
	fs := newFlags("qr-cast")
	slug := fs.String("slug", "", "candidate QR slug (uuid)")
	signed := fs.String("signed", "", "signed QR token (optional)")
	confirm := fs.Bool("confirm", false, "cast even without a signed token")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *slug == "" {
		return usageErr("qr-cast: need -slug")
	}
	cli, done, err := a.client(true)
	if err != nil {
		return err
	}
	defer done()
	out, err := cli.CastQR(ctx, &pb.CastQRRequest{Slug: *slug, SignedToken: *signed, Confirm: *confirm})
	if err != nil {
		return err
	}
	if out.AwaitingConfirmation {
		fmt.Fprintf(a.errOut, "confirm your vote for %q with -confirm\n", out.Candidate.Name)
	}
	return a.printJSON(out)
}

func (a *app) profileSet(ctx context.Context, args []string) error {
	req, err := parseProfileArgs(args)
	if err != nil {
		return usageErr("profile-set: %v", err)
	}
	cli, done, err := a.client(true)
	if err != nil {
		return err
	}
	defer done()
	if _, err := cli.UpdateProfile(ctx, req); err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, "ok")
	return err
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
