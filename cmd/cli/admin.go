package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	pb "github.com/and161185/campus-vote/internal/api/votingv1"
	pkgcrypto "github.com/and161185/campus-vote/internal/crypto"
	"github.com/and161185/campus-vote/internal/keyprovider"
	"github.com/and161185/campus-vote/internal/model"
	"github.com/and161185/campus-vote/internal/repository/postgres"
	"github.com/and161185/campus-vote/internal/service"
	u "github.com/gofrs/uuid/v5"
)

// ------- profile attributes -------

// attrFlag collects repeated -attr key=value pairs.
type attrFlag map[string]any

func (a attrFlag) String() string {
	b, _ := json.Marshal(map[string]any(a))
	return string(b)
}

func (a attrFlag) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	k = strings.TrimSpace(k)
	if !ok || k == "" {
		return fmt.Errorf("want key=value, got %q", s)
	}
	a[k] = typedValue(strings.TrimSpace(v))
	return nil
}

// typedValue keeps booleans and numbers typed so that
// allowed_to_vote=false is stored as a JSON false, not "false".
func typedValue(v string) any {
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}

var (
	roles    = []string{"student", "staff", "admin"}
	statuses = []string{"active", "suspended", "archived"}
)

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// parseProfileArgs builds an UpdateProfile request from profile-set flags.
// -attr pairs override keys from -attrs-file.
func parseProfileArgs(args []string) (*pb.UpdateProfileRequest, error) {
	fs := flag.NewFlagSet("profile-set", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	user := fs.String("user", "", "user id (uuid)")
	role := fs.String("role", "student", strings.Join(roles, "|"))
	st := fs.String("status", "active", strings.Join(statuses, "|"))
	file := fs.String("attrs-file", "", "JSON object with attributes ('-'=stdin)")
	attrs := attrFlag{}
	fs.Var(attrs, "attr", "attribute key=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if _, err := u.FromString(*user); err != nil {
		return nil, errors.New("need -user <uuid>")
	}
	if !oneOf(*role, roles) {
		return nil, fmt.Errorf("bad -role %q", *role)
	}
	if !oneOf(*st, statuses) {
		return nil, fmt.Errorf("bad -status %q", *st)
	}

	out := map[string]any{}
	if *file != "" {
		b, err := readAll(*file)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &out); err != nil {
			return nil, fmt.Errorf("attrs-file: %w", err)
		}
	}
	for k, v := range attrs {
		out[k] = v
	}
	return &pb.UpdateProfileRequest{UserID: *user, Role: *role, Status: *st, Attributes: out}, nil
}

// ------- keys -------

// keyFlags registers the key backend flags keygen and tally share.
func keyFlags(fs *flag.FlagSet) func() keyprovider.Config {
	backend := fs.String("backend", keyprovider.BackendLocal, "local|kms")
	dir := fs.String("keys-dir", "keys", "directory for local PEM files")
	region := fs.String("kms-region", "", "AWS region (kms)")
	endpoint := fs.String("kms-endpoint", "", "KMS endpoint override (kms)")
	return func() keyprovider.Config {
		return keyprovider.Config{
			Backend: *backend,
			Local:   keyprovider.DefaultLocalConfig(*dir),
			KMS:     keyprovider.KMSConfig{Region: *region, Endpoint: *endpoint},
		}
	}
}

// runKeygen generates a vote or tally keypair with the selected backend and
// writes the resulting references to w.
func runKeygen(ctx context.Context, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	purpose := fs.String("purpose", "vote", "vote|tally")
	bits := fs.Int("bits", 2048, "RSA modulus size (2048|3072|4096)")
	keys := keyFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, err := keyprovider.ParsePurpose(*purpose)
	if err != nil {
		return err
	}
	prov, err := keyprovider.New(ctx, keys())
	if err != nil {
		return err
	}
	refs, err := prov.GenerateKeypair(ctx, p, *bits)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]string{
		"backend":     prov.Name(),
		"purpose":     string(p),
		"private_ref": string(refs.PrivateRef),
		"public_ref":  string(refs.PublicRef),
	})
}

// runTally counts an election straight from the database. It needs the
// private vote key and the public tally key, so it runs where they live.
func runTally(ctx context.Context, args []string, w io.Writer) error {
	fs := newFlags("tally")
	dsn := fs.String("dsn", "", "PostgreSQL DSN")
	election := fs.Int64("election", 0, "election id")
	keys := keyFlags(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	if *dsn == "" || *election <= 0 {
		return usageErr("tally: need -dsn and -election")
	}

	prov, err := keyprovider.New(ctx, keys())
	if err != nil {
		return err
	}
	db, err := postgres.New(ctx, *dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := service.NewTallyService(postgres.NewVoteRepo(db), pkgcrypto.NewService(prov), nil)
	res, err := svc.Tally(ctx, *election)
	if err != nil {
		return err
	}
	return printTally(w, res)
}

func printTally(w io.Writer, res *model.TallyResult) error {
	counts := make(map[string]int, len(res.Counts))
	for id, n := range res.Counts {
		counts[strconv.FormatInt(id, 10)] = n
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"election_id": res.ElectionID,
		"ballots":     res.Ballots,
		"counts":      counts,
		"rejected": map[string]int{
			"bad_signature": res.BadSignature,
			"undecryptable": res.Undecryptable,
			"mismatched":    res.Mismatched,
			"duplicate":     res.Duplicate,
		},
		"unsigned": res.Unsigned,
	})
}
