package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"os"

	pb "github.com/and161185/campus-vote/internal/api/votingv1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// endpoint describes how to reach the server.
type endpoint struct {
	addr       string
	caPath     string
	skipVerify bool // TLS without certificate checks
	plaintext  bool // no TLS; the server runs with -insecure
}

// bearer attaches the access token to every call.
type bearer struct {
	token     string
	plaintext bool
}

func (b bearer) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}

func (b bearer) RequireTransportSecurity() bool { return !b.plaintext }

func (e endpoint) transportCreds() (credentials.TransportCredentials, error) {
	switch {
	case e.plaintext:
		return insecure.NewCredentials(), nil
	case e.skipVerify:
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil
	case e.caPath == "":
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(e.caPath)
	if err != nil {
		return nil, err
	}
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(pem) {
		return nil, errors.New("no certificates in " + e.caPath)
	}
	return credentials.NewTLS(&tls.Config{RootCAs: roots, MinVersion: tls.VersionTLS12}), nil
}

// connect returns a client, authenticated when token is non-empty.
func (e endpoint) connect(token string) (pb.VotingClient, func(), error) {
	creds, err := e.transportCreds()
	if err != nil {
		return nil, nil, err
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if token != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearer{token: token, plaintext: e.plaintext}))
	}
	cc, err := grpc.NewClient(e.addr, opts...)
	if err != nil {
		return nil, nil, err
	}
	return pb.NewVotingClient(cc), func() { _ = cc.Close() }, nil
}
