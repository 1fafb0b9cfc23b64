package keyprovider

import "time"

// Config selects and configures a backend.
type Config struct {
	Backend string
	Local   LocalConfig
	KMS     KMSConfig
}

// LocalConfig describes where PEM files live.
type LocalConfig struct {
	Dir              string
	VotePrivateFile  string
	VotePublicFile   string
	TallyPrivateFile string
	TallyPublicFile  string
}

// DefaultLocalConfig returns the conventional file layout under dir.
func DefaultLocalConfig(dir string) LocalConfig {
	return LocalConfig{
		Dir:              dir,
		VotePrivateFile:  "private_key.pem",
		VotePublicFile:   "public_key.pem",
		TallyPrivateFile: "tally_sign_private.pem",
		TallyPublicFile:  "tally_sign_public.pem",
	}
}

// KMSConfig configures the AWS KMS backend.
type KMSConfig struct {
	Region          string
	Endpoint        string // optional, e.g. a localstack URL
	AccessKeyID     string // optional static credentials
	SecretAccessKey string
	VoteKeyID       string
	TallyKeyID      string
	Timeout         time.Duration
}
