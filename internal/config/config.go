package config

const (
	FormatGzip = "gz"
	FormatZstd = "zst"
)

const DefaultRetention = 30

// Config is built once at startup from the environment and passed into
// every component. Nothing below cmd/ reads the environment directly.
type Config struct {
	JobName         string
	SourceDir       string
	BackupDir       string
	LogDir          string
	Bucket          string
	RemotePath      string
	AccountID       string
	AccountKey      string
	LocalRetention  int
	RemoteRetention int
	Format          string
}
