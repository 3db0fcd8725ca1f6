package wompi

import "time"

const (
	SandboxBaseURL    = "https://sandbox.wompi.co/v1"
	ProductionBaseURL = "https://production.wompi.co/v1"

	defaultTimeout = 15 * time.Second
)

// Config is built once at startup; the client never reads the environment.
type Config struct {
	BaseURL    string
	PublicKey  string
	PrivateKey string
	Timeout    time.Duration

	// RequestsPerSecond <= 0 disables throttling.
	RequestsPerSecond float64
	Burst             int
}
