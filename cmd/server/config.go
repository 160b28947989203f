package main

// Config defines the server-side environment variables. Flags override
// these for the parameters the original took on the command line.
type Config struct {
	Host     string `env:"ZEROCHAT_HOST,default=0.0.0.0"`
	PubPort  int    `env:"ZEROCHAT_PUB_PORT,default=5555"`
	RecvPort int    `env:"ZEROCHAT_RECV_PORT,default=5556"`
	LogLevel string `env:"ZEROCHAT_LOG_LEVEL,default=INFO"`
}
