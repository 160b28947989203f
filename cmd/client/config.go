package main

// Config defines the client-side environment variables. Flags override
// these for the parameters the original took on the command line.
type Config struct {
	Username string `env:"ZEROCHAT_USERNAME,default=Anon"`
	Channel  string `env:"ZEROCHAT_CHANNEL,default=GLOBAL"`
	Host     string `env:"ZEROCHAT_SERVER_HOST,default=localhost"`
	PubPort  int    `env:"ZEROCHAT_PUB_PORT,default=5555"`
	SendPort int    `env:"ZEROCHAT_SEND_PORT,default=5556"`
	LogLevel string `env:"ZEROCHAT_LOG_LEVEL,default=INFO"`
}
