package util

import (
	"strings"

	"github.com/ValentinKolb/dShop/lib/common"
	"github.com/ValentinKolb/dShop/lib/shop"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupShopFlags adds the flags of common.ShopConfig to a command
func SetupShopFlags(cmd *cobra.Command) {
	d := common.DefaultConfig()

	key := "data-dir"
	cmd.PersistentFlags().String(key, d.DataDir, WrapString("Directory holding one <collection>.json file per collection"))

	key = "cache-ttl"
	cmd.PersistentFlags().Duration(key, d.CacheTTL, WrapString("Time to live of cached collections, search results and activity pages"))

	key = "cache-gc-interval"
	cmd.PersistentFlags().Duration(key, d.CacheGCInterval, WrapString("Time between two runs of the cache garbage collector"))

	key = "search-limit"
	cmd.PersistentFlags().Int(key, d.SearchLimit, WrapString("Default maximum number of search results"))

	key = "session-ttl"
	cmd.PersistentFlags().Duration(key, d.SessionTTL, WrapString("Lifetime of a normal session"))

	key = "remember-me-ttl"
	cmd.PersistentFlags().Duration(key, d.RememberMeTTL, WrapString("Lifetime of a session created with remember me"))

	key = "sweep-interval"
	cmd.PersistentFlags().Duration(key, d.SweepInterval, WrapString("Time between two sweeps of expired sessions"))

	key = "payment-failure-rate"
	cmd.PersistentFlags().Float64(key, d.PaymentFailureRate, WrapString("Probability in [0,1] that the simulated gateway declines a valid payment"))

	key = "payment-latency"
	cmd.PersistentFlags().Duration(key, d.PaymentLatency, WrapString("Simulated latency of the payment gateway"))

	key = "log-level"
	cmd.PersistentFlags().String(key, d.LogLevel, WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// InitConfig loads .env files and initializes viper. The format of the
// environment variables is DSHOP_<flag> (e.g. DSHOP_DATA_DIR=/var/lib/dshop).
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dshop")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetShopConfig reads the shop configuration from viper
func GetShopConfig() common.ShopConfig {
	conf := common.DefaultConfig()
	conf.DataDir = viper.GetString("data-dir")
	conf.CacheTTL = viper.GetDuration("cache-ttl")
	conf.CacheGCInterval = viper.GetDuration("cache-gc-interval")
	conf.SearchLimit = viper.GetInt("search-limit")
	conf.SessionTTL = viper.GetDuration("session-ttl")
	conf.RememberMeTTL = viper.GetDuration("remember-me-ttl")
	conf.SweepInterval = viper.GetDuration("sweep-interval")
	conf.PaymentFailureRate = viper.GetFloat64("payment-failure-rate")
	conf.PaymentLatency = viper.GetDuration("payment-latency")
	conf.LogLevel = viper.GetString("log-level")
	if endpoint := viper.GetString("endpoint"); endpoint != "" {
		conf.Endpoint = endpoint
	}
	return conf
}

// OpenShop binds the command flags, initializes the loggers and builds the shop
func OpenShop(cmd *cobra.Command) (*shop.Shop, error) {
	if err := BindCommandFlags(cmd); err != nil {
		return nil, err
	}
	conf := GetShopConfig()
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if err := common.InitLoggers(conf); err != nil {
		return nil, err
	}
	return shop.New(conf)
}
