package cmd

import (
	"errors"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stleox/spanflow/pkg/cmd/demo"
	"github.com/stleox/spanflow/pkg/config"
)

// NewViper creates a new viper instance configured.
func NewViper() *viper.Viper {
	vp := viper.New()

	// read config from a file
	vp.SetConfigName("config") // name of config file (without extension)
	vp.SetConfigType("yaml")   // useful if the given config file does not have the extension in the name
	vp.AddConfigPath(".")      // look for a config in the working directory first
	// a missing config file is fine: environment variables still apply
	if err := vp.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logrus.WithError(err).Warn("spanflow couldn't read config file")
		}
	}

	// read config from environment variables
	vp.SetEnvPrefix("spanflow") // env var must start with SPANFLOW_
	// replace - by _ for environment variable names
	// (eg: the env var for ring-capacity is SPANFLOW_RING_CAPACITY)
	vp.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	vp.AutomaticEnv() // read in environment variables that match
	return vp
}

func New(vp *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:   "spanflow",
		Short: "spanflow",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if config.Debug {
				logrus.SetLevel(logrus.DebugLevel)
				logrus.Info("enabled debug mode")
			}
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&config.Debug, "debug", false, "Enable debug mode")
	return root
}

func Execute() {
	// 全局初始化 VP 配置
	vp := NewViper()

	root := New(vp)
	root.AddCommand(demo.New(vp))

	err := root.Execute()
	if err != nil {
		os.Exit(1)
	}
}
