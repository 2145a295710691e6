package main

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bobinette/coursedocs/errors"
	"github.com/bobinette/coursedocs/log"

	sharingCmd "github.com/bobinette/coursedocs/sharing/cmd"
)

type Configuration struct {
	Addr    string                   `toml:"addr"`
	Sharing sharingCmd.Configuration `toml:"sharing"`
}

var (
	// flags
	env        string
	configFile string

	// logger
	logger log.Logger

	// configuration
	config Configuration
)

func init() {
	RootCmd.PersistentFlags().StringVar(&env, "env", "dev", "environment")
	RootCmd.PersistentFlags().StringVar(&configFile, "config", "", "configuration file")
}

var RootCmd = cobra.Command{
	Use:   "coursedocs",
	Short: "Keep the Drive documents of the courses shared with the right students",
	Long:  "Keep the Drive documents of the courses shared with the right students",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = log.New(env)

		if configFile == "" {
			configFile = path.Join("configuration", fmt.Sprintf("config.%s.toml", env))
		}

		conf, err := loadConfiguration(configFile)
		if err != nil {
			logger.Fatal("could not load configuration:", err)
		}
		config = conf
	},
}

// loadConfiguration reads a toml file in which ${VAR} are replaced by the
// environment, after loading the .env file if there is one.
func loadConfiguration(filename string) (Configuration, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Configuration{}, errors.New("could not load .env", errors.WithCause(err))
	}

	data, err := ioutil.ReadFile(filename)
	if err != nil {
		return Configuration{}, errors.New("could not read configuration file", errors.WithCause(err))
	}

	var conf Configuration
	if err := toml.Unmarshal([]byte(os.ExpandEnv(string(data))), &conf); err != nil {
		return Configuration{}, errors.New("error unmarshalling configuration", errors.WithCause(err))
	}

	if conf.Addr == "" {
		conf.Addr = ":1705"
	}
	return conf, nil
}

func inheritPersistentPreRun(cmd *cobra.Command) {
	ppr := cmd.PersistentPreRun
	cmd.PersistentPreRun = func(c *cobra.Command, args []string) {
		// Run parent persistent pre run
		if cmd.Parent() != nil && cmd.Parent().PersistentPreRun != nil {
			cmd.Parent().PersistentPreRun(c, args)
		}

		// Run command persistent pre run
		if ppr != nil {
			ppr(c, args)
		}
	}
}

func printJSON(cmd *cobra.Command, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Fatal(err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
}
