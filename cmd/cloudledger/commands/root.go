package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/DrSkyle/cloudledger/pkg/config"
	"github.com/DrSkyle/cloudledger/pkg/version"
)

var (
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cloudledger",
	Short: "The Cloud Change Accountant",
	Long: `CloudLedger - Change Detection & Attribution for AWS

Snapshot. Diff. Attribute.`,
	Version: version.Current,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent Flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ~/.cloudledger.yaml)")
	rootCmd.PersistentFlags().StringVar(&cfg.DatabaseURL, "database-url", "", "Postgres connection string")
	rootCmd.PersistentFlags().StringVar(&cfg.Regions, "regions", config.DefaultRegion, "AWS regions (comma-separated)")
	rootCmd.PersistentFlags().StringVar(&cfg.Accounts, "accounts", "", "Account IDs to scan (comma-separated, empty = caller account)")
	rootCmd.PersistentFlags().StringVar(&cfg.RoleName, "role-name", "", "IAM role assumed in each target account")
	rootCmd.PersistentFlags().StringVar(&cfg.Types, "types", "", "Resource types to track (comma-separated)")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&cfg.JsonLogs, "json-logs", false, "Emit logs as JSON")

	// Hidden Flags
	rootCmd.PersistentFlags().BoolVar(&cfg.MockMode, "mock", false, "Run against simulated data")
	rootCmd.PersistentFlags().MarkHidden("mock")
	rootCmd.PersistentFlags().BoolVar(&cfg.SkipTelemetry, "skip-telemetry", false, "Disable trace export")
	rootCmd.PersistentFlags().MarkHidden("skip-telemetry")

	viper.BindPFlag("database_url", rootCmd.PersistentFlags().Lookup("database-url"))
	viper.BindPFlag("regions", rootCmd.PersistentFlags().Lookup("regions"))
	viper.BindPFlag("role_name", rootCmd.PersistentFlags().Lookup("role-name"))

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		renderHelp(cmd)
	})
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.SetConfigFile(filepath.Join(home, ".cloudledger.yaml"))
			viper.SetConfigType("yaml")
		}
	}
	viper.SetEnvPrefix("CLOUDLEDGER")
	viper.AutomaticEnv()
	viper.ReadInConfig()

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = viper.GetString("database_url")
	}
	if cfg.RoleName == "" {
		cfg.RoleName = viper.GetString("role_name")
	}
}

func renderHelp(cmd *cobra.Command) {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00FF99")).
		MarginBottom(1)

	flagStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA"))

	fmt.Println(titleStyle.Render(fmt.Sprintf("CLOUDLEDGER %s", version.Current)))
	fmt.Println("Change Detection & Attribution for AWS.")

	fmt.Println(titleStyle.Render("USAGE"))
	fmt.Printf("  %s\n\n", cmd.UseLine())

	fmt.Println(titleStyle.Render("COMMANDS"))
	for _, c := range cmd.Commands() {
		if c.IsAvailableCommand() {
			fmt.Printf("  %-12s %s\n", c.Name(), c.Short)
		}
	}
	fmt.Println("")

	fmt.Println(titleStyle.Render("FLAGS"))
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		output := fmt.Sprintf("  --%-15s %s", f.Name, f.Usage)
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" {
			output += fmt.Sprintf(" (default %s)", f.DefValue)
		}
		fmt.Println(flagStyle.Render(output))
	})
	fmt.Println("")
}
