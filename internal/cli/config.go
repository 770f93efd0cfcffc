package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/klauern/rulebook/internal/config"
	"github.com/klauern/rulebook/internal/ui"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect rulebook configuration",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the effective configuration",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: yaml, json",
						Value:   "yaml",
					},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					switch format := cmd.String("format"); format {
					case "yaml":
						return outputAnyYAML(cfg)
					case "json":
						return outputAnyJSON(cfg)
					default:
						return fmt.Errorf("unsupported format: %s (valid: yaml, json)", format)
					}
				},
			},
			{
				Name:  "path",
				Usage: "Print the config file location",
				Action: func(_ context.Context, _ *cli.Command) error {
					fmt.Println(config.FilePath())
					return nil
				},
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			status := ui.Dim("(defaults)")
			if config.Exists() {
				status = ui.Success("(found)")
			}
			fmt.Printf("%s %s %s\n", ui.Bold("Config file:"), config.FilePath(), status)
			fmt.Println(ui.Bold("Roots:"))
			for _, root := range cfg.RootPaths("") {
				fmt.Printf("  %s\n", root)
			}
			fmt.Printf("%s %s\n", ui.Bold("Judge:"), cfg.GetJudge())
			return nil
		},
	}
}
