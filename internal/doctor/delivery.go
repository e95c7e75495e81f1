package doctor

import (
	"context"
	"fmt"
	"os"

	"github.com/rileyhilliard/dockerstats/internal/config"
	"github.com/rileyhilliard/dockerstats/internal/deliver"
)

// ConfigCheck validates the resolved configuration.
type ConfigCheck struct {
	Config *config.Config
}

func (c *ConfigCheck) Name() string     { return "config" }
func (c *ConfigCheck) Category() string { return "CONFIG" }

func (c *ConfigCheck) Run(context.Context) CheckResult {
	if err := config.Validate(c.Config); err != nil {
		return CheckResult{Status: StatusFail, Message: firstLine(err), Suggestion: suggestion(err)}
	}
	if err := config.ValidateDelivery(c.Config); err != nil {
		return CheckResult{Status: StatusWarn, Message: firstLine(err), Suggestion: suggestion(err)}
	}
	return CheckResult{Status: StatusPass, Message: "Configuration is valid"}
}

// OutputDirCheck verifies charts can be written to the output directory.
type OutputDirCheck struct {
	Dir string
}

func (c *OutputDirCheck) Name() string     { return "output_dir" }
func (c *OutputDirCheck) Category() string { return "DELIVERY" }

func (c *OutputDirCheck) Run(context.Context) CheckResult {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("Cannot create %s: %v", c.Dir, err),
			Suggestion: "Pick a directory you can write to",
		}
	}
	f, err := os.CreateTemp(c.Dir, ".dockerstats-doctor-*")
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("Cannot write to %s: %v", c.Dir, err),
			Suggestion: "Check the directory permissions",
		}
	}
	f.Close()
	os.Remove(f.Name())

	return CheckResult{Status: StatusPass, Message: "Charts will be written to " + c.Dir}
}

// TelegramCheck authenticates the bot and looks up the target chat.
type TelegramCheck struct {
	Token   string
	Channel int64
	// Endpoint overrides the Bot API URL format; empty uses api.telegram.org.
	Endpoint string
}

func (c *TelegramCheck) Name() string     { return "telegram" }
func (c *TelegramCheck) Category() string { return "DELIVERY" }

func (c *TelegramCheck) Run(context.Context) CheckResult {
	var (
		tg  *deliver.Telegram
		err error
	)
	if c.Endpoint != "" {
		tg, err = deliver.NewTelegramWithEndpoint(c.Token, c.Channel, c.Endpoint)
	} else {
		tg, err = deliver.NewTelegram(c.Token, c.Channel)
	}
	if err != nil {
		return CheckResult{Status: StatusFail, Message: firstLine(err), Suggestion: suggestion(err)}
	}

	title, err := tg.ChatTitle()
	if err != nil {
		return CheckResult{Status: StatusFail, Message: firstLine(err), Suggestion: suggestion(err)}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("@%s will post to %q", tg.Username(), title),
	}
}
