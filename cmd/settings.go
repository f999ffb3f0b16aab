package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/jbx/internal/shared"
)

// SettingsGet prints server settings with the bot token masked.
func (r *Runner) SettingsGet(ctx context.Context, cmd *cli.Command) error {
	s, err := r.jukebox.Settings(ctx)
	if err != nil {
		return err
	}
	s.Discord.BotToken = s.Discord.MaskedToken()

	if cmd.Bool("json") {
		return r.writeJSON(s, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Settings")
	r.writePlain("Discord\n")
	r.writePlain("  bot token:  %s\n", orDefault(s.Discord.BotToken, "(not set)"))
	r.writePlain("  channel id: %s\n", orDefault(s.Discord.ChannelID, "(not set)"))
	r.writePlain("  connected:  %v\n", s.Discord.Connected)
	r.writePlain("General\n")
	r.writePlain("  auto play:      %v\n", s.General.AutoPlay)
	r.writePlain("  notifications:  %v\n", s.General.ShowNotifications)
	r.writePlain("  default volume: %d\n", s.General.DefaultVolume)
	return nil
}

// SettingsSet changes the general settings named by flags and leaves the rest untouched.
func (r *Runner) SettingsSet(ctx context.Context, cmd *cli.Command) error {
	if !cmd.IsSet("auto-play") && !cmd.IsSet("notifications") && !cmd.IsSet("volume") {
		return fmt.Errorf("%w: nothing to change (use --auto-play, --notifications or --volume)", shared.ErrMissingArgument)
	}

	s, err := r.jukebox.Settings(ctx)
	if err != nil {
		return err
	}
	if cmd.IsSet("auto-play") {
		s.General.AutoPlay = cmd.Bool("auto-play")
	}
	if cmd.IsSet("notifications") {
		s.General.ShowNotifications = cmd.Bool("notifications")
	}
	if cmd.IsSet("volume") {
		v := cmd.Int("volume")
		if v < 0 || v > 100 {
			return fmt.Errorf("%w: volume must be between 0 and 100", shared.ErrInvalidArgument)
		}
		s.General.DefaultVolume = v
	}

	res, err := r.jukebox.SaveSettings(ctx, *s)
	if err != nil {
		return err
	}
	r.writePlain("✓ %s\n", res.Message)
	return nil
}

// SettingsTestDiscord validates and stores bot credentials.
func (r *Runner) SettingsTestDiscord(ctx context.Context, cmd *cli.Command) error {
	res, err := r.jukebox.TestDiscord(ctx, cmd.String("token"), cmd.String("channel"))
	if err != nil {
		return err
	}
	r.writePlain("✓ %s\n", res.Message)
	return nil
}

// DiscordStatus prints the bot's connectivity.
func (r *Runner) DiscordStatus(ctx context.Context, cmd *cli.Command) error {
	st, err := r.jukebox.DiscordStatus(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(st, cmd.Bool("pretty"))
	}

	r.writePlain("Bot ready:       %v\n", st.BotReady)
	r.writePlain("Voice connected: %v\n", st.VoiceConnected)
	if st.TargetChannelID != "" {
		r.writePlain("Target channel:  %s\n", st.TargetChannelID)
	}
	if st.CurrentChannelID != "" {
		r.writePlain("Current channel: %s\n", st.CurrentChannelID)
	}
	return nil
}

// DiscordJoin asks the bot into the configured voice channel.
func (r *Runner) DiscordJoin(ctx context.Context, cmd *cli.Command) error {
	return r.playerMachine(nil).JoinVoice(ctx)
}

// DiscordLeave disconnects the bot; the server also stops playback.
func (r *Runner) DiscordLeave(ctx context.Context, cmd *cli.Command) error {
	return r.playerMachine(nil).LeaveVoice(ctx)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
