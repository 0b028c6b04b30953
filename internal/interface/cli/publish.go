package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/alem-hub/xp-observer/internal/domain/platform"
	"github.com/alem-hub/xp-observer/internal/infrastructure/messaging"
	"github.com/alem-hub/xp-observer/internal/infrastructure/persistence/redis"
)

// publishInstanceID marks envelopes sent by xpctl.
const publishInstanceID = "xpctl"

type eventPublisher interface {
	Publish(ctx context.Context, event platform.Event) error
}

// newPublishBus wraps client in the bus the observer listens with, tagged
// so xpctl never handles its own envelopes.
func newPublishBus(client messaging.RedisClient, channel string, log *slog.Logger) (*messaging.RedisEventBus, error) {
	return messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Client:         client,
		ChannelName:    channel,
		InstanceID:     publishInstanceID,
		LocalBusConfig: messaging.DefaultInMemoryEventBusConfig(),
		Logger:         log,
	})
}

// NewPublishCommand creates the publish command.
func NewPublishCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		file    string
		channel string
		cfg     = redis.DefaultConfig()
	)

	cmd := &cobra.Command{
		Use:   "publish --file events.yaml",
		Short: "Publish fixture events on the host event channel",
		Long: `Encode the events of a YAML fixture file as host event envelopes and
publish them on the Redis channel the observer listens to.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := loadFixtures(file)
			if err != nil {
				return err
			}

			client, err := redis.NewClient(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			bus, err := newPublishBus(redis.NewPubSubClient(client), channel, newLogger(rootOpts, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer bus.Close()

			n, err := publishEvents(cmd.Context(), bus, events)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "published %d event(s) on %s\n", n, channel)
			return err
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with the events to publish")
	cmd.Flags().StringVar(&channel, "channel", messaging.DefaultEventsChannel, "Redis channel")
	cmd.Flags().StringVar(&cfg.Host, "redis-host", cfg.Host, "Redis host")
	cmd.Flags().IntVar(&cfg.Port, "redis-port", cfg.Port, "Redis port")
	cmd.Flags().StringVar(&cfg.Password, "redis-password", "", "Redis password")
	cmd.Flags().IntVar(&cfg.DB, "redis-db", 0, "Redis database number")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func publishEvents(ctx context.Context, pub eventPublisher, events []platform.Event) (int, error) {
	for i, ev := range events {
		if err := pub.Publish(ctx, ev); err != nil {
			return i, fmt.Errorf("publish event %d: %w", i+1, err)
		}
	}
	return len(events), nil
}
