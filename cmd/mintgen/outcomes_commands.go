package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	natspkg "github.com/brojonat/mintgen/service/nats"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

func outcomesCommands() *cli.Command {
	return &cli.Command{
		Name:  "outcomes",
		Usage: "NATS outcome stream commands",
		Subcommands: []*cli.Command{
			outcomesWatchCommand(),
			outcomesInspectCommand(),
		},
	}
}

func requireNATSURL(c *cli.Context) (string, error) {
	natsURL := c.String("nats-url")
	if natsURL == "" {
		return "", fmt.Errorf("nats-url is required (set NATS_URL env var or use --nats-url)")
	}
	return natsURL, nil
}

func outcomesWatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Stream chunk outcomes as batch runs report them",
		Description: `Subscribe to outcome events published to NATS JetStream.

Events are published to the subject: mintgen.outcomes.{config}

Example:
  mintgen outcomes watch --config bodoggos --json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Only show outcomes of this config name",
			},
			&cli.StringFlag{
				Name:  "run",
				Usage: "Only show outcomes of this run id",
			},
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (required for durable)",
				Value: "mintgen-cli",
			},
		},
		Action: func(c *cli.Context) error {
			natsURL, err := requireNATSURL(c)
			if err != nil {
				return err
			}

			nc, err := nats.Connect(natsURL)
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			subject := natspkg.StreamSubjects
			if config := c.String("config"); config != "" {
				subject = natspkg.Subject(config)
			}

			consumerConfig := jetstream.ConsumerConfig{
				FilterSubject: subject,
				AckPolicy:     jetstream.AckExplicitPolicy,
				DeliverPolicy: jetstream.DeliverNewPolicy,
			}
			if c.Bool("durable") {
				consumerConfig.Durable = c.String("consumer-name")
				consumerConfig.Name = c.String("consumer-name")
			}

			cons, err := js.CreateOrUpdateConsumer(c.Context, natspkg.StreamName, consumerConfig)
			if err != nil {
				return fmt.Errorf("failed to create consumer: %w", err)
			}

			jsonOutput := wantJSON(c)
			if !jsonOutput {
				fmt.Fprintf(c.App.ErrWriter, "Subscribing to: %s\nWaiting for outcomes... (Ctrl-C to exit)\n\n", subject)
			}

			msgChan := make(chan jetstream.Msg, 10)
			consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
				msgChan <- msg
			})
			if err != nil {
				return fmt.Errorf("failed to consume: %w", err)
			}
			defer consumeCtx.Stop()

			runID := c.String("run")
			count := 0
			for {
				select {
				case msg := <-msgChan:
					var event natspkg.OutcomeEvent
					if err := json.Unmarshal(msg.Data(), &event); err != nil {
						fmt.Fprintf(c.App.ErrWriter, "Error parsing event: %v\n", err)
						_ = msg.Ack()
						continue
					}
					_ = msg.Ack()
					if runID != "" && event.RunID != runID {
						continue
					}

					count++
					if jsonOutput {
						if err := outputJSON(c, event); err != nil {
							return err
						}
						continue
					}
					printOutcome(c, &event)

				case <-c.Context.Done():
					if !jsonOutput {
						fmt.Fprintf(c.App.ErrWriter, "\nReceived %d outcomes\n", count)
					}
					return nil
				}
			}
		},
	}
}

func printOutcome(c *cli.Context, event *natspkg.OutcomeEvent) {
	result := event.Signature
	if event.Error != "" {
		result = event.Error
	}
	fmt.Fprintf(c.App.Writer, "%s %s %s/%s chunk %d/%d ops=%d size=%d %s %s\n",
		event.PublishedAt.Format(time.RFC3339),
		event.RunID,
		event.Config,
		event.Operation,
		event.ChunkIndex+1,
		event.ChunkTotal,
		event.OpOffset,
		event.Size,
		event.Status,
		result,
	)
}

func outcomesInspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect the outcome JetStream stream",
		Action: func(c *cli.Context) error {
			natsURL, err := requireNATSURL(c)
			if err != nil {
				return err
			}

			nc, err := nats.Connect(natsURL)
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
			defer cancel()

			stream, err := js.Stream(ctx, natspkg.StreamName)
			if err != nil {
				return fmt.Errorf("failed to get stream: %w", err)
			}
			info, err := stream.Info(ctx)
			if err != nil {
				return fmt.Errorf("failed to get stream info: %w", err)
			}

			if wantJSON(c) {
				return outputJSON(c, info)
			}

			w := c.App.Writer
			fmt.Fprintf(w, "Stream: %s\n", info.Config.Name)
			fmt.Fprintf(w, "Subjects:     %v\n", info.Config.Subjects)
			fmt.Fprintf(w, "Messages:     %d\n", info.State.Msgs)
			fmt.Fprintf(w, "Bytes:        %d\n", info.State.Bytes)
			fmt.Fprintf(w, "First Seq:    %d\n", info.State.FirstSeq)
			fmt.Fprintf(w, "Last Seq:     %d\n", info.State.LastSeq)
			fmt.Fprintf(w, "Consumers:    %d\n", info.State.Consumers)
			fmt.Fprintf(w, "Max Age:      %s\n", info.Config.MaxAge)
			fmt.Fprintf(w, "Storage:      %s\n", info.Config.Storage)
			return nil
		},
	}
}
