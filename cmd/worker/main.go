package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/yourorg/rentnest/internal/domain"
	"github.com/yourorg/rentnest/internal/infrastructure/logger"
	"github.com/yourorg/rentnest/internal/mail"
	"github.com/yourorg/rentnest/internal/notify"
	"github.com/yourorg/rentnest/internal/reliability/circuitbreaker"
	"github.com/yourorg/rentnest/internal/reliability/retry"
	"github.com/yourorg/rentnest/pkg/config"
)

// The worker consumes application events from the notification queue and
// turns them into emails. It runs separately from the API server so a slow
// or down SMTP host never backs up request handling.
func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting RentNest notification worker", slog.String("environment", cfg.Environment))

	consumer, err := notify.NewConsumer(cfg.AMQPURL, cfg.NotifyExchange, cfg.NotifyQueue, []string{"application.*"})
	if err != nil {
		log.Error("failed to connect to message queue", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer consumer.Close()

	sender := mail.NewSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom, log)

	// SMTP outages trip the breaker so redeliveries back off instead of
	// hammering a dead host
	breaker := circuitbreaker.New(5, 2, 30*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutdown signal received")
		cancel()
	}()

	deliveries, err := consumer.Deliveries(ctx)
	if err != nil {
		log.Error("failed to start consuming", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("worker consuming", slog.String("queue", cfg.NotifyQueue))

	for {
		select {
		case <-ctx.Done():
			log.Info("worker stopped")
			return
		case d, ok := <-deliveries:
			if !ok {
				log.Error("delivery channel closed")
				return
			}
			handleDelivery(ctx, d, sender, breaker, log)
		}
	}
}

func handleDelivery(ctx context.Context, d amqp.Delivery, sender *mail.Sender, breaker *circuitbreaker.CircuitBreaker, log *slog.Logger) {
	var ev domain.Event
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		log.Error("dropping malformed event", slog.String("error", err.Error()))
		_ = d.Nack(false, false) // unparseable, requeueing won't help
		return
	}

	if ev.RecipientEmail == "" {
		log.Warn("event has no recipient, skipping",
			slog.String("application_id", ev.ApplicationID),
		)
		_ = d.Ack(false)
		return
	}

	subject, body := composeEmail(ev)

	err := retry.Do(ctx, retry.DefaultConfig(), log, "send notification email", func(ctx context.Context) error {
		return breaker.Do(func() error {
			return sender.Send(ev.RecipientEmail, subject, body)
		})
	})
	if err != nil {
		log.Error("failed to send email, requeueing",
			slog.String("application_id", ev.ApplicationID),
			slog.String("error", err.Error()),
		)
		_ = d.Nack(false, true)
		return
	}

	log.Info("notification email sent",
		slog.String("event", string(ev.Type)),
		slog.String("application_id", ev.ApplicationID),
	)
	_ = d.Ack(false)
}

func composeEmail(ev domain.Event) (subject, body string) {
	greeting := "Hello"
	if ev.RecipientName != "" {
		greeting = "Hello " + ev.RecipientName
	}

	switch ev.Type {
	case domain.EventApplicationCreated:
		subject = fmt.Sprintf("New application for %s", ev.PropertyTitle)
		body = fmt.Sprintf("%s,\n\nYou have received a new rental application for %q. "+
			"Log in to review it.\n", greeting, ev.PropertyTitle)
	case domain.EventApplicationDecided:
		subject = fmt.Sprintf("Your application for %s was %s", ev.PropertyTitle, ev.Status)
		body = fmt.Sprintf("%s,\n\nYour application for %q has been %s.\n",
			greeting, ev.PropertyTitle, ev.Status)
		if ev.OwnerResponse != "" {
			body += "\nMessage from the owner:\n" + ev.OwnerResponse + "\n"
		}
	default:
		subject = "RentNest notification"
		body = fmt.Sprintf("%s,\n\nThere is an update on application %s.\n", greeting, ev.ApplicationID)
	}
	return subject, body
}
