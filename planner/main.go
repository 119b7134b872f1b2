package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/novaboard/lineplan/planner/advisor"
	"github.com/novaboard/lineplan/planner/gateway"
	"github.com/novaboard/lineplan/planner/middleware"
	"github.com/novaboard/lineplan/planner/notify"
	"github.com/novaboard/lineplan/planner/operator"
	"github.com/novaboard/lineplan/planner/scheduling"
	"github.com/novaboard/lineplan/planner/store"
)

// openStore picks the first configured backend: Postgres for durable
// single-node deployments, Redis when the engine shares state with
// other tooling, memory for local runs.
func openStore(ctx context.Context, cfg *Config) store.Store {
	if cfg.DatabaseURL != "" {
		s, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		log.Println("Using Postgres store")
		return s
	}
	if cfg.RedisAddr != "" {
		s, err := store.NewRedisStore(cfg.RedisAddr, "", 0)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		log.Printf("Using Redis store at %s", cfg.RedisAddr)
		return s
	}
	log.Println("Using in-memory store (state is lost on restart)")
	return store.NewMemoryStore()
}

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := openStore(ctx, cfg)
	defer st.Close()

	gw := gateway.NewClient(cfg.ArkeBaseURL, cfg.ArkeUsername, cfg.ArkePassword)

	adv, err := advisor.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Fatalf("Advisor: %v", err)
	}
	if adv == nil {
		log.Println("No GEMINI_API_KEY set; revisions fall back to EDF")
	}

	var channel operator.Channel = operator.LogChannel{}
	if cfg.TelegramToken != "" {
		channel = operator.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
		log.Println("Operator channel: Telegram")
	} else {
		log.Println("Operator channel: process log (no TELEGRAM_BOT_TOKEN)")
	}

	emailer := notify.NewEmailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername,
		cfg.SMTPPassword, cfg.SMTPFrom, cfg.SMTPTo)
	if emailer == nil {
		log.Println("Email notifications disabled")
	}

	clock := scheduling.WorkClock{StartHour: cfg.ShiftStartHour, EndHour: cfg.ShiftEndHour}
	hub := NewScheduleHub()
	go hub.Run(ctx)

	var adviser Adviser
	if adv != nil {
		adviser = adv
	}
	orch := NewOrchestrator(gw, st, clock, adviser, channel, emailer, hub)

	go runOperatorLoop(ctx, channel, orch)

	api := NewAPI(st, orch, hub)
	mux := http.NewServeMux()
	api.Routes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	handler := middleware.CORS(mux)
	server := &http.Server{Addr: cfg.ListenAddr, Handler: handler}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down HTTP server")
		server.Shutdown(context.Background())
	}()

	log.Printf("NovaBoard line planner listening on %s (shift %02d:00-%02d:00 UTC)",
		cfg.ListenAddr, cfg.ShiftStartHour, cfg.ShiftEndHour)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("HTTP server: %v", err)
	}
}
