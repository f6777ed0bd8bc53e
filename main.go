package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sdap/playbook/internal/adapter/ai"
	"github.com/sdap/playbook/internal/adapter/crm"
	"github.com/sdap/playbook/internal/adapter/mail"
	"github.com/sdap/playbook/internal/adapter/search"
	"github.com/sdap/playbook/internal/config"
	"github.com/sdap/playbook/internal/engine"
	"github.com/sdap/playbook/internal/indexing"
	"github.com/sdap/playbook/internal/repository"
	"github.com/sdap/playbook/internal/service"
	"github.com/sdap/playbook/internal/template"
	transport "github.com/sdap/playbook/internal/transport/http"
	"github.com/sdap/playbook/policy"
)

func main() {
	cfg := config.Load()

	log.Printf("Starting playbook engine...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("CRM: %s", cfg.CRMBaseURL)
	log.Printf("Search: %s", cfg.SearchEndpoint)

	// Initialize store
	db, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize policy engine
	ctx := context.Background()
	policyContent := policy.DefaultPolicy
	if cfg.PolicyPath != "" {
		b, err := os.ReadFile(cfg.PolicyPath)
		if err != nil {
			log.Fatalf("Failed to read policy: %v", err)
		}
		policyContent = string(b)
	}
	policyEngine, err := policy.NewEngine(ctx, policyContent)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize model client
	var modelClient ai.ModelClient
	if cfg.UseMockAI {
		log.Printf("WARN: using mock AI client")
		modelClient = ai.NewMockClient()
	} else {
		modelClient = ai.NewClient(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AnalysisModel, cfg.EmbeddingModel, 60*time.Second)
	}

	// Initialize external collaborators
	crmClient := crm.NewClient(cfg.CRMBaseURL, 30*time.Second)
	mailClient := mail.NewClient(cfg.MailBaseURL, 30*time.Second)
	knowledgeIndex := search.NewClient(cfg.SearchEndpoint, cfg.KnowledgeIndexName, cfg.SearchAPIKey, 60*time.Second)
	discoveryIndex := search.NewClient(cfg.SearchEndpoint, cfg.DiscoveryIndexName, cfg.SearchAPIKey, 60*time.Second)

	// Wire the node engine
	templates := template.New()
	handlers := engine.NewHandlerRegistry()
	handlers.MustRegister("DocumentAnalysisHandler", ai.NewDocumentAnalysisHandler(modelClient))

	registry := engine.NewRegistry(
		engine.NewAIAnalysisExecutor(handlers),
		engine.NewConditionExecutor(templates),
		engine.NewDeliverOutputExecutor(templates),
		engine.NewSendEmailExecutor(mailClient, templates, policyEngine),
		engine.NewUpdateRecordExecutor(crmClient, templates, policyEngine),
		engine.NewCreateTaskExecutor(crmClient, templates, policyEngine),
	)
	runner := engine.NewRunner(registry)

	// Wire the indexing pipeline
	pipeline := indexing.NewPipeline(modelClient, knowledgeIndex, discoveryIndex,
		indexing.ChunkOptions{Size: cfg.KnowledgeChunkSize, Overlap: cfg.KnowledgeChunkOverlap},
		indexing.ChunkOptions{Size: cfg.DiscoveryChunkSize, Overlap: cfg.DiscoveryChunkOverlap})

	// Initialize service and server
	svc := service.New(db, runner, pipeline, cfg)
	server := transport.NewServer(svc)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down playbook engine...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Playbook engine stopped")
}
