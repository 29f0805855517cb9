package proxy

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"stream-classifier/classifier"
	"stream-classifier/config"
	"stream-classifier/internal"
	"stream-classifier/logger"
	"stream-classifier/types"
)

// Handler serves classification requests
type Handler struct {
	config  *config.Config
	metrics *Metrics
	obs     *logger.ObservabilityLogger
}

// NewHandler creates a new classification handler. metrics and obs may be nil.
func NewHandler(cfg *config.Config, metrics *Metrics, obs *logger.ObservabilityLogger) *Handler {
	return &Handler{
		config:  cfg,
		metrics: metrics,
		obs:     obs,
	}
}

// NewPipelineFor builds a fresh classifier for family, with the configured
// overrides applied, and wraps it in a Pipeline tagged with requestID
func NewPipelineFor(cfg *config.Config, family, requestID string, metrics *Metrics, obs *logger.ObservabilityLogger) (*Pipeline, error) {
	opts := append(cfg.ClassifierOptions(family), classifier.WithRequestID(requestID))
	pipeOpts := []PipelineOption{WithRequestID(requestID), WithLoopThreshold(cfg.LoopThreshold)}
	if metrics != nil {
		pipeOpts = append(pipeOpts, WithMetrics(metrics))
	}
	if obs != nil {
		opts = append(opts, classifier.WithLogFunc(obs.LogFunc()))
		pipeOpts = append(pipeOpts, WithLogFunc(obs.LogFunc()))
	}

	c, err := classifier.ForFamily(family, opts...)
	if err != nil {
		return nil, err
	}
	return NewPipeline(c, family, pipeOpts...), nil
}

// HandleClassify reads an OpenAI-compatible SSE stream from the request body
// and answers with the classified responses as an SSE stream
func (h *Handler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	requestID := internal.NewRequestID()
	ctx := internal.WithRequestID(r.Context(), requestID)

	model := r.URL.Query().Get("model")
	family := r.URL.Query().Get("family")
	if family == "" {
		family = h.config.FamilyForModel(model)
	}
	if !classifier.IsFamily(family) {
		log.Printf("⚠️ [%s] Unknown classifier family: %s", requestID, family)
		http.Error(w, fmt.Sprintf("unknown family %q", family), http.StatusBadRequest)
		return
	}

	pipeline, err := NewPipelineFor(h.config, family, requestID, h.metrics, h.obs)
	if err != nil {
		log.Printf("❌ [%s] Failed to build classifier: %v", requestID, err)
		http.Error(w, "Failed to build classifier", http.StatusInternalServerError)
		return
	}

	if h.obs != nil {
		h.obs.Request(requestID, "Classify request received", map[string]interface{}{
			"model":  model,
			"family": family,
		})
	}
	log.Printf("📨 [%s] Classifying stream for model %q with family %s", requestID, model, family)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	write := func(resp types.Response) error {
		data, err := json.Marshal(resp)
		if err != nil {
			return fmt.Errorf("failed to marshal response: %w", err)
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	err = ReadEvents(ctx, r.Body, func(ev types.Event) error {
		for _, resp := range pipeline.Push(ev) {
			if err := write(resp); err != nil {
				return err
			}
		}
		return nil
	})
	pipeline.Finish(err)
	if err != nil {
		log.Printf("❌ [%s] Classification stream failed: %v", requestID, err)
		return
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
	log.Printf("✅ [%s] Classification complete: %v", requestID, pipeline.Counts())
}
